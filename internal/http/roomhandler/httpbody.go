package roomhandler

import (
	"collabboard/internal/coordinator"
	"collabboard/internal/recorder"
)

type RoomURI struct {
	ID string `uri:"id" binding:"required,max=64"`
}

type RecordingResponse struct {
	RoomID    string            `json:"roomId"`
	Recording []recorder.Record `json:"recording"`
}

type ParticipantsResponse struct {
	RoomID       string               `json:"roomId"`
	Participants []coordinator.Member `json:"participants"`
}

type ForceDeleteResponse struct {
	RoomID  string `json:"roomId"`
	Evicted int    `json:"evicted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
