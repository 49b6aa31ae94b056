package ws

import (
	"encoding/json"

	"collabboard/internal/canvas"
	"collabboard/internal/coordinator"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "draw-delta"
	Body  json.RawMessage `json:"body,omitempty"` // event payload
}

// encodeEvent renders an outbound event as an Envelope frame.
func encodeEvent(evt coordinator.Event) ([]byte, error) {
	return json.Marshal(struct {
		Event string            `json:"event"`
		Body  coordinator.Event `json:"body"`
	}{evt.EventName(), evt})
}

// ──────────────────────────── Inbound bodies ─────────────────────────────────
//
// RoomID is optional on room-scoped events; when present it must name the
// room the connection has joined.

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

// RoomRequest is the body of events that carry nothing but the room id
// (leave-room, clear-board, screen-share-started/stopped, get-recording).
type RoomRequest struct {
	RoomID string `json:"roomId" validate:"max=64"`
}

type DrawRequest struct {
	RoomID string        `json:"roomId" validate:"max=64"`
	Stroke canvas.Stroke `json:"stroke"`
}

type DrawDeltaRequest struct {
	RoomID   string       `json:"roomId"   validate:"max=64"`
	StrokeID string       `json:"strokeId" validate:"required,max=128"`
	Point    canvas.Point `json:"point"`
	Tool     string       `json:"tool"     validate:"max=32"`
	Color    string       `json:"color"    validate:"max=64"`
	Size     float64      `json:"size"     validate:"gte=0"`
}

type DrawBatchRequest struct {
	RoomID  string          `json:"roomId"  validate:"max=64"`
	Strokes []canvas.Stroke `json:"strokes" validate:"required,max=1000,dive"`
}

type CursorMoveRequest struct {
	RoomID string  `json:"roomId" validate:"max=64"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// StrokeRefRequest is the body of undo and redo.
type StrokeRefRequest struct {
	RoomID   string `json:"roomId"   validate:"max=64"`
	StrokeID string `json:"strokeId" validate:"required,max=128"`
}

type SaveCanvasRequest struct {
	RoomID     string          `json:"roomId"     validate:"max=64"`
	CanvasData json.RawMessage `json:"canvasData" validate:"required"`
}

type ChatMessageRequest struct {
	RoomID string `json:"roomId" validate:"max=64"`
	Text   string `json:"text"   validate:"required,max=2000"`
}

type TypingRequest struct {
	RoomID   string `json:"roomId" validate:"max=64"`
	IsTyping bool   `json:"isTyping"`
}

type ReactionRequest struct {
	RoomID    string `json:"roomId"    validate:"max=64"`
	MessageID string `json:"messageId" validate:"required,max=64"`
	Emoji     string `json:"emoji"     validate:"required,max=32"`
}

type FileSharedRequest struct {
	RoomID string          `json:"roomId" validate:"max=64"`
	File   json.RawMessage `json:"file"   validate:"required"`
}

type ScreenOfferRequest struct {
	RoomID string          `json:"roomId" validate:"max=64"`
	Offer  json.RawMessage `json:"offer"  validate:"required"`
	To     string          `json:"to"     validate:"required"`
}

type ScreenAnswerRequest struct {
	RoomID string          `json:"roomId" validate:"max=64"`
	Answer json.RawMessage `json:"answer" validate:"required"`
	To     string          `json:"to"     validate:"required"`
}

type IceCandidateRequest struct {
	RoomID    string          `json:"roomId"    validate:"max=64"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
	To        string          `json:"to"        validate:"required"`
}

type RoomUpdateRequest struct {
	RoomID         string `json:"roomId" validate:"max=64"`
	IsLocked       *bool  `json:"isLocked"`
	DrawingEnabled *bool  `json:"drawingEnabled"`
}

type KickUserRequest struct {
	RoomID string `json:"roomId" validate:"max=64"`
	UserID string `json:"userId" validate:"required"`
}
