package coordinator

import (
	"encoding/json"
	"time"

	"collabboard/internal/canvas"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/message"
)

// Event is an outbound frame. The set of implementations is closed: one type
// per outbound event name.
type Event interface {
	EventName() string
}

// Member is the roster view of one live connection.
type Member struct {
	SocketID string          `json:"socketId"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	Avatar   string          `json:"avatar"`
	Role     permission.Role `json:"role"`
	Cursor   *canvas.Point   `json:"cursor"`
}

type RoomState struct {
	CanvasData   canvas.Snapshot `json:"canvasData"`
	Participants []Member        `json:"participants"`
	Role         permission.Role `json:"role"`
}

type UserJoined struct {
	UserID       string   `json:"userId"`
	UserName     string   `json:"userName"`
	SocketID     string   `json:"socketId"`
	Participants []Member `json:"participants"`
}

type UserLeft struct {
	UserID       string   `json:"userId"`
	SocketID     string   `json:"socketId"`
	UserName     string   `json:"userName"`
	Participants []Member `json:"participants"`
}

type Draw struct {
	Stroke   canvas.Stroke `json:"stroke"`
	UserID   string        `json:"userId"`
	UserName string        `json:"userName"`
}

type DrawDelta struct {
	StrokeID string       `json:"strokeId"`
	Point    canvas.Point `json:"point"`
	Tool     string       `json:"tool,omitempty"`
	Color    string       `json:"color,omitempty"`
	Size     float64      `json:"size,omitempty"`
	UserID   string       `json:"userId"`
}

type DrawBatch struct {
	Strokes []canvas.Stroke `json:"strokes"`
	UserID  string          `json:"userId"`
}

type CursorMove struct {
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type Undo struct {
	StrokeID string `json:"strokeId"`
	UserID   string `json:"userId"`
}

type Redo struct {
	StrokeID string `json:"strokeId"`
	UserID   string `json:"userId"`
}

type ClearBoard struct {
	UserID string `json:"userId"`
}

// ChatHistory is sent as a bare array, oldest message first.
type ChatHistory []message.Message

type ChatMessage struct {
	ID        string    `json:"_id"`
	RoomID    string    `json:"roomId"`
	Text      string    `json:"text"`
	UserName  string    `json:"userName"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Typing struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type Reaction struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
}

type FileShared struct {
	File     json.RawMessage `json:"file"`
	UserName string          `json:"userName"`
}

type ScreenOffer struct {
	Offer    json.RawMessage `json:"offer"`
	From     string          `json:"from"`
	UserName string          `json:"userName"`
}

type ScreenAnswer struct {
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

type IceCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type ScreenShareStarted struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	SocketID string `json:"socketId"`
}

type ScreenShareStopped struct {
	UserID string `json:"userId"`
}

type SessionRecording struct {
	Recording []recorder.Record `json:"recording"`
}

type RoomSettingsChanged struct {
	IsLocked       bool `json:"isLocked"`
	DrawingEnabled bool `json:"drawingEnabled"`
}

type Kicked struct{}

type RoomDeleted struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type Error struct {
	Message string `json:"message"`
}

func (RoomState) EventName() string           { return "room-state" }
func (UserJoined) EventName() string          { return "user-joined" }
func (UserLeft) EventName() string            { return "user-left" }
func (Draw) EventName() string                { return "draw" }
func (DrawDelta) EventName() string           { return "draw-delta" }
func (DrawBatch) EventName() string           { return "draw-batch" }
func (CursorMove) EventName() string          { return "cursor-move" }
func (Undo) EventName() string                { return "undo" }
func (Redo) EventName() string                { return "redo" }
func (ClearBoard) EventName() string          { return "clear-board" }
func (ChatHistory) EventName() string         { return "chat-history" }
func (ChatMessage) EventName() string         { return "chat-message" }
func (Typing) EventName() string              { return "typing" }
func (Reaction) EventName() string            { return "reaction" }
func (FileShared) EventName() string          { return "file-shared" }
func (ScreenOffer) EventName() string         { return "screen-offer" }
func (ScreenAnswer) EventName() string        { return "screen-answer" }
func (IceCandidate) EventName() string        { return "ice-candidate" }
func (ScreenShareStarted) EventName() string  { return "screen-share-started" }
func (ScreenShareStopped) EventName() string  { return "screen-share-stopped" }
func (SessionRecording) EventName() string    { return "session-recording" }
func (RoomSettingsChanged) EventName() string { return "room-settings-changed" }
func (Kicked) EventName() string              { return "kicked" }
func (RoomDeleted) EventName() string         { return "room-deleted" }
func (Error) EventName() string               { return "error" }
