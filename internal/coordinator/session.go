package coordinator

import (
	"collabboard/internal/services/identity"
)

// Conn is the outbound side of one live socket. Send must not block; it
// reports false when the frame was dropped.
type Conn interface {
	ID() string
	Send(evt Event) bool
}

type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateLeft
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the lifecycle record of one connection. Fields are guarded by
// the coordinator mutex.
type Session struct {
	conn     Conn
	identity identity.Identity
	state    State
	roomID   string
}
