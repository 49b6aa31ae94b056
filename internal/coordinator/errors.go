package coordinator

import (
	"errors"
	"fmt"

	"collabboard/internal/permission"
	"collabboard/internal/services/message"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotInRoom         = errors.New("connection has not joined this room")
	// ErrRoomInactive drops canvas events for a closed room without a reply.
	ErrRoomInactive = errors.New("room is not active")
	ErrRoomLocked   = errors.New("room is locked")
)

// NotFoundError is reported to the requester only; no state changes.
type NotFoundError struct {
	RoomID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("room %s not found", e.RoomID) }

// PermissionError is raised when the role of the requester does not allow
// the action. Silent denials are never reported to the client.
type PermissionError struct {
	Action permission.Action
	Role   permission.Role
	Silent bool
	Msg    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s may not %s", e.Role, e.Action)
}

// PersistenceError wraps a failed durable write. A broadcast that already
// went out is not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persist " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ClientMessage maps err to the text of the scoped error event sent back to
// the requester. An empty result means nothing is sent.
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		nf   *NotFoundError
		perm *PermissionError
		pe   *PersistenceError
	)
	switch {
	case errors.As(err, &nf):
		return "Room not found"
	case errors.As(err, &perm):
		if perm.Silent {
			return ""
		}
		if perm.Msg != "" {
			return perm.Msg
		}
		return "Permission denied"
	case errors.Is(err, message.ErrInvalidMessage):
		return "Invalid message"
	case errors.As(err, &pe):
		return "Failed to " + pe.Op
	case errors.Is(err, ErrRoomLocked):
		return "Room is locked"
	case errors.Is(err, ErrRoomInactive):
		return ""
	case errors.Is(err, ErrNotInRoom):
		return "Join the room first"
	}
	return "Internal error"
}
