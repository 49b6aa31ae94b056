package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"collabboard/internal/permission"

	"go.uber.org/zap"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "screen-offer"
	SignalAnswer    SignalKind = "screen-answer"
	SignalCandidate SignalKind = "ice-candidate"
)

// Relay forwards a media negotiation payload verbatim to the connection to,
// tagged with the sender's connection id. The target is trusted to be a
// member of the sender's room. Unknown targets are dropped.
func (c *Coordinator) Relay(connID, roomID string, kind SignalKind, to string, payload json.RawMessage) error {
	c.mu.Lock()
	from, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownConnection
	}
	if _, gone := c.deleted[NormalizeRoomID(roomID)]; gone && roomID != "" {
		c.mu.Unlock()
		return ErrNotInRoom
	}
	name := from.identity.Name
	target, ok := c.sessions[to]
	c.mu.Unlock()

	var evt Event
	switch kind {
	case SignalOffer:
		evt = ScreenOffer{Offer: payload, From: connID, UserName: name}
	case SignalAnswer:
		evt = ScreenAnswer{Answer: payload, From: connID}
	case SignalCandidate:
		evt = IceCandidate{Candidate: payload, From: connID}
	default:
		return fmt.Errorf("unknown signal %q", kind)
	}

	if !ok {
		zap.L().Debug("coordinator.relay_target_gone", zap.String("to", to), zap.String("kind", string(kind)))
		return nil
	}
	send(target.conn, evt)
	return nil
}

// ScreenShare announces that the connection started or stopped sharing its
// screen. Other members use the socket id as the signaling target.
func (c *Coordinator) ScreenShare(ctx context.Context, connID, roomID string, started bool) error {
	return c.do(ctx, connID, roomID, permission.ActionScreen, false, func(a actor, m *member) error {
		if started {
			a.rs.broadcast(ScreenShareStarted{UserID: m.userID, UserName: m.userName, SocketID: a.connID}, a.connID)
		} else {
			a.rs.broadcast(ScreenShareStopped{UserID: m.userID}, a.connID)
		}
		return nil
	})
}
