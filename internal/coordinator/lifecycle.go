package coordinator

import (
	"context"

	"collabboard/internal/metrics"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/room"

	"go.uber.org/zap"
)

const deletedNotice = "This room has been deleted by the host."

// UpdateRoom stores new lock/drawing settings and pushes the resulting
// settings to the other members. Host only.
func (c *Coordinator) UpdateRoom(ctx context.Context, connID, roomID string, upd room.SettingsUpdate) (permission.Settings, error) {
	var a actor
	err := c.do(ctx, connID, roomID, permission.ActionSettings, false, func(got actor, _ *member) error {
		a = got
		return nil
	})
	if err != nil {
		return permission.Settings{}, err
	}

	s, err := c.rooms.UpdateSettings(ctx, a.roomID, upd)
	if err != nil {
		return permission.Settings{}, &PersistenceError{Op: "update room", Err: err}
	}
	a.room(func(rs *roomState) {
		rs.settings = s
		rs.broadcast(RoomSettingsChanged{IsLocked: s.IsLocked, DrawingEnabled: s.DrawingEnabled}, a.connID)
	})
	return s, nil
}

// Kick removes every connection of userID from the room. Each one receives
// kicked and then goes through the regular leave path. Host only.
func (c *Coordinator) Kick(ctx context.Context, connID, roomID, userID string) (int, error) {
	var targets []Conn
	err := c.do(ctx, connID, roomID, permission.ActionKick, false, func(a actor, _ *member) error {
		for id, m := range a.rs.members {
			if m.userID == userID && id != connID {
				targets = append(targets, m.conn)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, t := range targets {
		send(t, Kicked{})
		c.leave(t.ID(), StateLeft)
	}
	return len(targets), nil
}

// ForceDelete announces the deletion of a room to every member and evicts
// them without closing their sockets. Later events for the room id are
// refused. Calling it again is a no-op.
func (c *Coordinator) ForceDelete(roomID string) int {
	id := NormalizeRoomID(roomID)

	c.mu.Lock()
	if _, gone := c.deleted[id]; gone {
		c.mu.Unlock()
		return 0
	}
	c.deleted[id] = c.rec.Deadline()

	var evicted []Conn
	if rs := c.registry[id]; rs != nil {
		rs.mu.Lock()
		rs.closed = true
		for cid, m := range rs.members {
			evicted = append(evicted, m.conn)
			if s, ok := c.sessions[cid]; ok && s.roomID == id {
				s.roomID = ""
				s.state = StateLeft
			}
		}
		rs.members = make(map[string]*member)
		rs.mu.Unlock()
		delete(c.registry, id)
		metrics.RoomsActive.Dec()
	}
	c.mu.Unlock()

	evt := RoomDeleted{RoomID: id, Message: deletedNotice}
	for _, conn := range evicted {
		send(conn, evt)
	}

	c.rec.Drop(id)
	// the expiry hook lifts the tombstone once the retention period is over
	c.rec.ScheduleExpiry(id)
	c.persist("forget room", id, func(ctx context.Context) error {
		return c.rooms.Forget(ctx, id)
	})

	zap.L().Info("coordinator.room_deleted", zap.String("room_id", id), zap.Int("evicted", len(evicted)))
	return len(evicted)
}

// Recording sends the room's session log to the requester. Membership is not
// required; an empty roomID means the current room.
func (c *Coordinator) Recording(connID, roomID string) error {
	c.mu.Lock()
	s, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownConnection
	}
	id := NormalizeRoomID(roomID)
	if id == "" {
		id = s.roomID
	}
	c.mu.Unlock()

	log, ok := c.RecordingOf(id)
	if !ok {
		return &NotFoundError{RoomID: id}
	}
	send(s.conn, SessionRecording{Recording: log})
	return nil
}

// RecordingOf returns the session log of a room. It reports false for
// deleted rooms.
func (c *Coordinator) RecordingOf(roomID string) ([]recorder.Record, bool) {
	id := NormalizeRoomID(roomID)
	c.mu.Lock()
	_, gone := c.deleted[id]
	c.mu.Unlock()
	if gone || id == "" {
		return nil, false
	}
	return c.rec.Get(id), true
}
