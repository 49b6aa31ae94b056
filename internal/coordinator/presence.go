package coordinator

import (
	"context"
	"errors"
	"time"

	"collabboard/internal/canvas"
	"collabboard/internal/metrics"
	"collabboard/internal/permission"
	"collabboard/internal/services/message"
	"collabboard/internal/services/room"

	"go.uber.org/zap"
)

// Join attaches the connection to a room. The joiner receives room-state and
// chat-history, every other member receives user-joined. Joining another
// room first leaves the current one.
func (c *Coordinator) Join(ctx context.Context, connID, rawRoomID string) (permission.Role, []Member, error) {
	id := NormalizeRoomID(rawRoomID)

	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return "", nil, ErrUnknownConnection
	}
	who := sess.identity
	prev := sess.roomID
	_, gone := c.deleted[id]
	c.mu.Unlock()
	if id == "" || gone {
		return "", nil, &NotFoundError{RoomID: id}
	}

	r, err := c.rooms.GetRoom(ctx, id)
	if errors.Is(err, room.ErrRoomNotFound) {
		return "", nil, &NotFoundError{RoomID: id}
	}
	if err != nil {
		return "", nil, &PersistenceError{Op: "join room", Err: err}
	}

	if !r.IsMember(who.ID) {
		if r.Settings.IsLocked {
			return "", nil, ErrRoomLocked
		}
		if err := c.rooms.AddParticipant(ctx, id, who.ID); err != nil {
			return "", nil, &PersistenceError{Op: "join room", Err: err}
		}
		r.Participants = append(r.Participants, room.Participant{
			UserID:   who.ID,
			Role:     permission.RoleParticipant,
			JoinedAt: time.Now(),
		})
	}
	role := r.RoleOf(who.ID)

	history, err := c.messages.Recent(ctx, id, c.historyLimit)
	if err != nil {
		zap.L().Warn("coordinator.chat_history", zap.String("room_id", id), zap.Error(err))
		history = []message.Message{}
	}

	if prev != "" && prev != id {
		c.leave(connID, StateLeft)
	}

	c.mu.Lock()
	if sess, ok = c.sessions[connID]; !ok {
		c.mu.Unlock()
		return "", nil, ErrUnknownConnection
	}
	if _, gone := c.deleted[id]; gone {
		c.mu.Unlock()
		return "", nil, &NotFoundError{RoomID: id}
	}
	rs := c.registry[id]
	if rs == nil {
		rs = newRoomState(id)
		c.registry[id] = rs
		metrics.RoomsActive.Inc()
	}
	rs.mu.Lock()
	sess.roomID = id
	sess.state = StateJoined
	c.mu.Unlock()
	defer rs.mu.Unlock()

	rs.settings = r.Settings
	m, rejoin := rs.members[connID]
	if !rejoin {
		rs.seq++
		m = &member{conn: sess.conn, seq: rs.seq}
		rs.members[connID] = m
	}
	m.userID = who.ID
	m.userName = who.Name
	m.avatar = who.Avatar
	m.role = role
	c.rec.Ensure(id)

	roster := rs.roster()
	send(sess.conn, RoomState{CanvasData: r.Canvas, Participants: roster, Role: role})
	rs.broadcast(UserJoined{
		UserID:       who.ID,
		UserName:     who.Name,
		SocketID:     connID,
		Participants: roster,
	}, connID)
	send(sess.conn, ChatHistory(history))

	zap.L().Debug("coordinator.joined",
		zap.String("room_id", id),
		zap.String("user_id", who.ID),
		zap.String("role", string(role)))
	return role, roster, nil
}

// Leave detaches the connection from its room and returns the remaining
// roster. An empty roomID means the current room.
func (c *Coordinator) Leave(connID, roomID string) ([]Member, error) {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrUnknownConnection
	}
	cur := sess.roomID
	c.mu.Unlock()

	if roomID != "" && NormalizeRoomID(roomID) != cur {
		return nil, ErrNotInRoom
	}
	roster, _ := c.leave(connID, StateLeft)
	return roster, nil
}

// leave removes the connection from its room and announces it. When the
// roster becomes empty the recording retention timer is armed.
func (c *Coordinator) leave(connID string, next State) ([]Member, bool) {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok || sess.roomID == "" {
		c.mu.Unlock()
		return nil, false
	}
	id := sess.roomID
	who := sess.identity
	sess.roomID = ""
	sess.state = next
	rs := c.registry[id]
	if rs == nil {
		c.mu.Unlock()
		return nil, false
	}
	rs.mu.Lock()
	c.mu.Unlock()
	defer rs.mu.Unlock()

	if _, ok := rs.members[connID]; !ok {
		return nil, false
	}
	delete(rs.members, connID)
	roster := rs.roster()
	rs.broadcast(UserLeft{
		UserID:       who.ID,
		SocketID:     connID,
		UserName:     who.Name,
		Participants: roster,
	}, connID)

	if len(rs.members) == 0 {
		c.rec.ScheduleExpiry(id)
	}
	return roster, true
}

// MoveCursor stores the cursor of the connection and shows it to the others.
func (c *Coordinator) MoveCursor(ctx context.Context, connID, roomID string, x, y float64) error {
	return c.do(ctx, connID, roomID, permission.ActionCursor, false, func(a actor, m *member) error {
		m.cursor = &canvas.Point{X: x, Y: y}
		a.rs.broadcast(CursorMove{UserID: m.userID, UserName: m.userName, X: x, Y: y}, a.connID)
		return nil
	})
}
