// Package coordinator owns the live state of every room: presence, role
// enforcement, canvas and chat fan-out, signaling relay and the session
// recording. Operations on one room are serialized by that room's mutex.
//
// Lock order is coordinator mutex, then room mutex, then the recorder's
// internal mutex. No path acquires them in the other direction.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"collabboard/internal/metrics"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/identity"
	"collabboard/internal/services/message"
	"collabboard/internal/services/room"

	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

type Coordinator struct {
	rooms        room.IRoomService
	messages     message.IMessageService
	rec          *recorder.Recorder
	historyLimit int

	mu       sync.Mutex
	registry map[string]*roomState // room id -> live presence
	sessions map[string]*Session   // connection id -> session
	deleted  map[string]time.Time  // force-deleted room id -> end of its tombstone

	pending sync.WaitGroup
}

func New(rooms room.IRoomService, messages message.IMessageService, rec *recorder.Recorder, historyLimit int) *Coordinator {
	c := &Coordinator{
		rooms:        rooms,
		messages:     messages,
		rec:          rec,
		historyLimit: historyLimit,
		registry:     make(map[string]*roomState),
		sessions:     make(map[string]*Session),
		deleted:      make(map[string]time.Time),
	}
	rec.OnExpire(c.reap)
	return c
}

// NormalizeRoomID returns the canonical (upper-case) form of a room id.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Connect registers an admitted connection.
func (c *Coordinator) Connect(conn Conn, who identity.Identity) {
	c.mu.Lock()
	c.sessions[conn.ID()] = &Session{conn: conn, identity: who, state: StateAuthenticated}
	c.mu.Unlock()
	metrics.ConnectionsActive.Inc()
}

// Disconnect runs the leave path for the connection and forgets it.
func (c *Coordinator) Disconnect(connID string) {
	c.leave(connID, StateDisconnected)

	c.mu.Lock()
	_, ok := c.sessions[connID]
	delete(c.sessions, connID)
	c.mu.Unlock()
	if ok {
		metrics.ConnectionsActive.Dec()
	}
}

// State returns the lifecycle state of a connection.
func (c *Coordinator) State(connID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[connID]; ok {
		return s.state
	}
	return StateDisconnected
}

// RoomOf returns the room the connection has joined, or "".
func (c *Coordinator) RoomOf(connID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[connID]; ok {
		return s.roomID
	}
	return ""
}

// Participants returns the live roster of a room in join order.
func (c *Coordinator) Participants(roomID string) []Member {
	c.mu.Lock()
	rs := c.registry[NormalizeRoomID(roomID)]
	if rs == nil {
		c.mu.Unlock()
		return []Member{}
	}
	rs.mu.Lock()
	c.mu.Unlock()
	defer rs.mu.Unlock()
	return rs.roster()
}

// Wait blocks until every asynchronous write has finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// actor is a connection resolved to the room it has joined.
type actor struct {
	connID   string
	userID   string
	userName string
	roomID   string
	rs       *roomState
}

func (c *Coordinator) actorOf(connID, roomID string) (actor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[connID]
	if !ok {
		return actor{}, ErrUnknownConnection
	}
	a := actor{connID: connID, userID: s.identity.ID, userName: s.identity.Name, roomID: s.roomID}
	if s.roomID == "" || (roomID != "" && NormalizeRoomID(roomID) != s.roomID) {
		return a, ErrNotInRoom
	}
	if _, gone := c.deleted[s.roomID]; gone {
		return a, ErrNotInRoom
	}
	if a.rs = c.registry[s.roomID]; a.rs == nil {
		return a, ErrNotInRoom
	}
	return a, nil
}

// locked runs fn under the room mutex if the connection is still a member.
func (a actor) locked(fn func(m *member) error) error {
	a.rs.mu.Lock()
	defer a.rs.mu.Unlock()
	m, ok := a.rs.members[a.connID]
	if a.rs.closed || !ok {
		return ErrNotInRoom
	}
	return fn(m)
}

// room runs fn under the room mutex unless the room has been closed. The
// connection itself need not be a member anymore.
func (a actor) room(fn func(rs *roomState)) {
	a.rs.mu.Lock()
	defer a.rs.mu.Unlock()
	if !a.rs.closed {
		fn(a.rs)
	}
}

var denials = map[permission.Action]string{
	permission.ActionClear:    "Only host can clear",
	permission.ActionSettings: "Only host can update room settings",
	permission.ActionKick:     "Only host can kick users",
}

// do resolves connID, checks the action against the policy and runs fn
// under the room mutex. With requireActive the event is dropped when the
// room is not active.
func (c *Coordinator) do(ctx context.Context, connID, roomID string, action permission.Action, requireActive bool, fn func(a actor, m *member) error) error {
	a, err := c.actorOf(connID, roomID)
	if err != nil {
		return err
	}

	var fresh *permission.Settings
	if requireActive || permission.IsDrawClass(action) {
		if s, err := c.rooms.Settings(ctx, a.roomID); err == nil {
			fresh = &s
		} else {
			zap.L().Debug("coordinator.settings", zap.String("room_id", a.roomID), zap.Error(err))
		}
	}

	return a.locked(func(m *member) error {
		if fresh != nil {
			a.rs.settings = *fresh
		}
		s := a.rs.settings
		if requireActive && !s.IsActive {
			return ErrRoomInactive
		}
		if !permission.Allowed(m.role, action, s) {
			metrics.PermissionDenied.WithLabelValues(string(action)).Inc()
			return &PermissionError{
				Action: action,
				Role:   m.role,
				Silent: permission.IsDrawClass(action),
				Msg:    denials[action],
			}
		}
		return fn(a, m)
	})
}

// persist runs a durable write in the background. Failures are logged and
// counted; nothing already broadcast is rolled back.
func (c *Coordinator) persist(op, roomID string, write func(ctx context.Context) error) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			metrics.PersistenceFailures.WithLabelValues(op).Inc()
			zap.L().Error("coordinator.persist",
				zap.String("room_id", roomID),
				zap.Error(&PersistenceError{Op: op, Err: err}))
		}
	}()
}

// reap runs when a recording retention timer fires. The registry entry is
// destroyed if the room is still empty, and a tombstone whose retention has
// run out is lifted.
func (c *Coordinator) reap(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if until, ok := c.deleted[roomID]; ok && !c.rec.Now().Before(until) {
		delete(c.deleted, roomID)
	}
	rs := c.registry[roomID]
	if rs == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.members) > 0 {
		return
	}
	rs.closed = true
	delete(c.registry, roomID)
	metrics.RoomsActive.Dec()
	metrics.RecordingsExpired.Inc()
	zap.L().Debug("coordinator.room_reaped", zap.String("room_id", roomID))
}
