package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"collabboard/internal/canvas"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/identity"
	"collabboard/internal/services/message"
	"collabboard/internal/services/room"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []Event
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(evt Event) bool {
	f.mu.Lock()
	f.events = append(f.events, evt)
	f.mu.Unlock()
	return true
}

func (f *fakeConn) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventName()
	}
	return out
}

func (f *fakeConn) received(name string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, e := range f.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

type fakeRooms struct {
	mu        sync.Mutex
	rooms     map[string]*room.Room
	adds      int
	forgotten []string
	saves     int

	settingsErr error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]*room.Room)}
}

func (f *fakeRooms) put(id, host string, s permission.Settings, participants ...room.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id] = &room.Room{ID: id, HostID: host, Settings: s, Participants: participants, Canvas: canvas.Empty()}
}

// setSettings changes the stored settings the way the room-management layer
// would, bypassing the coordinator.
func (f *fakeRooms) setSettings(id string, s permission.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id].Settings = s
}

func (f *fakeRooms) failSettings(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingsErr = err
}

func (f *fakeRooms) canvasOf(id string) canvas.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[id].Canvas
}

func (f *fakeRooms) participantCount(roomID, userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.rooms[roomID].Participants {
		if p.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeRooms) GetRoom(_ context.Context, id string) (*room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	cp := *r
	cp.Participants = append([]room.Participant(nil), r.Participants...)
	return &cp, nil
}

func (f *fakeRooms) AddParticipant(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	r := f.rooms[id]
	if !r.IsMember(userID) {
		r.Participants = append(r.Participants, room.Participant{UserID: userID, Role: permission.RoleParticipant})
	}
	return nil
}

func (f *fakeRooms) Settings(_ context.Context, id string) (permission.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return permission.Settings{}, f.settingsErr
	}
	r, ok := f.rooms[id]
	if !ok {
		return permission.Settings{}, room.ErrRoomNotFound
	}
	return r.Settings, nil
}

func (f *fakeRooms) UpdateSettings(_ context.Context, id string, upd room.SettingsUpdate) (permission.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rooms[id]
	if upd.IsLocked != nil {
		r.Settings.IsLocked = *upd.IsLocked
	}
	if upd.DrawingEnabled != nil {
		r.Settings.DrawingEnabled = *upd.DrawingEnabled
	}
	return r.Settings, nil
}

func (f *fakeRooms) SaveCanvas(_ context.Context, id string, snap canvas.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.rooms[id].Canvas = snap
	return nil
}

func (f *fakeRooms) ClearCanvas(ctx context.Context, id string) error {
	return f.SaveCanvas(ctx, id, canvas.Empty())
}

func (f *fakeRooms) Forget(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []message.Message
}

func (f *fakeMessages) Create(_ context.Context, in message.NewMessage) (*message.Message, error) {
	if in.Text == "" || len(in.Text) > 2000 {
		return nil, message.ErrInvalidMessage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := message.Message{
		ID:        uuid.NewString(),
		RoomID:    in.RoomID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Text:      in.Text,
		Type:      in.Type,
		CreatedAt: time.Now().UTC(),
	}
	f.msgs = append(f.msgs, m)
	return &m, nil
}

func (f *fakeMessages) Recent(_ context.Context, roomID string, limit int) ([]message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type harness struct {
	*Coordinator
	rooms    *fakeRooms
	messages *fakeMessages
	rec      *recorder.Recorder
	clock    *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	rec := recorder.New(clk, time.Hour, false)
	rooms := newFakeRooms()
	msgs := &fakeMessages{}
	h := &harness{
		Coordinator: New(rooms, msgs, rec, 50),
		rooms:       rooms,
		messages:    msgs,
		rec:         rec,
		clock:       clk,
	}
	t.Cleanup(h.Wait)
	return h
}

func (h *harness) connect(connID, userID, name string) *fakeConn {
	c := &fakeConn{id: connID}
	h.Connect(c, identity.Identity{ID: userID, Name: name})
	return c
}

// joined connects a user and joins roomID, failing the test on error.
func (h *harness) joined(t *testing.T, roomID, connID, userID string) *fakeConn {
	t.Helper()
	c := h.connect(connID, userID, "name-"+userID)
	if _, _, err := h.Join(context.Background(), connID, roomID); err != nil {
		t.Fatalf("join %s: %v", connID, err)
	}
	return c
}

var active = permission.Settings{IsActive: true, DrawingEnabled: true}
