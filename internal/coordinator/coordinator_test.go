package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"collabboard/internal/canvas"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestJoin_StateToJoinerAndDeltaToOthers(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("ABC123", "host", active)

	host := h.joined(t, "ABC123", "c-host", "host")
	host.reset()

	p := h.connect("c-p", "p", "Pat")
	role, roster, err := h.Join(ctx, "c-p", "abc123")
	require.NoError(t, err)
	assert.Equal(t, permission.RoleParticipant, role)
	require.Len(t, roster, 2)
	assert.Equal(t, "c-host", roster[0].SocketID)
	assert.Equal(t, "c-p", roster[1].SocketID)

	assert.Equal(t, []string{"room-state", "chat-history"}, p.names())
	state := p.received("room-state")[0].(RoomState)
	assert.Equal(t, permission.RoleParticipant, state.Role)
	assert.Len(t, state.Participants, 2)

	require.Equal(t, []string{"user-joined"}, host.names())
	joined := host.received("user-joined")[0].(UserJoined)
	assert.Equal(t, "p", joined.UserID)
	assert.Equal(t, "c-p", joined.SocketID)

	assert.Equal(t, StateJoined, h.State("c-p"))
	assert.Equal(t, "ABC123", h.RoomOf("c-p"))
}

func TestJoin_UnknownRoomChangesNothing(t *testing.T) {
	h := newHarness(t)
	c := h.connect("c1", "u1", "Una")

	_, _, err := h.Join(ctx, "c1", "nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "NOPE", nf.RoomID)
	assert.Equal(t, "Room not found", ClientMessage(err))
	assert.Empty(t, c.names())
	assert.Equal(t, "", h.RoomOf("c1"))
	assert.Empty(t, h.Participants("NOPE"))
}

func TestJoin_SameIdentityKeepsOneParticipantRecord(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("c%d", i)
		h.connect(id, "same-user", "Sam")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.Join(ctx, id, "R1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.rooms.participantCount("R1", "same-user"))
	assert.Len(t, h.Participants("R1"), 4)
}

func TestJoin_LockedRoomRefusesNewcomers(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", permission.Settings{IsActive: true, IsLocked: true},
		room.Participant{UserID: "old", Role: permission.RoleParticipant})

	h.connect("c-new", "new", "New")
	_, _, err := h.Join(ctx, "c-new", "R1")
	assert.ErrorIs(t, err, ErrRoomLocked)
	assert.Equal(t, "Room is locked", ClientMessage(err))

	h.connect("c-old", "old", "Old")
	_, _, err = h.Join(ctx, "c-old", "R1")
	assert.NoError(t, err)
}

func TestJoin_OtherRoomLeavesCurrentFirst(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.rooms.put("R2", "host", active)

	peer := h.joined(t, "R1", "c-peer", "peer")
	h.joined(t, "R1", "c-mover", "mover")
	peer.reset()

	_, _, err := h.Join(ctx, "c-mover", "R2")
	require.NoError(t, err)

	require.Len(t, peer.received("user-left"), 1)
	left := peer.received("user-left")[0].(UserLeft)
	assert.Equal(t, "c-mover", left.SocketID)
	assert.Len(t, h.Participants("R1"), 1)
	assert.Len(t, h.Participants("R2"), 1)
	assert.Equal(t, "R2", h.RoomOf("c-mover"))
}

func TestJoin_SendsRecentChatOldestFirst(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	for _, text := range []string{"one", "two", "three"} {
		_, err := h.SendMessage(ctx, "c-host", "R1", text)
		require.NoError(t, err)
	}

	late := h.joined(t, "R1", "c-late", "late")
	history := late.received("chat-history")[0].(ChatHistory)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Text)
	assert.Equal(t, "three", history[2].Text)
}

func TestObserverNeverCausesCanvasBroadcast(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active, room.Participant{UserID: "obs", Role: permission.RoleObserver})
	host := h.joined(t, "R1", "c-host", "host")
	h.joined(t, "R1", "c-obs", "obs")
	host.reset()

	stroke := canvas.Stroke{ID: "s1", Points: []canvas.Point{{X: 1, Y: 1}}}
	assert.Error(t, h.Draw(ctx, "c-obs", "R1", stroke))
	assert.Error(t, h.DrawDelta(ctx, "c-obs", "R1", "s1", canvas.Point{X: 2}, canvas.Stroke{}))
	assert.Error(t, h.DrawBatch(ctx, "c-obs", "R1", []canvas.Stroke{stroke}))
	assert.Error(t, h.Undo(ctx, "c-obs", "R1", "s1"))
	assert.Error(t, h.Redo(ctx, "c-obs", "R1", "s1"))
	assert.Error(t, h.SaveCanvas(ctx, "c-obs", "R1", canvas.Snapshot{}))

	err := h.Clear(ctx, "c-obs", "R1")
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.False(t, perm.Silent)

	h.Wait()
	assert.Empty(t, host.names())
	assert.Empty(t, h.rec.Get("R1"))
	assert.Zero(t, h.rooms.saves)
}

func TestDrawDenialIsSilent(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", permission.Settings{IsActive: true})
	h.joined(t, "R1", "c-host", "host")
	h.joined(t, "R1", "c-p", "p")

	err := h.Draw(ctx, "c-p", "R1", canvas.Stroke{ID: "s1"})
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.True(t, perm.Silent)
	assert.Equal(t, "", ClientMessage(err))
}

func TestClear_NonHostIsRefused(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.rooms.rooms["R1"].Canvas = canvas.Snapshot{Strokes: []json.RawMessage{json.RawMessage(`{"id":"keep"}`)}}
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	host.reset()
	p.reset()

	err := h.Clear(ctx, "c-p", "R1")
	assert.Equal(t, "Only host can clear", ClientMessage(err))

	h.Wait()
	assert.Empty(t, host.names())
	assert.Empty(t, p.names())
	assert.Len(t, h.rooms.canvasOf("R1").Strokes, 1)
}

func TestClear_HostReachesEveryoneAndResetsCanvas(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.rooms.rooms["R1"].Canvas = canvas.Snapshot{Strokes: []json.RawMessage{json.RawMessage(`{"id":"old"}`)}}
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")

	require.NoError(t, h.Clear(ctx, "c-host", "R1"))
	h.Wait()

	assert.Len(t, host.received("clear-board"), 1)
	assert.Len(t, p.received("clear-board"), 1)
	assert.Empty(t, h.rooms.canvasOf("R1").Strokes)

	log := h.rec.Get("R1")
	require.Len(t, log, 1)
	assert.Equal(t, recorder.KindClear, log[0].Type)
}

func TestDrawingEnabledToggle(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", permission.Settings{IsActive: true, DrawingEnabled: false})
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	other := h.joined(t, "R1", "c-o", "o")
	host.reset()
	other.reset()

	stroke := canvas.Stroke{ID: "s1", Tool: "pen", Points: []canvas.Point{{X: 1, Y: 2}}}
	_ = h.Draw(ctx, "c-p", "R1", stroke)
	assert.Empty(t, host.received("draw"))
	assert.Empty(t, other.received("draw"))
	assert.Empty(t, h.rec.Get("R1"))

	enabled := true
	s, err := h.UpdateRoom(ctx, "c-host", "R1", room.SettingsUpdate{DrawingEnabled: &enabled})
	require.NoError(t, err)
	assert.True(t, s.DrawingEnabled)
	changed := p.received("room-settings-changed")
	require.Len(t, changed, 1)
	assert.True(t, changed[0].(RoomSettingsChanged).DrawingEnabled)
	assert.Empty(t, host.received("room-settings-changed"))

	require.NoError(t, h.Draw(ctx, "c-p", "R1", stroke))
	require.Len(t, host.received("draw"), 1)
	require.Len(t, other.received("draw"), 1)
	assert.Empty(t, p.received("draw"))
	got := other.received("draw")[0].(Draw)
	assert.Equal(t, "s1", got.Stroke.ID)
	assert.Equal(t, "p", got.UserID)

	log := h.rec.Get("R1")
	require.Len(t, log, 1)
	assert.Equal(t, recorder.KindDraw, log[0].Type)
}

func TestUpdateRoom_HostOnly(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	h.joined(t, "R1", "c-p", "p")

	locked := true
	_, err := h.UpdateRoom(ctx, "c-p", "R1", room.SettingsUpdate{IsLocked: &locked})
	assert.Equal(t, "Only host can update room settings", ClientMessage(err))
	s, _ := h.rooms.Settings(ctx, "R1")
	assert.False(t, s.IsLocked)
}

func TestLeave_AfterConcurrentJoins(t *testing.T) {
	const n = 8
	h := newHarness(t)
	h.rooms.put("R1", "host", active)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		h.connect(id, fmt.Sprintf("u%d", i), "user")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.Join(ctx, id, "R1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	roster, err := h.Leave("c3", "R1")
	require.NoError(t, err)
	assert.Len(t, roster, n-1)
	got := h.Participants("R1")
	assert.Len(t, got, n-1)
	for _, m := range got {
		assert.NotEqual(t, "c3", m.SocketID)
	}
	assert.Equal(t, StateLeft, h.State("c3"))
}

func TestLeave_WrongRoom(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c1", "u1")

	_, err := h.Leave("c1", "R2")
	assert.ErrorIs(t, err, ErrNotInRoom)
	assert.Len(t, h.Participants("R1"), 1)
}

func TestDisconnect_RunsLeavePath(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	stay := h.joined(t, "R1", "c-stay", "stay")
	h.joined(t, "R1", "c-gone", "gone")
	stay.reset()

	h.Disconnect("c-gone")

	left := stay.received("user-left")
	require.Len(t, left, 1)
	assert.Equal(t, "gone", left[0].(UserLeft).UserID)
	assert.Len(t, left[0].(UserLeft).Participants, 1)
	assert.Equal(t, StateDisconnected, h.State("c-gone"))
	assert.ErrorIs(t, h.Draw(ctx, "c-gone", "R1", canvas.Stroke{ID: "x"}), ErrUnknownConnection)
}

func TestInterleavedDeltasKeepPerStrokeOrder(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "a", active, room.Participant{UserID: "b", Role: permission.RoleParticipant})
	h.joined(t, "R1", "c-a", "a")
	h.joined(t, "R1", "c-b", "b")

	pt := func(x float64) canvas.Point { return canvas.Point{X: x} }
	require.NoError(t, h.DrawDelta(ctx, "c-a", "R1", "A", pt(1), canvas.Stroke{Tool: "pen"}))
	require.NoError(t, h.DrawDelta(ctx, "c-b", "R1", "B", pt(10), canvas.Stroke{Tool: "marker"}))
	require.NoError(t, h.DrawDelta(ctx, "c-a", "R1", "A", pt(2), canvas.Stroke{}))
	require.NoError(t, h.DrawDelta(ctx, "c-b", "R1", "B", pt(20), canvas.Stroke{}))
	require.NoError(t, h.DrawDelta(ctx, "c-b", "R1", "B", pt(30), canvas.Stroke{}))
	require.NoError(t, h.DrawDelta(ctx, "c-a", "R1", "A", pt(3), canvas.Stroke{}))

	log := h.rec.Get("R1")
	require.Len(t, log, 2)
	a := log[0].Data.(canvas.Stroke)
	b := log[1].Data.(canvas.Stroke)
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, "pen", a.Tool)
	assert.Equal(t, []canvas.Point{pt(1), pt(2), pt(3)}, a.Points)
	assert.Equal(t, "B", b.ID)
	assert.Equal(t, []canvas.Point{pt(10), pt(20), pt(30)}, b.Points)
	assert.Equal(t, "b", log[1].UserID)
}

func TestInactiveRoomDropsCanvasEvents(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", permission.Settings{IsActive: false, DrawingEnabled: true})
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	host.reset()

	err := h.Draw(ctx, "c-p", "R1", canvas.Stroke{ID: "s"})
	assert.ErrorIs(t, err, ErrRoomInactive)
	assert.Equal(t, "", ClientMessage(err))
	assert.ErrorIs(t, h.Clear(ctx, "c-host", "R1"), ErrRoomInactive)
	assert.Empty(t, host.names())
	assert.Empty(t, p.received("clear-board"))

	// chat is not gated on the active flag
	_, err = h.SendMessage(ctx, "c-p", "R1", "still here")
	assert.NoError(t, err)
}

func TestStoredSettingsApplyWithoutRejoin(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	other := h.joined(t, "R1", "c-o", "o")
	host.reset()
	p.reset()
	other.reset()

	stroke := canvas.Stroke{ID: "s1", Points: []canvas.Point{{X: 1, Y: 1}}}

	h.rooms.setSettings("R1", permission.Settings{IsActive: true, DrawingEnabled: false})
	err := h.Draw(ctx, "c-p", "R1", stroke)
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.True(t, perm.Silent)
	require.ErrorAs(t, h.DrawDelta(ctx, "c-p", "R1", "s1", canvas.Point{X: 2}, canvas.Stroke{}), &perm)

	h.rooms.setSettings("R1", permission.Settings{IsActive: false, DrawingEnabled: true})
	assert.ErrorIs(t, h.Draw(ctx, "c-host", "R1", stroke), ErrRoomInactive)
	assert.ErrorIs(t, h.DrawDelta(ctx, "c-p", "R1", "s1", canvas.Point{X: 3}, canvas.Stroke{}), ErrRoomInactive)

	assert.Empty(t, host.names())
	assert.Empty(t, other.names())
	assert.Empty(t, p.names())
	assert.Empty(t, h.rec.Get("R1"))
}

func TestSettingsStoreErrorKeepsLastKnown(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	h.joined(t, "R1", "c-p", "p")
	host.reset()

	stroke := canvas.Stroke{ID: "s1"}

	h.rooms.setSettings("R1", permission.Settings{IsActive: true, DrawingEnabled: false})
	assert.Error(t, h.Draw(ctx, "c-p", "R1", stroke))

	// the store re-enables drawing but cannot be read
	h.rooms.setSettings("R1", active)
	h.rooms.failSettings(errors.New("redis down"))
	assert.Error(t, h.Draw(ctx, "c-p", "R1", stroke))
	assert.Empty(t, host.received("draw"))

	h.rooms.failSettings(nil)
	require.NoError(t, h.Draw(ctx, "c-p", "R1", stroke))
	assert.Len(t, host.received("draw"), 1)
}

func TestSaveCanvas_PersistsInBackground(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	host.reset()

	snap := canvas.Snapshot{Strokes: []json.RawMessage{json.RawMessage(`{"id":"a"}`)}, Objects: []json.RawMessage{}}
	require.NoError(t, h.SaveCanvas(ctx, "c-p", "R1", snap))
	h.Wait()

	assert.Equal(t, snap, h.rooms.canvasOf("R1"))
	assert.Empty(t, host.names())
	assert.Empty(t, p.received("draw"))
}

func TestUndoRedoAreForwardedAndRecorded(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")

	require.NoError(t, h.Undo(ctx, "c-host", "R1", "s1"))
	require.NoError(t, h.Redo(ctx, "c-host", "R1", "s1"))
	assert.Equal(t, "s1", p.received("undo")[0].(Undo).StrokeID)
	assert.Equal(t, "s1", p.received("redo")[0].(Redo).StrokeID)

	log := h.rec.Get("R1")
	require.Len(t, log, 2)
	assert.Equal(t, recorder.KindUndo, log[0].Type)
	assert.Equal(t, recorder.StrokeRef{StrokeID: "s1"}, log[0].Data)
	assert.Equal(t, recorder.KindRedo, log[1].Type)
}

func TestDrawBatchIsForwardedNotRecorded(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")

	strokes := []canvas.Stroke{{ID: "a"}, {ID: "b"}}
	require.NoError(t, h.DrawBatch(ctx, "c-host", "R1", strokes))
	require.Len(t, p.received("draw-batch"), 1)
	assert.Len(t, p.received("draw-batch")[0].(DrawBatch).Strokes, 2)
	assert.Empty(t, h.rec.Get("R1"))
}

func TestRecordingRetention(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	require.NoError(t, h.Draw(ctx, "c-host", "R1", canvas.Stroke{ID: "s1"}))
	_, err := h.Leave("c-host", "R1")
	require.NoError(t, err)

	h.clock.Add(59 * time.Minute)
	viewer := h.connect("c-view", "viewer", "Vi")
	require.NoError(t, h.Recording("c-view", "R1"))
	rec := viewer.received("session-recording")
	require.Len(t, rec, 1)
	assert.Len(t, rec[0].(SessionRecording).Recording, 1)

	h.clock.Add(2 * time.Minute)
	assert.Eventually(t, func() bool {
		log, ok := h.RecordingOf("R1")
		return ok && len(log) == 0 && !h.rec.Has("R1")
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, ok := h.registry["R1"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRecordingRetention_RejoinDoesNotCancel(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c-host", "host")
	_, _ = h.Leave("c-host", "R1")

	h.clock.Add(30 * time.Minute)
	_, _, err := h.Join(ctx, "c-host", "R1")
	require.NoError(t, err)
	require.NoError(t, h.Draw(ctx, "c-host", "R1", canvas.Stroke{ID: "s1"}))

	h.clock.Add(31 * time.Minute)
	assert.Eventually(t, func() bool { return !h.rec.Has("R1") }, time.Second, 5*time.Millisecond)
	// the live room survives the expiry
	assert.Len(t, h.Participants("R1"), 1)
}

func TestForceDelete(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	require.NoError(t, h.Draw(ctx, "c-host", "R1", canvas.Stroke{ID: "s1"}))
	host.reset()
	p.reset()

	assert.Equal(t, 2, h.ForceDelete("r1"))
	assert.Equal(t, 0, h.ForceDelete("R1"))
	h.Wait()

	for _, c := range []*fakeConn{host, p} {
		require.Equal(t, []string{"room-deleted"}, c.names())
		evt := c.received("room-deleted")[0].(RoomDeleted)
		assert.Equal(t, "R1", evt.RoomID)
		assert.Equal(t, "This room has been deleted by the host.", evt.Message)
	}
	assert.Equal(t, []string{"R1"}, h.rooms.forgotten)
	assert.Empty(t, h.Participants("R1"))
	assert.Equal(t, "", h.RoomOf("c-p"))
	assert.Equal(t, StateLeft, h.State("c-p"))

	// nothing is accepted or broadcast for the room afterwards
	assert.ErrorIs(t, h.Draw(ctx, "c-p", "R1", canvas.Stroke{ID: "s2"}), ErrNotInRoom)
	_, err := h.SendMessage(ctx, "c-host", "R1", "hello?")
	assert.ErrorIs(t, err, ErrNotInRoom)
	_, _, err = h.Join(ctx, "c-p", "R1")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, ok := h.RecordingOf("R1")
	assert.False(t, ok)
	assert.Equal(t, []string{"room-deleted"}, host.names())
	assert.Equal(t, []string{"room-deleted"}, p.names())
}

func TestForceDelete_UnknownRoomIsNoop(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 0, h.ForceDelete("GHOST"))
	assert.Equal(t, 0, h.ForceDelete("GHOST"))
}

func TestForceDelete_TombstoneLiftedAfterRetention(t *testing.T) {
	h := newHarness(t)
	h.ForceDelete("R1")
	h.rooms.put("R1", "host", active)

	h.connect("c1", "u1", "U")
	_, _, err := h.Join(ctx, "c1", "R1")
	require.Error(t, err)

	h.clock.Add(61 * time.Minute)
	assert.Eventually(t, func() bool {
		_, ok := h.RecordingOf("R1")
		return ok
	}, time.Second, 5*time.Millisecond)
	_, _, err = h.Join(ctx, "c1", "R1")
	assert.NoError(t, err)
}

func TestForceDelete_TombstoneOutlivesEarlierExpiries(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.joined(t, "R1", "c1", "host")
	_, err := h.Leave("c1", "R1")
	require.NoError(t, err)

	h.clock.Add(10 * time.Minute)
	_, _, err = h.Join(ctx, "c1", "R1")
	require.NoError(t, err)
	_, err = h.Leave("c1", "R1")
	require.NoError(t, err)

	// the first expiry discards the log, the second is still pending
	h.clock.Add(51 * time.Minute)
	assert.Eventually(t, func() bool { return !h.rec.Has("R1") }, time.Second, 5*time.Millisecond)

	_, _, err = h.Join(ctx, "c1", "R1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.ForceDelete("R1"))

	h.clock.Add(10 * time.Minute)
	assert.Never(t, func() bool {
		_, ok := h.RecordingOf("R1")
		return ok
	}, 100*time.Millisecond, 5*time.Millisecond)

	h.clock.Add(50 * time.Minute)
	assert.Eventually(t, func() bool {
		_, ok := h.RecordingOf("R1")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessage_ReachesWholeRoomAndIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")

	msg, err := h.SendMessage(ctx, "c-p", "R1", "hi all")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	for _, c := range []*fakeConn{host, p} {
		got := c.received("chat-message")
		require.Len(t, got, 1)
		cm := got[0].(ChatMessage)
		assert.Equal(t, msg.ID, cm.ID)
		assert.Equal(t, "hi all", cm.Text)
		assert.Equal(t, "p", cm.UserID)
		assert.False(t, cm.CreatedAt.IsZero())
	}

	log := h.rec.Get("R1")
	require.Len(t, log, 1)
	assert.Equal(t, recorder.KindChat, log[0].Type)
	assert.Equal(t, recorder.ChatEntry{Text: "hi all", UserName: "name-p"}, log[0].Data)
}

func TestSendMessage_Invalid(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	host.reset()

	_, err := h.SendMessage(ctx, "c-host", "R1", "")
	assert.Equal(t, "Invalid message", ClientMessage(err))
	assert.Empty(t, host.names())
}

func TestTypingAndReactions(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active, room.Participant{UserID: "obs", Role: permission.RoleObserver})
	host := h.joined(t, "R1", "c-host", "host")
	obs := h.joined(t, "R1", "c-obs", "obs")
	host.reset()
	obs.reset()

	require.NoError(t, h.SetTyping(ctx, "c-obs", "R1", true))
	assert.Len(t, host.received("typing"), 1)
	assert.Empty(t, obs.received("typing"))

	require.NoError(t, h.React(ctx, "c-obs", "R1", "m1", "👍"))
	assert.Len(t, host.received("reaction"), 1)
	assert.Len(t, obs.received("reaction"), 1)
	assert.Equal(t, "m1", host.received("reaction")[0].(Reaction).MessageID)

	require.NoError(t, h.ShareFile(ctx, "c-obs", "R1", json.RawMessage(`{"name":"a.png"}`)))
	assert.Len(t, host.received("file-shared"), 1)
	assert.Empty(t, obs.received("file-shared"))

	assert.Empty(t, h.rec.Get("R1"))
}

func TestMoveCursor(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	host.reset()
	p.reset()

	require.NoError(t, h.MoveCursor(ctx, "c-p", "R1", 3, 4))
	got := host.received("cursor-move")
	require.Len(t, got, 1)
	assert.Equal(t, CursorMove{UserID: "p", UserName: "name-p", X: 3, Y: 4}, got[0])
	assert.Empty(t, p.names())

	roster := h.Participants("R1")
	require.NotNil(t, roster[1].Cursor)
	assert.Equal(t, 3.0, roster[1].Cursor.X)
}

func TestRelay(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	other := h.joined(t, "R1", "c-o", "o")
	host.reset()
	p.reset()
	other.reset()

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, h.Relay("c-host", "R1", SignalOffer, "c-p", offer))
	got := p.received("screen-offer")
	require.Len(t, got, 1)
	assert.Equal(t, ScreenOffer{Offer: offer, From: "c-host", UserName: "name-host"}, got[0])
	assert.Empty(t, other.names())
	assert.Empty(t, host.names())

	require.NoError(t, h.Relay("c-p", "R1", SignalAnswer, "c-host", json.RawMessage(`{}`)))
	require.NoError(t, h.Relay("c-p", "R1", SignalCandidate, "c-host", json.RawMessage(`{"candidate":"x"}`)))
	assert.Equal(t, []string{"screen-answer", "ice-candidate"}, host.names())
	assert.Equal(t, "c-p", host.received("ice-candidate")[0].(IceCandidate).From)

	assert.NoError(t, h.Relay("c-p", "R1", SignalOffer, "c-missing", offer))
	assert.Error(t, h.Relay("c-p", "R1", SignalKind("bogus"), "c-host", offer))
}

func TestScreenShareHints(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p := h.joined(t, "R1", "c-p", "p")
	p.reset()

	require.NoError(t, h.ScreenShare(ctx, "c-host", "R1", true))
	require.NoError(t, h.ScreenShare(ctx, "c-host", "R1", false))
	assert.Equal(t, []string{"screen-share-started", "screen-share-stopped"}, p.names())
	assert.Equal(t, "c-host", p.received("screen-share-started")[0].(ScreenShareStarted).SocketID)
	assert.Empty(t, host.received("screen-share-started"))
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	host := h.joined(t, "R1", "c-host", "host")
	p1 := h.joined(t, "R1", "c-p1", "p")
	p2 := h.joined(t, "R1", "c-p2", "p")
	h.joined(t, "R1", "c-q", "q")
	host.reset()

	_, err := h.Kick(ctx, "c-q", "R1", "p")
	assert.Equal(t, "Only host can kick users", ClientMessage(err))

	n, err := h.Kick(ctx, "c-host", "R1", "p")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, p1.received("kicked"), 1)
	assert.Len(t, p2.received("kicked"), 1)
	assert.Len(t, host.received("user-left"), 2)
	assert.Len(t, h.Participants("R1"), 2)
	assert.Equal(t, "", h.RoomOf("c-p1"))
}

func TestEventsRequireJoinedRoom(t *testing.T) {
	h := newHarness(t)
	h.rooms.put("R1", "host", active)
	h.rooms.put("R2", "host", active)
	h.connect("c-idle", "idle", "Idle")
	h.joined(t, "R1", "c-host", "host")

	assert.ErrorIs(t, h.Draw(ctx, "c-idle", "R1", canvas.Stroke{ID: "s"}), ErrNotInRoom)
	assert.ErrorIs(t, h.Draw(ctx, "c-host", "R2", canvas.Stroke{ID: "s"}), ErrNotInRoom)
	assert.ErrorIs(t, h.Draw(ctx, "c-nobody", "R1", canvas.Stroke{ID: "s"}), ErrUnknownConnection)
	assert.Equal(t, "Join the room first", ClientMessage(ErrNotInRoom))
}
