// Package recorder keeps the in-memory, append-only event log of every room
// for replay and export. Logs live only in process memory.
package recorder

import (
	"sync"
	"time"

	"collabboard/internal/canvas"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Kind string

const (
	KindDraw  Kind = "draw"
	KindUndo  Kind = "undo"
	KindRedo  Kind = "redo"
	KindClear Kind = "clear"
	KindChat  Kind = "chat"
)

// Record is one entry of a room log. Data is a canvas.Stroke for draw
// records, a StrokeRef for undo/redo, a ChatEntry for chat and an empty
// object for clear.
type Record struct {
	Type      Kind   `json:"type"`
	Data      any    `json:"data"`
	UserID    string `json:"userId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type StrokeRef struct {
	StrokeID string `json:"strokeId"`
}

type ChatEntry struct {
	Text     string `json:"text"`
	UserName string `json:"userName"`
}

type roomLog struct {
	records []Record
	open    map[string]*canvas.Stroke // stroke id -> Data of its draw record
}

type expiry struct {
	id    uint64
	timer *clock.Timer
}

type Recorder struct {
	mu             sync.Mutex
	clock          clock.Clock
	retention      time.Duration
	cancelOnRejoin bool
	logs           map[string]*roomLog
	timers         map[string][]expiry // pending expiries, kept across log lifetimes
	nextExpiry     uint64
	onExpire       func(roomID string)
}

// New creates a recorder. When cancelOnRejoin is false a pending expiry keeps
// running after the room is rejoined.
func New(clk clock.Clock, retention time.Duration, cancelOnRejoin bool) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		clock:          clk,
		retention:      retention,
		cancelOnRejoin: cancelOnRejoin,
		logs:           make(map[string]*roomLog),
		timers:         make(map[string][]expiry),
	}
}

// OnExpire registers f to run after a room log has been discarded by its
// retention timer.
func (r *Recorder) OnExpire(f func(roomID string)) {
	r.mu.Lock()
	r.onExpire = f
	r.mu.Unlock()
}

// Ensure creates the room log if it does not exist yet.
func (r *Recorder) Ensure(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[roomID]; !ok {
		r.logs[roomID] = &roomLog{open: make(map[string]*canvas.Stroke)}
	}
	if r.cancelOnRejoin {
		r.stopTimers(roomID)
	}
}

// Now is the recorder's clock reading.
func (r *Recorder) Now() time.Time { return r.clock.Now() }

// Deadline is when an expiry scheduled now would fire.
func (r *Recorder) Deadline() time.Time { return r.clock.Now().Add(r.retention) }

func (r *Recorder) now() int64 { return r.clock.Now().UnixMilli() }

// Append pushes a non-draw record. It is a no-op when the room has no log.
func (r *Recorder) Append(roomID string, kind Kind, data any, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[roomID]
	if !ok {
		return
	}
	if data == nil {
		data = struct{}{}
	}
	l.records = append(l.records, Record{Type: kind, Data: data, UserID: userID, Timestamp: r.now()})
}

// UpsertStroke records a full stroke, overwriting the open record with the
// same id in place.
func (r *Recorder) UpsertStroke(roomID string, s canvas.Stroke, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[roomID]
	if !ok {
		return
	}
	s = s.Clone()
	if existing, ok := l.open[s.ID]; ok {
		*existing = s
		return
	}
	l.append(s, userID, r.now())
}

// AppendPoint adds p to the open record of strokeID, or opens a record seeded
// with p using meta for the stroke attributes.
func (r *Recorder) AppendPoint(roomID, strokeID string, p canvas.Point, meta canvas.Stroke, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[roomID]
	if !ok {
		return
	}
	if existing, ok := l.open[strokeID]; ok {
		existing.Points = append(existing.Points, p)
		return
	}
	meta.ID = strokeID
	meta.Points = []canvas.Point{p}
	l.append(meta, userID, r.now())
}

func (l *roomLog) append(s canvas.Stroke, userID string, ts int64) {
	stroke := &s
	l.records = append(l.records, Record{Type: KindDraw, Data: stroke, UserID: userID, Timestamp: ts})
	l.open[s.ID] = stroke
}

// Get returns a copy of the room log in order; an unknown room yields an
// empty log.
func (r *Recorder) Get(roomID string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[roomID]
	if !ok {
		return []Record{}
	}
	out := make([]Record, len(l.records))
	for i, rec := range l.records {
		if s, ok := rec.Data.(*canvas.Stroke); ok {
			rec.Data = s.Clone()
		}
		out[i] = rec
	}
	return out
}

// Has reports whether a log exists for roomID.
func (r *Recorder) Has(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.logs[roomID]
	return ok
}

// ScheduleExpiry arms a one-shot timer that discards the room log after the
// retention period. The timer fires even when the room has no log so the
// OnExpire hook always runs.
func (r *Recorder) ScheduleExpiry(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextExpiry++
	id := r.nextExpiry
	t := r.clock.AfterFunc(r.retention, func() { r.expire(roomID, id) })
	r.timers[roomID] = append(r.timers[roomID], expiry{id: id, timer: t})
}

func (r *Recorder) stopTimers(roomID string) {
	for _, e := range r.timers[roomID] {
		e.timer.Stop()
	}
	delete(r.timers, roomID)
}

func (r *Recorder) expire(roomID string, id uint64) {
	r.mu.Lock()
	pending := r.timers[roomID]
	tracked := false
	for i, e := range pending {
		if e.id == id {
			r.timers[roomID] = append(pending[:i:i], pending[i+1:]...)
			tracked = true
			break
		}
	}
	if !tracked {
		// stopped by Drop or a rejoin after it had already started
		r.mu.Unlock()
		return
	}
	if len(r.timers[roomID]) == 0 {
		delete(r.timers, roomID)
	}
	_, ok := r.logs[roomID]
	delete(r.logs, roomID)
	cb := r.onExpire
	r.mu.Unlock()

	if ok {
		zap.L().Debug("recorder.expired", zap.String("room_id", roomID))
	}
	if cb != nil {
		cb(roomID)
	}
}

// Drop discards the room log immediately and stops every pending expiry of
// the room, including ones armed for an earlier log.
func (r *Recorder) Drop(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopTimers(roomID)
	delete(r.logs, roomID)
}
