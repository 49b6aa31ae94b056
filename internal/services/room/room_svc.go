package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"collabboard/internal/canvas"
	"collabboard/internal/permission"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisRoomKeyPrefix = "room:"
	// DirtyCanvasSet holds the ids of rooms whose Redis canvas is newer than
	// the Postgres copy.
	DirtyCanvasSet = "rooms:canvas:dirty"

	settingsCacheTTL = 30 * time.Second
)

// CanvasKey is the Redis hash buffering autosaved canvases ("canvas", "ver", "at").
func CanvasKey(roomID string) string { return redisRoomKeyPrefix + roomID }

func settingsKey(roomID string) string { return redisRoomKeyPrefix + roomID + ":settings" }

var ErrRoomNotFound = errors.New("room not found")

type Participant struct {
	UserID   string          `json:"userId"`
	Role     permission.Role `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// Room is the durable room aggregate as seen by the coordinator.
type Room struct {
	ID           string
	Name         string
	HostID       string
	Participants []Participant
	Settings     permission.Settings
	Canvas       canvas.Snapshot
}

// RoleOf derives the role of userID: the recorded host, then the listed
// participant role, then observer.
func (r *Room) RoleOf(userID string) permission.Role {
	if r.HostID == userID {
		return permission.RoleHost
	}
	for _, p := range r.Participants {
		if p.UserID == userID {
			if p.Role == "" {
				return permission.RoleParticipant
			}
			return p.Role
		}
	}
	return permission.RoleObserver
}

// IsMember reports whether userID is the host or a listed participant.
func (r *Room) IsMember(userID string) bool {
	if r.HostID == userID {
		return true
	}
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type SettingsUpdate struct {
	IsLocked       *bool
	DrawingEnabled *bool
}

type IRoomService interface {
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	// AddParticipant is idempotent: adding the same user twice keeps one record.
	AddParticipant(ctx context.Context, roomID, userID string) error
	Settings(ctx context.Context, roomID string) (permission.Settings, error)
	UpdateSettings(ctx context.Context, roomID string, upd SettingsUpdate) (permission.Settings, error)
	// SaveCanvas is last-write-wins.
	SaveCanvas(ctx context.Context, roomID string, snap canvas.Snapshot) error
	ClearCanvas(ctx context.Context, roomID string) error
	// Forget drops every cached Redis entry of the room.
	Forget(ctx context.Context, roomID string) error
}

type roomService struct {
	rdc *redis.Client
	db  *sql.DB
}

var _ IRoomService = (*roomService)(nil)

func NewRoomService(rdc *redis.Client, db *sql.DB) IRoomService {
	return &roomService{rdc: rdc, db: db}
}

func (svc *roomService) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	const q = `SELECT room_id, name, host_id, is_active, is_locked, drawing_enabled,
	                  coalesce(canvas_data::text, '')
	             FROM rooms WHERE room_id = $1`
	r := &Room{}
	var rawCanvas string
	err := svc.db.QueryRowContext(ctx, q, roomID).Scan(&r.ID, &r.Name, &r.HostID,
		&r.Settings.IsActive, &r.Settings.IsLocked, &r.Settings.DrawingEnabled, &rawCanvas)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	const pq = `SELECT user_id, role, joined_at FROM room_participants
	             WHERE room_id = $1 ORDER BY joined_at`
	rows, err := svc.db.QueryContext(ctx, pq, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserID, &p.Role, &p.JoinedAt); err != nil {
			return nil, err
		}
		r.Participants = append(r.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// An autosave not yet flushed to Postgres is newer than the column.
	if buffered, err := svc.rdc.HGet(ctx, CanvasKey(roomID), "canvas").Result(); err == nil {
		rawCanvas = buffered
	} else if !errors.Is(err, redis.Nil) {
		zap.L().Warn("room.canvas_cache", zap.String("room_id", roomID), zap.Error(err))
	}
	if r.Canvas, err = canvas.Parse([]byte(rawCanvas)); err != nil {
		zap.L().Warn("room.canvas_parse", zap.String("room_id", roomID), zap.Error(err))
		r.Canvas = canvas.Empty()
	}
	return r, nil
}

func (svc *roomService) AddParticipant(ctx context.Context, roomID, userID string) error {
	const ins = `INSERT INTO room_participants (room_id, user_id, role)
	             VALUES ($1, $2, 'participant')
	             ON CONFLICT (room_id, user_id) DO NOTHING`
	_, err := svc.db.ExecContext(ctx, ins, roomID, userID)
	return err
}

func (svc *roomService) Settings(ctx context.Context, roomID string) (permission.Settings, error) {
	key := settingsKey(roomID)
	if snap, err := svc.rdc.HGetAll(ctx, key).Result(); err == nil && len(snap) == 3 {
		return permission.Settings{
			IsActive:       snap["a"] == "1",
			IsLocked:       snap["l"] == "1",
			DrawingEnabled: snap["d"] == "1",
		}, nil
	}

	var s permission.Settings
	const q = `SELECT is_active, is_locked, drawing_enabled FROM rooms WHERE room_id = $1`
	err := svc.db.QueryRowContext(ctx, q, roomID).Scan(&s.IsActive, &s.IsLocked, &s.DrawingEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrRoomNotFound
	}
	if err != nil {
		return s, err
	}
	svc.cacheSettings(ctx, roomID, s)
	return s, nil
}

func (svc *roomService) cacheSettings(ctx context.Context, roomID string, s permission.Settings) {
	key := settingsKey(roomID)
	if err := svc.rdc.HSet(ctx, key, "a", b2s(s.IsActive), "l", b2s(s.IsLocked), "d", b2s(s.DrawingEnabled)).Err(); err != nil {
		zap.L().Warn("room.settings_cache", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	_ = svc.rdc.Expire(ctx, key, settingsCacheTTL).Err()
}

func (svc *roomService) UpdateSettings(ctx context.Context, roomID string, upd SettingsUpdate) (permission.Settings, error) {
	const q = `UPDATE rooms
	              SET is_locked       = coalesce($2, is_locked),
	                  drawing_enabled = coalesce($3, drawing_enabled),
	                  updated_at      = now()
	            WHERE room_id = $1
	        RETURNING is_active, is_locked, drawing_enabled`
	var s permission.Settings
	err := svc.db.QueryRowContext(ctx, q, roomID, nullBool(upd.IsLocked), nullBool(upd.DrawingEnabled)).
		Scan(&s.IsActive, &s.IsLocked, &s.DrawingEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrRoomNotFound
	}
	if err != nil {
		return s, err
	}
	if err := svc.rdc.Del(ctx, settingsKey(roomID)).Err(); err != nil {
		zap.L().Warn("room.settings_invalidate", zap.String("room_id", roomID), zap.Error(err))
	}
	return s, nil
}

// SaveCanvas buffers the snapshot in Redis and marks the room dirty; the
// canvas flusher copies it to Postgres.
func (svc *roomService) SaveCanvas(ctx context.Context, roomID string, snap canvas.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	return svc.rdc.FCall(ctx, "canvas_save",
		[]string{
			CanvasKey(roomID), // "room:<id>"
			DirtyCanvasSet,
		},
		string(data),
		time.Now().Unix(),
		roomID,
	).Err()
}

func (svc *roomService) ClearCanvas(ctx context.Context, roomID string) error {
	return svc.SaveCanvas(ctx, roomID, canvas.Empty())
}

func (svc *roomService) Forget(ctx context.Context, roomID string) error {
	pipe := svc.rdc.Pipeline()
	pipe.Del(ctx, CanvasKey(roomID), settingsKey(roomID))
	pipe.SRem(ctx, DirtyCanvasSet, roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("forget room %s: %w", roomID, err)
	}
	return nil
}

// helpers
func b2s(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
