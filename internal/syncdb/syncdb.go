// Package syncdb mirrors autosaved canvases from Redis into Postgres.
package syncdb

import (
	"context"
	"database/sql"
	"time"

	"collabboard/internal/metrics"
	"collabboard/internal/services/room"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pipeTimeout = 1500 * time.Millisecond

const finalTimeout = 5 * time.Second

// Run flushes dirty canvases every interval until ctx is done. The returned
// channel is closed once the loop has stopped; the last pass is left to
// Flush so it can run after every pending autosave has landed.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	tk := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, db)
			}
		}
	}()
	return done
}

// Flush runs a single pass under its own deadline and reports how many
// canvases were written.
func Flush(rdc *redis.Client, db *sql.DB) int {
	ctx, cancel := context.WithTimeout(context.Background(), finalTimeout)
	defer cancel()
	return syncOnce(ctx, rdc, db)
}

func syncOnce(ctx context.Context, rdc *redis.Client, db *sql.DB) int {
	ids, err := rdc.SMembers(ctx, room.DirtyCanvasSet).Result()
	if err != nil || len(ids) == 0 {
		return 0
	}

	// 1. fetch every buffered canvas and its version in one round-trip
	pctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()
	pipe := rdc.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(pctx, room.CanvasKey(id), "canvas", "ver")
	}
	if _, err = pipe.Exec(pctx); err != nil && err != redis.Nil {
		zap.L().Error("syncdb.pipeline", zap.Error(err))
		return 0
	}

	// 2. write each canvas, then clear its dirty mark unless it changed meanwhile
	const update = `UPDATE rooms SET canvas_data = $2::jsonb, updated_at = now() WHERE room_id = $1`
	flushed := 0
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 2 {
			continue
		}
		data, _ := vals[0].(string)
		ver, _ := vals[1].(string)
		if data == "" {
			// hash vanished (room forgotten); drop the stale mark
			_ = rdc.SRem(ctx, room.DirtyCanvasSet, ids[i]).Err()
			continue
		}
		if _, err := db.ExecContext(ctx, update, ids[i], data); err != nil {
			zap.L().Error("syncdb.update", zap.String("room_id", ids[i]), zap.Error(err))
			continue
		}
		if err := rdc.FCall(ctx, "canvas_ack",
			[]string{room.CanvasKey(ids[i]), room.DirtyCanvasSet},
			ver, ids[i],
		).Err(); err != nil {
			zap.L().Warn("syncdb.ack", zap.String("room_id", ids[i]), zap.Error(err))
			continue
		}
		flushed++
	}
	if flushed > 0 {
		metrics.CanvasFlushed.Add(float64(flushed))
		zap.L().Debug("syncdb.flushed", zap.Int("rooms", flushed))
	}
	return flushed
}
