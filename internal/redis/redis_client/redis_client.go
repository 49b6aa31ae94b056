package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Host     string
	Port     uint16
	Password string
	DB       int
}

// NewRedisClient dials Redis and verifies it answers PING. The pool is sized
// for the websocket readers that autosave canvases concurrently.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 8
	if maxPool > 256 {
		maxPool = 256
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: maxPool,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		err = fmt.Errorf("redis connection failed: %w", err)
		zap.L().Error("redis_connect", zap.String("addr", rc.Options().Addr), zap.Error(err))
		return nil, err
	}
	return rc, nil
}
