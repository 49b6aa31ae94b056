package main

import (
	"collabboard/internal/auth"
	"collabboard/internal/config"
	"collabboard/internal/coordinator"
	"collabboard/internal/database/db_client"
	"collabboard/internal/http/http_server"
	"collabboard/internal/recorder"
	"collabboard/internal/redis/redis_client"
	"collabboard/internal/redis/redis_functions"
	"collabboard/internal/services/identity"
	"collabboard/internal/services/message"
	"collabboard/internal/services/room"
	"collabboard/internal/syncdb"
	"collabboard/internal/ws"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.Uint16("http_port", cfg.HttpServerPort),
		zap.Duration("recording_retention", cfg.RecordingRetention),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(ctx, redis_client.Options{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Services
	identities := identity.NewIdentityService(pgDb)
	messages := message.NewMessageService(pgDb)
	rooms := room.NewRoomService(redisClient, pgDb)
	gate := auth.NewGate(cfg.JWTSecret, identities)

	// 6. Session coordinator with its recorder
	rec := recorder.New(clock.New(), cfg.RecordingRetention, cfg.RecordingCancelExpiryRejoin)
	coord := coordinator.New(rooms, messages, rec, cfg.ChatHistoryLimit)

	// 7. Background: canvas flusher
	flusherDone := syncdb.Run(ctx, redisClient, pgDb, cfg.CanvasFlushInterval)

	// 8. WS server
	wsSrv := ws.NewWsServer(coord, gate, ws.Options{
		CookieName:        cfg.AuthCookieName,
		MessagesPerSecond: cfg.WsMessagesPerSecond,
		Burst:             cfg.WsBurst,
		ReadLimit:         cfg.WsReadLimit,
	})

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, http_server.Deps{
		WsServer:     wsSrv,
		Rooms:        coord,
		Gate:         gate,
		Redis:        redisClient,
		DB:           pgDb,
		CookieName:   cfg.AuthCookieName,
		ControlToken: cfg.ControlToken,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws.SubscribeRoomControl(gctx, redisClient, coord)
		return nil
	})
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Dispose()
	})
	if err := g.Wait(); err != nil {
		Log.Error("server stopped", zap.Error(err))
	}

	// drain pending room writes, then flush them before the stores close
	coord.Wait()
	<-flusherDone
	n := syncdb.Flush(redisClient, pgDb)
	Log.Info("shutdown complete", zap.Int("canvases_flushed", n))
}
