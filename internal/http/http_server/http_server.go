package http_server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"collabboard/internal/http/roomhandler"
	"collabboard/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Deps are the collaborators mounted on the router.
type Deps struct {
	WsServer     *ws.WsServer
	Rooms        roomhandler.Rooms
	Gate         roomhandler.Admitter
	Redis        redis.UniversalClient
	DB           *sql.DB
	CookieName   string
	ControlToken string
}

type httpServer struct {
	listenPort uint16
	srv        *http.Server
	ln         net.Listener
	deps       Deps
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, deps Deps) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		deps:       deps,
		ctx:        ctx,
	}
	h.srv = &http.Server{
		Handler:     h.Router(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	return h
}

// Router builds the gin engine without binding a listener.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/healthz", h.health)
	routerEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// websocket endpoint
	if h.deps.WsServer != nil {
		routerEngine.GET("/ws", h.deps.WsServer.Handle)
	}

	// REST API
	if h.deps.Rooms != nil {
		roomhandler.New(h.deps.Rooms, h.deps.Gate, h.deps.CookieName, h.deps.ControlToken).Register(routerEngine)
	}
	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http.listen", zap.String("addr", listenAddr))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// health reports 503 when a backing store does not answer a ping.
func (h *httpServer) health(ginCtx *gin.Context) {
	ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), pingTimeout)
	defer cancel()

	status := gin.H{"redis": "ok", "postgres": "ok"}
	code := http.StatusOK
	if h.deps.Redis != nil {
		if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(ctx); err != nil {
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	ginCtx.JSON(code, status)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return nil
}
