package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/coordinator"
	"collabboard/internal/metrics"
	"collabboard/internal/services/identity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const handlerTimeout = 5 * time.Second

// Admitter checks the handshake credential.
type Admitter interface {
	Admit(ctx context.Context, c auth.Credential) (*identity.Identity, error)
}

type Options struct {
	CookieName        string
	MessagesPerSecond float64
	Burst             int
	ReadLimit         int64
}

type WsServer struct {
	coord    *coordinator.Coordinator
	gate     Admitter
	router   *Router
	opts     Options
	upgrader websocket.Upgrader
}

func NewWsServer(coord *coordinator.Coordinator, gate Admitter, opts Options) *WsServer {
	srv := &WsServer{
		coord:  coord,
		gate:   gate,
		router: NewRouter(),
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	srv.registerHandlers() // ← all WS events configured in handlers.go
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle admits the handshake credential before upgrading; a refused
// credential never reaches the coordinator.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	cred := auth.CredentialFromRequest(ginCtx.Request, s.opts.CookieName)
	who, err := s.gate.Admit(ginCtx.Request.Context(), cred)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues(rejectReason(err)).Inc()
		zap.L().Info("ws.rejected", zap.String("remote", ginCtx.ClientIP()), zap.Error(err))
		ginCtx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.ReadLimit)

	conn := newClientConn(rawConn, s.opts.MessagesPerSecond, s.opts.Burst)
	s.coord.Connect(conn, *who)
	zap.L().Debug("ws.connected", zap.String("conn_id", conn.id), zap.String("user_id", who.ID))

	go conn.writePump()
	go s.reader(conn, &ConnContext{ConnID: conn.id, UserID: who.ID})
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(conn *clientConn, cc *ConnContext) {
	defer func() {
		s.coord.Disconnect(conn.id)
		conn.close()
		zap.L().Debug("ws.disconnected", zap.String("conn_id", conn.id))
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn_id", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}
		if !conn.limiter.Allow() {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			conn.Send(coordinator.Error{Message: "Malformed frame"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{"message":...}} ------
		if err != nil {
			zap.L().Debug("ws.dispatch", zap.String("event", env.Event), zap.String("conn_id", conn.id), zap.Error(err))
			if msg := clientMessage(err); msg != "" {
				conn.Send(coordinator.Error{Message: msg})
			}
		}
	}
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return "Unknown event"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid payload"
	}
	return coordinator.ClientMessage(err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoToken):
		return "no_token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, identity.ErrUserNotFound):
		return "unknown_user"
	}
	return "error"
}
