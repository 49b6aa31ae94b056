package ws

import (
	"sync"
	"time"

	"collabboard/internal/coordinator"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
	sendQueue  = 256
)

// clientConn is one websocket. Frames go through a buffered queue drained by
// a single writer goroutine; a full queue drops the frame.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	done chan struct{}
	once sync.Once
}

var _ coordinator.Conn = (*clientConn)(nil)

func newClientConn(raw *websocket.Conn, perSecond float64, burst int) *clientConn {
	return &clientConn{
		id:      uuid.NewString(),
		rawConn: raw,
		send:    make(chan []byte, sendQueue),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		done:    make(chan struct{}),
	}
}

func (c *clientConn) ID() string { return c.id }

func (c *clientConn) Send(evt coordinator.Event) bool {
	data, err := encodeEvent(evt)
	if err != nil {
		zap.L().Warn("ws.encode", zap.String("event", evt.EventName()), zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		zap.L().Debug("ws.send_queue_full", zap.String("conn_id", c.id), zap.String("event", evt.EventName()))
		return false
	}
}

// close stops the writer, which closes the socket.
func (c *clientConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *clientConn) write(mt int, data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
