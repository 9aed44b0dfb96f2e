// Package signal is the WebSocket edge of the broker: one persistent
// connection per client, JSON frames with a "type" discriminator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/app"
	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const defaultSendBuffer = 32

type Controller struct {
	Broker   *app.Broker
	Presence *app.Presence

	SendBuffer   int
	WriteTimeout time.Duration
}

func NewController(broker *app.Broker, presence *app.Presence) *Controller {
	return &Controller{
		Broker:       broker,
		Presence:     presence,
		SendBuffer:   defaultSendBuffer,
		WriteTimeout: 5 * time.Second,
	}
}

// WsSignalConn owns the outbound side of one socket. TrySend queues
// onto a buffered channel and fails fast when the writer cannot keep
// up; it never blocks a broker operation.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// session tracks what we know about one socket: the transport plus the
// identity announced by user:join. Identity is empty until then.
type session struct {
	conn *WsSignalConn
	sid  string
	uid  domain.UserID
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	buffer := ctl.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	sess := &session{
		conn: &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)},
		sid:  sid,
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ctl.writePump(ctx, sess.conn)
		cancel()
	}()
	go func() {
		ctl.readPump(ctx, sess)
		cancel()
	}()
}
