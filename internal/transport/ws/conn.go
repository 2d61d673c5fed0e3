package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbysync/internal/model"
)

// Conn is one WebSocket connection with its own outbound buffer
type Conn struct {
	id  model.ConnID
	ws  *websocket.Conn
	cfg Config

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
}

func newConn(id model.ConnID, ws *websocket.Conn, cfg Config, logger *slog.Logger) *Conn {
	return &Conn{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("conn_id", string(id))),
	}
}

// ID returns the connection ID
func (c *Conn) ID() model.ConnID { return c.id }

// Enqueue buffers a frame for the write loop. Frames sent after Close are
// discarded.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write loop, which in turn closes the socket
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readLoop hands every text frame to fn until the socket fails.
func (c *Conn) readLoop(fn func(frame []byte)) {
	defer c.Close()

	pongWait := c.cfg.PingInterval + c.cfg.PingTimeout
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", slog.String("error", err.Error()))
			}
			return
		}
		fn(data)
	}
}

// writeLoop drains the send buffer and keeps the connection alive with pings
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
