package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
)

// WelcomeMessage is sent in connection:established
const WelcomeMessage = "connected to lobby server"

// EventHandler consumes decoded inbound events
type EventHandler interface {
	Handle(ctx context.Context, conn model.ConnID, event model.Event) error
	Reject(conn model.ConnID, err error)
}

// Config holds WebSocket gateway settings
type Config struct {
	// AllowedOrigin is the only browser origin accepted; "*" accepts any.
	// Requests without an Origin header are always accepted.
	AllowedOrigin    string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	SendBuffer       int
}

// DefaultConfig returns default gateway settings
func DefaultConfig() Config {
	return Config{
		AllowedOrigin:    "http://localhost:3000",
		HandshakeTimeout: 30 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      20 * time.Second,
		WriteWait:        10 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBuffer:       256,
	}
}

// Gateway upgrades HTTP requests to WebSocket connections and pumps frames
// between them and the event handler.
type Gateway struct {
	hub      *Hub
	handler  EventHandler
	decoder  *protocol.Decoder
	clock    clock.Clock
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway creates a Gateway
func NewGateway(hub *Hub, handler EventHandler, clock clock.Clock, cfg Config, logger *slog.Logger) *Gateway {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaults.PingTimeout
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}

	g := &Gateway{
		hub:     hub,
		handler: handler,
		decoder: protocol.NewDecoder(),
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ws_gateway")),
	}
	g.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || g.cfg.AllowedOrigin == "*" {
		return true
	}
	if strings.EqualFold(origin, strings.TrimRight(g.cfg.AllowedOrigin, "/")) {
		return true
	}
	g.logger.Warn("rejected origin", slog.String("origin", origin))
	return false
}

// ServeHTTP upgrades the request and starts the connection's loops
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		g.logger.Debug("upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := model.ConnID(uuid.NewString())
	conn := newConn(id, socket, g.cfg, g.logger)

	// The greeting is queued before the hub can broadcast to this connection
	greeting, err := protocol.Encode(model.KindConnectionEstablished, protocol.ConnectionEstablished{
		SocketID:   string(id),
		ServerTime: clock.Millis(g.clock.Now()),
		Message:    WelcomeMessage,
	})
	if err != nil {
		g.logger.Error("failed to encode greeting", slog.String("error", err.Error()))
		_ = socket.Close()
		return
	}
	conn.Enqueue(greeting)
	g.hub.Register(conn)

	ctx := context.WithoutCancel(r.Context())
	go conn.writeLoop()
	go g.serve(ctx, conn)
}

func (g *Gateway) serve(ctx context.Context, conn *Conn) {
	defer func() {
		g.hub.Unregister(conn.ID())
		_ = g.handler.Handle(ctx, conn.ID(), model.Disconnect{})
	}()

	conn.readLoop(func(frame []byte) {
		event, err := g.decoder.Decode(frame)
		if err != nil {
			g.handler.Reject(conn.ID(), err)
			return
		}
		_ = g.handler.Handle(ctx, conn.ID(), event)
	})
}

// Shutdown closes every open connection
func (g *Gateway) Shutdown() {
	g.hub.CloseAll()
}
