package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lobbysync/internal/model"
)

// Rejection reasons carried for frames a gateway could not decode
const (
	rejectMalformed = "malformed"
	rejectUnknown   = "unknown"
)

// publishTimeout bounds a forward made outside any request context
const publishTimeout = 5 * time.Second

// inbound is one connection event forwarded to the owning node. Exactly one
// of Event, Reject and Sync is set.
type inbound struct {
	Conn   model.ConnID    `json:"conn,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Reject string          `json:"reject,omitempty"`
	Sync   bool            `json:"sync,omitempty"`
}

func encodeEvent(conn model.ConnID, event model.Event) (inbound, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return inbound{}, fmt.Errorf("encode %s: %w", event.Name(), err)
	}
	return inbound{Conn: conn, Event: event.Name(), Data: data}, nil
}

func (m inbound) event() (model.Event, error) {
	switch m.Event {
	case model.EventLogin:
		return decodeAs[model.Login](m.Data)
	case model.EventLogout:
		return decodeAs[model.Logout](m.Data)
	case model.EventCreateRoom:
		return decodeAs[model.CreateRoom](m.Data)
	case model.EventJoinRoom:
		return decodeAs[model.JoinRoom](m.Data)
	case model.EventLeaveRoom:
		return decodeAs[model.LeaveRoom](m.Data)
	case model.EventDisconnect:
		return decodeAs[model.Disconnect](m.Data)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEvent, m.Event)
	}
}

func decodeAs[T model.Event](data json.RawMessage) (model.Event, error) {
	var e T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrMalformedEvent, err)
		}
	}
	return e, nil
}

func rejectReason(err error) string {
	if errors.Is(err, model.ErrUnknownEvent) {
		return rejectUnknown
	}
	return rejectMalformed
}

func rejectError(reason string) error {
	if reason == rejectUnknown {
		return model.ErrUnknownEvent
	}
	return model.ErrMalformedEvent
}

// Forwarder hands a node's connection events to the owning node. It stands
// in for the coordinator on every node that does not own the lobby state.
// Each connection calls it sequentially, so its events stay in order.
type Forwarder struct {
	client  publishClient
	channel string
	logger  *slog.Logger
}

// NewForwarder creates a Forwarder
func NewForwarder(client publishClient, cfg Config, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client:  client,
		channel: cfg.InboundChannel,
		logger:  logger.With(slog.String("component", "redis_forwarder")),
	}
}

// Handle forwards a decoded event
func (f *Forwarder) Handle(ctx context.Context, conn model.ConnID, event model.Event) error {
	msg, err := encodeEvent(conn, event)
	if err != nil {
		return err
	}
	return f.forward(ctx, msg)
}

// Reject forwards a frame that could not be decoded so the owner reports it
func (f *Forwarder) Reject(conn model.ConnID, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_ = f.forward(ctx, inbound{Conn: conn, Reject: rejectReason(err)})
}

// RequestSync asks the owner to rebroadcast the user and room listings
func (f *Forwarder) RequestSync(ctx context.Context) error {
	return f.forward(ctx, inbound{Sync: true})
}

func (f *Forwarder) forward(ctx context.Context, msg inbound) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode inbound: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, string(raw)).Err(); err != nil {
		f.logger.Error("failed to forward event",
			slog.String("conn_id", string(msg.Conn)),
			slog.String("event", msg.Event),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("forward event: %w", err)
	}
	return nil
}

// EventHandler is the owning node's coordinator
type EventHandler interface {
	Handle(ctx context.Context, conn model.ConnID, event model.Event) error
	Reject(conn model.ConnID, err error)
	Resync(ctx context.Context)
}

// Intake feeds events forwarded by other nodes into the owner's handler
type Intake struct {
	client  *redis.Client
	channel string
	handler EventHandler
	ready   chan struct{}
	logger  *slog.Logger
}

// NewIntake creates an Intake. Call Run to start receiving.
func NewIntake(client *redis.Client, cfg Config, handler EventHandler, logger *slog.Logger) *Intake {
	return &Intake{
		client:  client,
		channel: cfg.InboundChannel,
		handler: handler,
		ready:   make(chan struct{}),
		logger:  logger.With(slog.String("component", "redis_intake")),
	}
}

// Ready is closed once the subscription is confirmed by the server
func (i *Intake) Ready() <-chan struct{} {
	return i.ready
}

// Run receives forwarded events until ctx is done
func (i *Intake) Run(ctx context.Context) error {
	return subscribe(ctx, i.client, i.channel, i.ready, i.logger, func(payload string) {
		i.handle(ctx, payload)
	})
}

func (i *Intake) handle(ctx context.Context, payload string) {
	var msg inbound
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		i.logger.Warn("invalid inbound message", slog.String("error", err.Error()))
		return
	}

	switch {
	case msg.Sync:
		i.handler.Resync(ctx)
	case msg.Reject != "":
		i.handler.Reject(msg.Conn, rejectError(msg.Reject))
	default:
		event, err := msg.event()
		if err != nil {
			i.logger.Warn("invalid inbound event",
				slog.String("conn_id", string(msg.Conn)),
				slog.String("error", err.Error()),
			)
			i.handler.Reject(msg.Conn, err)
			return
		}
		_ = i.handler.Handle(ctx, msg.Conn, event)
	}
}
