package redisbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
)

// publishClient is the subset of the Redis client the publisher needs
type publishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher implements the broadcast Notifier by relaying every call
// through a Redis channel. Calls only enqueue; Run does the publishing, in
// call order.
type Publisher struct {
	client  publishClient
	channel string
	queue   chan command
	logger  *slog.Logger
}

// NewPublisher creates a Publisher. Call Run to start publishing.
func NewPublisher(client publishClient, cfg Config, logger *slog.Logger) *Publisher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultConfig().QueueSize
	}
	return &Publisher{
		client:  client,
		channel: cfg.Channel,
		queue:   make(chan command, size),
		logger:  logger.With(slog.String("component", "redis_publisher")),
	}
}

// Run publishes queued commands until ctx is done
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-p.queue:
			p.publish(ctx, cmd)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, cmd command) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		p.logger.Error("failed to encode relay command", slog.String("error", err.Error()))
		return
	}
	if err := p.client.Publish(ctx, p.channel, string(raw)).Err(); err != nil {
		p.logger.Error("failed to publish",
			slog.String("op", cmd.Op),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Publisher) enqueue(cmd command) {
	select {
	case p.queue <- cmd:
	default:
		p.logger.Warn("relay queue full, dropping command", slog.String("op", cmd.Op))
	}
}

func (p *Publisher) enqueueFrame(cmd command, kind model.OutboundKind, payload any) {
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		p.logger.Error("failed to encode frame",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	cmd.Frame = frame
	p.enqueue(cmd)
}

func (p *Publisher) SendTo(conn model.ConnID, kind model.OutboundKind, payload any) {
	p.enqueueFrame(command{Op: opSend, Conn: conn}, kind, payload)
}

func (p *Publisher) NotifyGlobal(kind model.OutboundKind, payload any) {
	p.enqueueFrame(command{Op: opGlobal}, kind, payload)
}

func (p *Publisher) NotifyRoom(room model.RoomID, kind model.OutboundKind, payload any) {
	p.enqueueFrame(command{Op: opRoom, Room: room}, kind, payload)
}

func (p *Publisher) JoinGroup(conn model.ConnID, room model.RoomID) {
	p.enqueue(command{Op: opJoin, Conn: conn, Room: room})
}

func (p *Publisher) LeaveGroup(conn model.ConnID, room model.RoomID) {
	p.enqueue(command{Op: opLeave, Conn: conn, Room: room})
}

func (p *Publisher) DropGroup(room model.RoomID) {
	p.enqueue(command{Op: opDrop, Room: room})
}
