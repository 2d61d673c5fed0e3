package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Subscriber applies relayed commands to a local Sink
type Subscriber struct {
	client  *redis.Client
	channel string
	sink    Sink
	ready   chan struct{}
	logger  *slog.Logger
}

// NewSubscriber creates a Subscriber. Call Run to start receiving.
func NewSubscriber(client *redis.Client, cfg Config, sink Sink, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		channel: cfg.Channel,
		sink:    sink,
		ready:   make(chan struct{}),
		logger:  logger.With(slog.String("component", "redis_subscriber")),
	}
}

// Ready is closed once the subscription is confirmed by the server
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run receives commands until ctx is done
func (s *Subscriber) Run(ctx context.Context) error {
	return subscribe(ctx, s.client, s.channel, s.ready, s.logger, s.handle)
}

func (s *Subscriber) handle(payload string) {
	var cmd command
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		s.logger.Warn("invalid relay command", slog.String("error", err.Error()))
		return
	}
	if err := cmd.apply(s.sink); err != nil {
		s.logger.Warn("invalid relay command", slog.String("error", err.Error()))
	}
}

// subscribe closes ready once the channel subscription is confirmed, then
// passes each message payload to handle until ctx is done
func subscribe(
	ctx context.Context,
	client *redis.Client,
	channel string,
	ready chan struct{},
	logger *slog.Logger,
	handle func(payload string),
) error {
	pubsub := client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	close(ready)
	logger.Info("subscribed", slog.String("channel", channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg.Payload)
		}
	}
}
