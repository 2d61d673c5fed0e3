package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOwnerLost is returned once the node that owns the lobby state changes
// or its lease expires. Registries live only in the owner's memory, so no
// node can carry on consistently after that.
var ErrOwnerLost = errors.New("lobby owner lost")

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease elects the single node that runs the coordinator in redis mode
type Lease struct {
	client *redis.Client
	key    string
	node   string
	ttl    time.Duration
	logger *slog.Logger
}

// NewLease creates a Lease for node
func NewLease(client *redis.Client, cfg Config, node string, logger *slog.Logger) *Lease {
	ttl := cfg.OwnerTTL
	if ttl <= 0 {
		ttl = DefaultConfig().OwnerTTL
	}
	return &Lease{
		client: client,
		key:    cfg.OwnerKey,
		node:   node,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "redis_lease"), slog.String("node", node)),
	}
}

// Node returns this node's id
func (l *Lease) Node() string {
	return l.node
}

// Acquire claims ownership if nobody holds it. It returns the owning node,
// which is this node when the claim succeeded.
func (l *Lease) Acquire(ctx context.Context) (string, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.node, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("claim owner: %w", err)
	}
	if ok {
		l.logger.Info("acquired lobby ownership")
		return l.node, nil
	}

	owner, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return l.Acquire(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("read owner: %w", err)
	}
	l.logger.Info("forwarding to lobby owner", slog.String("owner", owner))
	return owner, nil
}

// Hold renews ownership until ctx is done. It returns ErrOwnerLost if the
// key expired or was taken over.
func (l *Lease) Hold(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.node, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Warn("failed to renew ownership", slog.String("error", err.Error()))
				continue
			}
			if n == 0 {
				return ErrOwnerLost
			}
		}
	}
}

// Watch polls the owner key until ctx is done. It returns ErrOwnerLost once
// the key no longer names owner.
func (l *Lease) Watch(ctx context.Context, owner string) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := l.client.Get(ctx, l.key).Result()
			if errors.Is(err, redis.Nil) {
				return ErrOwnerLost
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Warn("failed to read owner", slog.String("error", err.Error()))
				continue
			}
			if current != owner {
				return ErrOwnerLost
			}
		}
	}
}

// Release gives up ownership if this node still holds it
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.node).Err(); err != nil {
		return fmt.Errorf("release owner: %w", err)
	}
	return nil
}
