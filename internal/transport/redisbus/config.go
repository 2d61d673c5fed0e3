package redisbus

import "time"

// Config holds Redis connection and relay settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Channel carries every relayed command
	Channel string
	// InboundChannel carries connection events forwarded to the owner
	InboundChannel string

	// OwnerKey holds the id of the node that owns the lobby state
	OwnerKey string
	// OwnerTTL is how long ownership survives without renewal
	OwnerTTL time.Duration

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// QueueSize bounds commands waiting to be published
	QueueSize int
}

// DefaultConfig returns sensible defaults for the relay
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		Channel:        "lobbysync:broadcast",
		InboundChannel: "lobbysync:inbound",
		OwnerKey:       "lobbysync:owner",
		OwnerTTL:       10 * time.Second,
		PoolSize:       10,
		MinIdleConns:   2,
		QueueSize:      1024,
	}
}
