package factory

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
	"github.com/mcoot/lobbysync/internal/transport/redisbus"
	"github.com/mcoot/lobbysync/internal/transport/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates a local-mode App with mocked clock and random
func NewTestApp() *TestApp {
	return newTestApp(nil)
}

// NewTestAppWithRedis creates an App that relays through the Redis server at
// addr (typically miniredis). The first app created against a server owns
// the lobby; later ones forward to it.
func NewTestAppWithRedis(addr string) (*TestApp, error) {
	cfg := redisbus.DefaultConfig()
	cfg.URL = "redis://" + addr
	client := redis.NewClient(&redis.Options{Addr: addr})
	relay, err := newRedisRelay(context.Background(), client, cfg, testutil.NopLogger())
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return newTestApp(relay), nil
}

func newTestApp(relay *redisRelay) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	gatewayCfg := ws.DefaultConfig()
	gatewayCfg.AllowedOrigin = "*"

	app := newWithDependencies(store, mockClock, mockRandom, gatewayCfg, relay, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
