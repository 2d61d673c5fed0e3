package redisbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/testutil"
)

func newLeasePair(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Lease, *Lease) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.OwnerTTL = ttl
	logger := testutil.NopLogger()
	return mini, NewLease(client, cfg, "node-a", logger), NewLease(client, cfg, "node-b", logger)
}

func TestLeaseFirstNodeOwns(t *testing.T) {
	mini, a, b := newLeasePair(t, time.Second)
	ctx := context.Background()

	owner, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", owner)

	owner, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", owner)

	got, err := mini.Get(DefaultConfig().OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, "node-a", got)
	assert.Equal(t, time.Second, mini.TTL(DefaultConfig().OwnerKey))
}

func TestLeaseReleaseOnlyByOwner(t *testing.T) {
	mini, a, b := newLeasePair(t, time.Second)
	ctx := context.Background()

	_, err := a.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Release(ctx))
	assert.True(t, mini.Exists(DefaultConfig().OwnerKey))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mini.Exists(DefaultConfig().OwnerKey))

	owner, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-b", owner)
}

func TestLeaseExpiryHandsOverOwnership(t *testing.T) {
	mini, a, b := newLeasePair(t, time.Second)
	ctx := context.Background()

	_, err := a.Acquire(ctx)
	require.NoError(t, err)
	mini.FastForward(2 * time.Second)

	owner, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-b", owner)
}

func TestHoldRenewsUntilCancelled(t *testing.T) {
	mini, a, _ := newLeasePair(t, 30*time.Millisecond)
	_, err := a.Acquire(context.Background())
	require.NoError(t, err)

	key := DefaultConfig().OwnerKey
	mini.FastForward(25 * time.Millisecond)
	require.Less(t, mini.TTL(key), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Hold(ctx) }()

	assert.Eventually(t, func() bool {
		return mini.TTL(key) == 30*time.Millisecond
	}, testutil.EventuallyTimeout, testutil.EventuallyTick)
	cancel()
	require.NoError(t, <-done)

	got, err := mini.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "node-a", got)
}

func TestHoldFailsWhenTakenOver(t *testing.T) {
	mini, a, _ := newLeasePair(t, 30*time.Millisecond)
	_, err := a.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, mini.Set(DefaultConfig().OwnerKey, "node-c"))

	select {
	case err := <-runAsync(a.Hold):
		assert.ErrorIs(t, err, ErrOwnerLost)
	case <-time.After(testutil.EventuallyTimeout):
		t.Fatal("hold never noticed the takeover")
	}
}

func TestWatchFailsWhenOwnerGoesAway(t *testing.T) {
	mini, a, b := newLeasePair(t, 30*time.Millisecond)
	owner, err := a.Acquire(context.Background())
	require.NoError(t, err)

	watching := runAsync(func(ctx context.Context) error { return b.Watch(ctx, owner) })
	mini.Del(DefaultConfig().OwnerKey)

	select {
	case err := <-watching:
		assert.ErrorIs(t, err, ErrOwnerLost)
	case <-time.After(testutil.EventuallyTimeout):
		t.Fatal("watch never noticed the owner leaving")
	}
}

func runAsync(fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn(context.Background()) }()
	return done
}
