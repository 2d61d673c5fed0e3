package factory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/transport/redisbus"
)

func TestNewDefaultsToLocal(t *testing.T) {
	app, err := New(context.Background(), Config{})
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.True(t, app.Owner())
	assert.Nil(t, app.Publisher)
	assert.Nil(t, app.Lease)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), Config{BroadcastMode: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewRedisNeedsConfig(t *testing.T) {
	_, err := New(context.Background(), Config{BroadcastMode: BroadcastModeRedis})
	assert.Error(t, err)
}

func TestNewRedisElectsOneOwner(t *testing.T) {
	mini := miniredis.RunT(t)
	redisCfg := redisbus.DefaultConfig()
	redisCfg.URL = "redis://" + mini.Addr()
	cfg := Config{BroadcastMode: BroadcastModeRedis, RedisConfig: &redisCfg}

	first, err := New(context.Background(), cfg)
	require.NoError(t, err)
	second, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, first.Owner())
	assert.NotNil(t, first.Intake)
	assert.False(t, second.Owner())
	assert.NotNil(t, second.Forwarder)

	require.NoError(t, second.Close())
	require.NoError(t, first.Close())
	assert.False(t, mini.Exists(redisCfg.OwnerKey))
}
