package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

func redisConfig(addr string, required bool) config.RedisConfig {
	return config.RedisConfig{
		Addr:           addr,
		PoolSize:       4,
		DialTimeoutMs:  200,
		ReadTimeoutMs:  200,
		WriteTimeoutMs: 200,
		Required:       required,
	}
}

func TestOpenSharedRedis(t *testing.T) {
	srv := miniredis.RunT(t)

	shared, err := OpenSharedRedis(context.Background(), redisConfig(srv.Addr(), true), zap.NewNop())
	require.NoError(t, err)
	defer shared.Close()

	assert.True(t, shared.Required())
	assert.NoError(t, shared.Ping(context.Background()))
	assert.Equal(t, 4, shared.Client.Options().PoolSize)

	srv.Close()
	assert.Error(t, shared.Ping(context.Background()))
}

func TestUnreachableRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := OpenSharedRedis(context.Background(), redisConfig(addr, true), zap.NewNop())
	assert.ErrorContains(t, err, addr)

	shared, err := OpenSharedRedis(context.Background(), redisConfig(addr, false), zap.NewNop())
	require.NoError(t, err)
	defer shared.Close()
	assert.False(t, shared.Required())
	assert.Error(t, shared.Ping(context.Background()))

	var unset *SharedRedis
	assert.ErrorIs(t, unset.Ping(context.Background()), errRedisUnset)
}
