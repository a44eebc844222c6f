package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MESSAGE_LOG_DRIVER", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "support-chat", cfg.App.Name)
	assert.Equal(t, "redis", cfg.MessageLog.Driver)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 200, cfg.Chat.PreviewLength)
	assert.Equal(t, 2*time.Second, cfg.MessageLog.AppendTimeout())
	assert.False(t, cfg.Storage.S3Enabled())
	assert.True(t, cfg.Redis.Required)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout())
	assert.Equal(t, time.Second, cfg.Redis.ReadTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("MESSAGE_LOG_DRIVER", "Mongo")
	t.Setenv("ATTACHMENTS_S3_BUCKET", "chat")
	t.Setenv("ATTACHMENTS_S3_ACCESS_KEY_ID", "key")
	t.Setenv("ATTACHMENTS_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CHAT_MAX_CONTENT_LENGTH", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, "mongo", cfg.MessageLog.Driver)
	assert.True(t, cfg.Storage.S3Enabled())
	assert.Equal(t, 5000, cfg.Chat.MaxContentLength)
	assert.False(t, cfg.Redis.Required)
}

func TestRealtimeBusRequiresRedis(t *testing.T) {
	t.Setenv("MESSAGE_LOG_DRIVER", "none")
	t.Setenv("REALTIME_BUS_ENABLED", "true")
	t.Setenv("REDIS_WRITE_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Required)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.WriteTimeout())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("MESSAGE_LOG_DRIVER", "cassandra")
	_, err := Load()
	assert.Error(t, err)
}
