package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

var errRedisUnset = errors.New("shared redis not configured")

// SharedRedis is the single Redis connection pool shared by the message log
// streams, the directory cache and the realtime bus.
type SharedRedis struct {
	Client   *redis.Client
	required bool
}

// OpenSharedRedis builds the pool and pings it once within the dial timeout.
// A failed ping is fatal only when a Redis-backed component is enabled; the
// directory cache alone degrades to Postgres reads.
func OpenSharedRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*SharedRedis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	})
	logger = logger.With(zap.String("redis_addr", cfg.Addr))

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.Required {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
		}
		logger.Warn("redis unreachable, directory cache disabled until it recovers", zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.Int("pool_size", cfg.PoolSize))
	}
	return &SharedRedis{Client: client, required: cfg.Required}, nil
}

// Required reports whether a chat component depends on Redis being up.
func (r *SharedRedis) Required() bool {
	return r != nil && r.required
}

// Ping is the readiness check.
func (r *SharedRedis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errRedisUnset
	}
	return r.Client.Ping(ctx).Err()
}

// Close releases the pool.
func (r *SharedRedis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}
