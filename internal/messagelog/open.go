package messagelog

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// Closer releases resources held by an opened Store.
type Closer func(ctx context.Context) error

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.MessageLogConfig, redisClient *redis.Client, logger *zap.Logger) (Store, Closer, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Driver {
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("message log driver redis requires a redis client")
		}
		logger.Info("message log using redis streams", zap.String("prefix", cfg.StreamPrefix))
		return NewRedisStreamStore(redisClient, cfg.StreamPrefix), noop, nil
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, nil, fmt.Errorf("MESSAGE_LOG_MONGO_URI is required for the mongo driver")
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		collection := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		if err := EnsureIndexes(ctx, collection); err != nil {
			logger.Warn("unable to ensure message log indexes", zap.Error(err))
		}
		logger.Info("message log using mongo",
			zap.String("database", cfg.MongoDatabase),
			zap.String("collection", cfg.MongoCollection))
		return NewMongoStore(collection), client.Disconnect, nil
	default:
		logger.Warn("message log disabled; history scans fall back to postgres")
		return NewDisabledStore(), noop, nil
	}
}
