package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope carries a frame between instances.
type Envelope struct {
	Instance  string `json:"instance"`
	ExcludeID string `json:"exclude_id,omitempty"`
	Frame     Frame  `json:"frame"`
}

// Bus forwards frames to the other instances serving live connections.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onEnvelope func(Envelope)) error
}

type redisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBus returns a Bus over Redis pub/sub on channel.
func NewRedisBus(client *redis.Client, channel string, logger *zap.Logger) (Bus, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if channel == "" {
		channel = "support-chat:events"
	}
	return &redisBus{
		client:  client,
		channel: channel,
		logger:  logger.With(zap.String("component", "realtime_bus")),
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes and calls onEnvelope for every message until ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onEnvelope func(Envelope)) error {
	if onEnvelope == nil {
		return errors.New("onEnvelope callback required")
	}
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.logger.Warn("bad bus payload", zap.Error(err))
					continue
				}
				onEnvelope(env)
			}
		}
	}()
	return nil
}
