package realtime

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fanout delivers frames to local subscribers and, when a bus is configured,
// to subscribers connected to other instances.
type Fanout struct {
	hub      *Hub
	bus      Bus
	instance string
	logger   *zap.Logger
}

// NewFanout wires hub to an optional bus.
func NewFanout(hub *Hub, bus Bus, logger *zap.Logger) *Fanout {
	return &Fanout{
		hub:      hub,
		bus:      bus,
		instance: uuid.NewString(),
		logger:   logger.With(zap.String("component", "realtime_fanout")),
	}
}

// Hub returns the local hub.
func (f *Fanout) Hub() *Hub {
	return f.hub
}

// Publish broadcasts frame to the chat's subscribers except excludeID. Bus
// failures are logged; local delivery has already happened.
func (f *Fanout) Publish(ctx context.Context, frame Frame, excludeID string) {
	f.hub.Broadcast(frame, excludeID)
	if f.bus == nil {
		return
	}
	env := Envelope{Instance: f.instance, ExcludeID: excludeID, Frame: frame}
	if err := f.bus.Publish(ctx, env); err != nil {
		f.logger.Warn("bus publish failed",
			zap.String("chat_id", frame.ChatID),
			zap.String("type", string(frame.Type)),
			zap.Error(err))
	}
}

// Start forwards frames published by other instances into the local hub.
func (f *Fanout) Start(ctx context.Context) error {
	if f.bus == nil {
		return nil
	}
	return f.bus.StartForwarder(ctx, func(env Envelope) {
		if env.Instance == f.instance {
			return
		}
		f.hub.Broadcast(env.Frame, env.ExcludeID)
	})
}
