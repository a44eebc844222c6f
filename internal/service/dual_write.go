package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/repository"
)

// DualWriteCoordinator replicates committed messages into the secondary
// append store and back-fills the relational reference. It never reports
// failure to the caller: the relational row is already authoritative.
type DualWriteCoordinator struct {
	chats   repository.ChatRepository
	log     messagelog.Store
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	pending sync.WaitGroup
}

// NewDualWriteCoordinator constructs the coordinator.
func NewDualWriteCoordinator(chats repository.ChatRepository, log messagelog.Store, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *DualWriteCoordinator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DualWriteCoordinator{
		chats:   chats,
		log:     log,
		timeout: timeout,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "dual-write")),
	}
}

// Replicate appends msg to the secondary store and records the returned reference
// on msg. It reports whether the reference was back-filled.
func (c *DualWriteCoordinator) Replicate(ctx context.Context, msg *domain.ChatMessage) bool {
	if msg == nil || msg.SecondaryRef != nil {
		return msg != nil
	}
	// the caller's request may end before the append does
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ref, err := c.log.Append(ctx, msg.ChatID, messagelog.RecordFromMessage(msg))
	if err != nil {
		if errors.Is(err, messagelog.ErrDisabled) {
			return false
		}
		c.metrics.RecordReplication("append_failed")
		c.logger.Warn("secondary append failed",
			zap.String("chat_id", msg.ChatID),
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return false
	}

	if err := c.chats.SetSecondaryRef(ctx, msg.ID, ref); err != nil {
		c.metrics.RecordReplication("backfill_failed")
		c.logger.Warn("secondary reference back-fill failed",
			zap.String("chat_id", msg.ChatID),
			zap.String("message_id", msg.ID),
			zap.String("secondary_ref", ref),
			zap.Error(err))
		return false
	}

	msg.SecondaryRef = &ref
	c.metrics.RecordReplication("ok")
	return true
}

// ReplicateAsync replicates a copy of msg in the background so a slow
// secondary store never holds up the caller.
func (c *DualWriteCoordinator) ReplicateAsync(ctx context.Context, msg domain.ChatMessage) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.Replicate(ctx, &msg)
	}()
}

// Wait blocks until every background replication has finished.
func (c *DualWriteCoordinator) Wait() {
	c.pending.Wait()
}

// ReconcilePending retries replication for messages created before olderThan
// that still lack a reference. It returns how many were back-filled.
func (c *DualWriteCoordinator) ReconcilePending(ctx context.Context, olderThan time.Time, batch int) (int, error) {
	pending, err := c.chats.ListUnreplicated(ctx, olderThan, batch)
	if err != nil {
		return 0, err
	}
	replicated := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if c.Replicate(ctx, &pending[i]) {
			replicated++
		}
	}
	if len(pending) > 0 {
		c.logger.Info("reconciliation pass",
			zap.Int("pending", len(pending)),
			zap.Int("replicated", replicated))
	}
	return replicated, nil
}
