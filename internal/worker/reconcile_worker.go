package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler retries secondary-store appends for messages older than a cutoff.
type Reconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Time, batch int) (int, error)
}

// ReconcileOptions tunes the reconciliation loop.
type ReconcileOptions struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// StartReconcileWorker runs reconciliation passes until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func StartReconcileWorker(ctx context.Context, reconciler Reconciler, opts ReconcileOptions, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if reconciler == nil || opts.Interval <= 0 {
		close(done)
		return done
	}
	logger = logger.With(zap.String("component", "reconcile-worker"))

	go func() {
		defer close(done)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunReconcilePass(ctx, reconciler, opts, logger)
			}
		}
	}()
	return done
}

// RunReconcilePass performs one bounded pass.
func RunReconcilePass(ctx context.Context, reconciler Reconciler, opts ReconcileOptions, logger *zap.Logger) int {
	cutoff := time.Now().Add(-opts.Grace)
	replicated, err := reconciler.ReconcilePending(ctx, cutoff, opts.BatchSize)
	if err != nil {
		logger.Warn("reconcile pass failed", zap.Error(err))
		return replicated
	}
	if replicated > 0 {
		logger.Info("reconciled messages", zap.Int("count", replicated))
	}
	return replicated
}
