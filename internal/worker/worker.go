package worker

import (
	"context"

	"go.uber.org/zap"
)

// Subscriber attaches its handlers to the event dispatcher.
type Subscriber interface {
	RegisterHandlers()
}

// Drainer finishes in-flight background work.
type Drainer interface {
	Wait()
}

// Set is the background work that runs alongside the HTTP server.
type Set struct {
	// Subscribers react to chat events, e.g. offline notifications.
	Subscribers []Subscriber
	Reconciler  Reconciler
	Reconcile   ReconcileOptions
	// Replication is drained on shutdown so accepted messages still reach the
	// secondary store.
	Replication Drainer
}

// Start registers the subscribers and launches reconciliation. The returned
// func blocks until the reconcile loop has exited (after ctx is cancelled) and
// pending replication has drained.
func Start(ctx context.Context, set Set, logger *zap.Logger) func() {
	for _, sub := range set.Subscribers {
		if sub != nil {
			sub.RegisterHandlers()
		}
	}
	reconcileDone := StartReconcileWorker(ctx, set.Reconciler, set.Reconcile, logger)
	logger.Info("workers started",
		zap.Int("subscribers", len(set.Subscribers)),
		zap.Duration("reconcile_interval", set.Reconcile.Interval))

	return func() {
		<-reconcileDone
		if set.Replication != nil {
			set.Replication.Wait()
		}
	}
}
