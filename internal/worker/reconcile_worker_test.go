package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingReconciler struct {
	calls  atomic.Int32
	cutoff atomic.Value
	err    error
}

func (r *countingReconciler) ReconcilePending(_ context.Context, olderThan time.Time, batch int) (int, error) {
	r.calls.Add(1)
	r.cutoff.Store(olderThan)
	if r.err != nil {
		return 0, r.err
	}
	return batch, nil
}

func TestRunReconcilePassUsesGraceCutoff(t *testing.T) {
	r := &countingReconciler{}
	before := time.Now()

	n := RunReconcilePass(context.Background(), r, ReconcileOptions{Grace: time.Minute, BatchSize: 7}, zap.NewNop())
	assert.Equal(t, 7, n)
	cutoff := r.cutoff.Load().(time.Time)
	assert.WithinDuration(t, before.Add(-time.Minute), cutoff, time.Second)

	r.err = errors.New("db down")
	assert.Zero(t, RunReconcilePass(context.Background(), r, ReconcileOptions{BatchSize: 7}, zap.NewNop()))
}

func TestReconcileWorkerStopsWithContext(t *testing.T) {
	r := &countingReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartReconcileWorker(ctx, r, ReconcileOptions{Interval: 10 * time.Millisecond, BatchSize: 1}, zap.NewNop())

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestReconcileWorkerDisabled(t *testing.T) {
	done := StartReconcileWorker(context.Background(), nil, ReconcileOptions{Interval: time.Second}, zap.NewNop())
	_, open := <-done
	assert.False(t, open)
}
