package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisFanout(t *testing.T, mr *miniredis.Miniredis) *Fanout {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus, err := NewRedisBus(client, "test:events", zap.NewNop())
	require.NoError(t, err)
	return NewFanout(NewHub(zap.NewNop(), nil, 8), bus, zap.NewNop())
}

func TestFanoutForwardsAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newRedisFanout(t, mr)
	b := newRedisFanout(t, mr)
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	local := a.Hub().Register("owner-1")
	a.Hub().Subscribe(local, "chat-1")
	remote := b.Hub().Register("agent-1")
	b.Hub().Subscribe(remote, "chat-1")

	frame := mustFrame(t, EventMessage, "chat-1", map[string]string{"content": "Looking into it"})
	a.Publish(ctx, frame, "")

	got := recvFrame(t, remote.Outbound, 2*time.Second)
	assert.Equal(t, EventMessage, got.Type)
	assert.JSONEq(t, string(frame.Data), string(got.Data))

	assert.Equal(t, EventMessage, recvFrame(t, local.Outbound, time.Second).Type)
	// the publishing instance ignores its own envelope
	assertNoFrame(t, local.Outbound)
}

func TestFanoutWithoutBusIsLocal(t *testing.T) {
	fanout := NewFanout(NewHub(zap.NewNop(), nil, 8), nil, zap.NewNop())
	require.NoError(t, fanout.Start(context.Background()))

	client := fanout.Hub().Register("owner-1")
	fanout.Hub().Subscribe(client, "chat-1")
	fanout.Publish(context.Background(), mustFrame(t, EventRead, "chat-1", nil), "")
	assert.Equal(t, EventRead, recvFrame(t, client.Outbound, time.Second).Type)
}
