package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

type countingDirectory struct {
	calls int
	users map[string]domain.Participant
}

func (d *countingDirectory) FindByID(_ context.Context, id string) (*domain.Participant, error) {
	d.calls++
	p, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func TestCachedUserDirectoryReadsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingDirectory{users: map[string]domain.Participant{
		"u1": {ID: "u1", DisplayName: "Dana", Email: "dana@example.com", Role: domain.RoleAgent},
	}}
	dir := NewCachedUserDirectory(inner, client, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := dir.FindByID(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "Dana", p.DisplayName)
		assert.True(t, p.IsStaff())
	}
	assert.Equal(t, 1, inner.calls)
	assert.True(t, mr.Exists(directoryCachePrefix+"u1"))

	mr.FastForward(2 * time.Minute)
	_, err := dir.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedUserDirectoryDoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingDirectory{users: map[string]domain.Participant{}}
	dir := NewCachedUserDirectory(inner, client, time.Minute, zap.NewNop())

	_, err := dir.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(directoryCachePrefix+"ghost"))
}

func TestCachedUserDirectoryFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	inner := &countingDirectory{users: map[string]domain.Participant{"u1": {ID: "u1", Role: domain.RoleUser}}}
	dir := NewCachedUserDirectory(inner, client, time.Minute, zap.NewNop())

	p, err := dir.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, p.IsStaff())
}
