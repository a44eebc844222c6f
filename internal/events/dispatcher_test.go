package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherContinuesAfterFailures(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var calls []string

	d.Subscribe(EventChatCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventChatCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		panic("handler exploded")
	})
	d.Subscribe(EventChatCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "third:"+e.ChatID)
		return nil
	})
	d.Subscribe(EventChatDeleted, func(context.Context, Event) error {
		calls = append(calls, "unrelated")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), NewEvent(EventChatCreated, "c1", "u1", nil)))
	assert.Equal(t, []string{"first", "second", "third:c1"}, calls)
}

func TestNewEventStampsIdentity(t *testing.T) {
	e := NewEvent(EventChatAssigned, "c1", "s1", AssignedPayload{StaffID: "s1"})
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "s1", e.Payload.(AssignedPayload).StaffID)
}
