package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/repository"
	"github.com/spec-kit/support-chat/internal/repository/memory"
)

func seedMessage(t *testing.T, chats *memory.ChatStore, content string) domain.ChatMessage {
	t.Helper()
	var msg domain.ChatMessage
	err := chats.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
		chat := &domain.Chat{OwnerID: ownerID, Subject: "s", Status: domain.ChatStatusOpen}
		if err := tx.InsertChat(ctx, chat); err != nil {
			return err
		}
		msg = domain.ChatMessage{ChatID: chat.ID, SenderID: ownerID, Content: content, Kind: domain.MessageKindText}
		return tx.InsertMessage(ctx, &msg)
	})
	require.NoError(t, err)
	return msg
}

func TestReplicateBackfillsReference(t *testing.T) {
	chats := memory.NewChatStore()
	log := newFakeMessageLog()
	coordinator := NewDualWriteCoordinator(chats, log, time.Second, nil, zap.NewNop())
	msg := seedMessage(t, chats, "byte for byte")

	require.True(t, coordinator.Replicate(context.Background(), &msg))
	require.NotNil(t, msg.SecondaryRef)

	stored, err := chats.ListMessages(context.Background(), msg.ChatID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, *msg.SecondaryRef, *stored[0].SecondaryRef)

	entries, err := log.QueryByThread(context.Background(), msg.ChatID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stored[0].Content, entries[0].Content)

	// already replicated messages are not appended twice
	require.True(t, coordinator.Replicate(context.Background(), &msg))
	entries, err = log.QueryByThread(context.Background(), msg.ChatID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReplicateSurvivesCancelledCaller(t *testing.T) {
	chats := memory.NewChatStore()
	coordinator := NewDualWriteCoordinator(chats, newFakeMessageLog(), time.Second, nil, zap.NewNop())
	msg := seedMessage(t, chats, "hi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, coordinator.Replicate(ctx, &msg))
}

func TestReplicateFailureLeavesReferenceNull(t *testing.T) {
	chats := memory.NewChatStore()
	log := newFakeMessageLog()
	log.setAppendErr(errors.New("timeout"))
	coordinator := NewDualWriteCoordinator(chats, log, time.Second, nil, zap.NewNop())
	msg := seedMessage(t, chats, "hi")

	assert.False(t, coordinator.Replicate(context.Background(), &msg))
	assert.Nil(t, msg.SecondaryRef)

	pending, err := chats.ListUnreplicated(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReplicateWithDisabledStore(t *testing.T) {
	chats := memory.NewChatStore()
	coordinator := NewDualWriteCoordinator(chats, messagelog.NewDisabledStore(), time.Second, nil, zap.NewNop())
	msg := seedMessage(t, chats, "hi")

	assert.False(t, coordinator.Replicate(context.Background(), &msg))
	replicated, err := coordinator.ReconcilePending(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Zero(t, replicated)
}
