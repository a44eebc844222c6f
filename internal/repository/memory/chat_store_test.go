package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

func seedChat(t *testing.T, store *ChatStore, owner string) *domain.Chat {
	t.Helper()
	chat := &domain.Chat{OwnerID: owner, Subject: "Billing issue", Status: domain.ChatStatusOpen, MessageCount: 1, UnreadForStaff: 1}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
		if err := tx.InsertChat(ctx, chat); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, &domain.ChatMessage{ChatID: chat.ID, SenderID: owner, Content: "hi", Kind: domain.MessageKindText})
	})
	require.NoError(t, err)
	return chat
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := NewChatStore()
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
		chat := &domain.Chat{OwnerID: "owner", Subject: "s", Status: domain.ChatStatusOpen}
		require.NoError(t, tx.InsertChat(ctx, chat))
		return boom
	})
	require.ErrorIs(t, err, boom)

	chats, err := store.ListChats(context.Background(), repository.ChatFilter{})
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestMessagesAreOrderedAndPaged(t *testing.T) {
	store := NewChatStore()
	chat := seedChat(t, store, "owner")

	for i := 0; i < 4; i++ {
		err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
			return tx.InsertMessage(ctx, &domain.ChatMessage{ChatID: chat.ID, SenderID: "staff", Content: "reply", Kind: domain.MessageKindText})
		})
		require.NoError(t, err)
	}

	all, err := store.ListMessages(context.Background(), chat.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	paged, err := store.ListMessages(context.Background(), chat.ID, 2, 3)
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, all[3].ID, paged[0].ID)
}

func TestEqualTimestampsAreOrderedByID(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	store := NewChatStore(WithClock(func() time.Time { return at }))
	chat := seedChat(t, store, "owner")

	for i := 0; i < 6; i++ {
		err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
			return tx.InsertMessage(ctx, &domain.ChatMessage{ChatID: chat.ID, SenderID: "staff", Content: "reply", Kind: domain.MessageKindText})
		})
		require.NoError(t, err)
	}

	all, err := store.ListMessages(context.Background(), chat.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i := 1; i < len(all); i++ {
		require.True(t, all[i].CreatedAt.Equal(at))
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	var paged []domain.ChatMessage
	for offset := 0; offset < len(all); offset += 3 {
		page, err := store.ListMessages(context.Background(), chat.ID, 3, offset)
		require.NoError(t, err)
		paged = append(paged, page...)
	}
	assert.Equal(t, all, paged)
}

func TestMarkReadSkipsReadersOwnMessages(t *testing.T) {
	store := NewChatStore()
	chat := seedChat(t, store, "owner")
	at := time.Now().UTC()

	var marked int64
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
		var err error
		marked, err = tx.MarkRead(ctx, chat.ID, "owner", at)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, marked)

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx repository.ChatTx) error {
		var err error
		marked, err = tx.MarkRead(ctx, chat.ID, "staff", at)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	msgs, err := store.ListMessages(context.Background(), chat.ID, 0, 0)
	require.NoError(t, err)
	assert.True(t, msgs[0].IsRead)
	require.NotNil(t, msgs[0].ReadAt)
}

func TestListChatsFilters(t *testing.T) {
	store := NewChatStore()
	first := seedChat(t, store, "alice")
	seedChat(t, store, "bob")

	owner := "alice"
	chats, err := store.ListChats(context.Background(), repository.ChatFilter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, first.ID, chats[0].ID)

	unread := true
	chats, err = store.ListChats(context.Background(), repository.ChatFilter{HasUnread: &unread, UnreadSide: domain.SideOwner})
	require.NoError(t, err)
	assert.Empty(t, chats)

	chats, err = store.ListChats(context.Background(), repository.ChatFilter{HasUnread: &unread, UnreadSide: domain.SideStaff})
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	term := "BILLING"
	chats, err = store.ListChats(context.Background(), repository.ChatFilter{SearchTerm: &term, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	store := NewChatStore()
	chat := seedChat(t, store, "owner")

	require.NoError(t, store.DeleteChat(context.Background(), chat.ID))
	_, err := store.GetChat(context.Background(), chat.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	msgs, err := store.ListMessages(context.Background(), chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, store.DeleteChat(context.Background(), chat.ID), repository.ErrNotFound)
}

func TestSecondaryRefBackfillIsWriteOnce(t *testing.T) {
	store := NewChatStore()
	chat := seedChat(t, store, "owner")

	pending, err := store.ListUnreplicated(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.SetSecondaryRef(context.Background(), pending[0].ID, "ref-1"))
	require.NoError(t, store.SetSecondaryRef(context.Background(), pending[0].ID, "ref-2"))

	msgs, err := store.ListMessages(context.Background(), chat.ID, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, msgs[0].SecondaryRef)
	assert.Equal(t, "ref-1", *msgs[0].SecondaryRef)

	pending, err = store.ListUnreplicated(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
