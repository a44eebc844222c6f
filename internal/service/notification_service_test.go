package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

type staticPresence map[string]bool

func (p staticPresence) IsOnline(id string) bool { return p[id] }

func TestNotificationsReachOfflineCounterpart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var notices []OfflineNotice
	notifier := NewNotificationService(f.dispatcher, staticPresence{agentID: true}, zap.NewNop(), config.NotificationConfig{})
	notifier.sink = func(_ context.Context, n OfflineNotice) { notices = append(notices, n) }
	notifier.RegisterHandlers()

	chat := f.mustCreate(t)
	_, err := f.svc.AssignStaff(ctx, leadID, chat.ID, agentID)
	require.NoError(t, err)

	// agent is online, so the owner's message produces no notice
	_, err = f.svc.SendMessage(ctx, ownerID, chat.ID, SendMessageInput{Content: "any news?"})
	require.NoError(t, err)
	assert.Empty(t, notices)

	_, err = f.svc.SendMessage(ctx, agentID, chat.ID, SendMessageInput{Content: "fixed"})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, ownerID, notices[0].RecipientID)
	assert.Equal(t, "fixed", notices[0].Preview)
}
