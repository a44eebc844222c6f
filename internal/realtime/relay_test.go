package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/service"
)

type urlViewer struct{}

func (urlViewer) View(_ context.Context, msg *domain.ChatMessage) service.MessageView {
	view := service.MessageView{ChatMessage: *msg}
	if msg.Attachment != nil {
		view.AttachmentURL = "https://objects.test/" + msg.Attachment.ObjectKey
	}
	return view
}

func newRelayFixture(t *testing.T) (events.Dispatcher, *Hub, *Client) {
	t.Helper()
	hub := NewHub(zap.NewNop(), nil, 8)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewRelay(NewFanout(hub, nil, zap.NewNop()), urlViewer{}, zap.NewNop()).RegisterHandlers(dispatcher)

	client := hub.Register("owner-1")
	hub.Subscribe(client, "chat-1")
	return dispatcher, hub, client
}

func TestRelayMessageCarriesAttachmentURL(t *testing.T) {
	dispatcher, _, client := newRelayFixture(t)
	chat := domain.Chat{ID: "chat-1", OwnerID: "owner-1", Status: domain.ChatStatusActive, UnreadForOwner: 1}
	msg := domain.ChatMessage{
		ID:       "m1",
		ChatID:   "chat-1",
		SenderID: "agent-1",
		Kind:     domain.MessageKindImage,
		Attachment: &domain.Attachment{
			ObjectKey: "chat/chat-1/x.png",
			FileName:  "x.png",
			SizeBytes: 10,
			MimeType:  "image/png",
		},
		CreatedAt: time.Now(),
	}
	sender := domain.Participant{ID: "agent-1", DisplayName: "Ava", Role: domain.RoleAgent}

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatMessageSent, "chat-1", "agent-1",
		events.MessageSentPayload{Chat: chat, Message: msg, Sender: sender})))

	frame := recvFrame(t, client.Outbound, time.Second)
	assert.Equal(t, EventMessage, frame.Type)
	assert.Equal(t, "chat-1", frame.ChatID)

	var data MessageData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	require.NotNil(t, data.Message.Attachment)
	assert.Equal(t, "https://objects.test/chat/chat-1/x.png", data.Message.Attachment.URL)
	assert.Equal(t, "Ava", data.Sender.DisplayName)
	assert.Equal(t, 1, data.Chat.UnreadCountOwner)
}

func TestRelayStatusChangeEmitsSystemMessageThenThreadUpdate(t *testing.T) {
	dispatcher, _, client := newRelayFixture(t)
	closedAt := time.Now()
	chat := domain.Chat{ID: "chat-1", OwnerID: "owner-1", Status: domain.ChatStatusClosed, ClosedAt: &closedAt}
	system := domain.ChatMessage{ID: "m9", ChatID: "chat-1", SenderID: "agent-1", Content: "Chat closed by Ava", Kind: domain.MessageKindSystem}

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatStatusChanged, "chat-1", "agent-1",
		events.StatusChangedPayload{Chat: chat, OldStatus: domain.ChatStatusActive, NewStatus: domain.ChatStatusClosed, SystemMessage: &system})))

	first := recvFrame(t, client.Outbound, time.Second)
	assert.Equal(t, EventMessage, first.Type)
	second := recvFrame(t, client.Outbound, time.Second)
	assert.Equal(t, EventThreadUpdated, second.Type)

	var data ThreadData
	require.NoError(t, json.Unmarshal(second.Data, &data))
	assert.Equal(t, domain.ChatStatusClosed, data.NewStatus)
	require.NotNil(t, data.Chat)
	assert.NotNil(t, data.Chat.ClosedAt)
}

func TestRelayReadAndDelete(t *testing.T) {
	dispatcher, hub, client := newRelayFixture(t)
	chat := domain.Chat{ID: "chat-1", OwnerID: "owner-1", Status: domain.ChatStatusActive}

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatMessagesRead, "chat-1", "owner-1",
		events.MessagesReadPayload{Chat: chat, ReaderID: "owner-1", Side: domain.SideOwner, Marked: 2})))
	read := recvFrame(t, client.Outbound, time.Second)
	assert.Equal(t, EventRead, read.Type)

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventChatDeleted, "chat-1", "owner-1",
		events.ChatDeletedPayload{OwnerID: "owner-1"})))
	deleted := recvFrame(t, client.Outbound, time.Second)
	assert.Equal(t, EventThreadUpdated, deleted.Type)
	assert.JSONEq(t, `{"deleted":true}`, string(deleted.Data))
	assert.Zero(t, hub.Subscribers("chat-1"))
}
