package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
)

// PresenceChecker reports whether a participant has a live connection.
type PresenceChecker interface {
	IsOnline(participantID string) bool
}

// OfflineNotice is handed to the platform's push/email pipeline.
type OfflineNotice struct {
	RecipientID string
	ChatID      string
	EventType   events.EventType
	Preview     string
}

// NotificationService tells offline participants about chat activity.
type NotificationService struct {
	dispatcher events.Dispatcher
	presence   PresenceChecker
	logger     *zap.Logger
	cfg        config.NotificationConfig
	sink       func(context.Context, OfflineNotice)
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, presence PresenceChecker, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	n := &NotificationService{
		dispatcher: dispatcher,
		presence:   presence,
		logger:     logger.With(zap.String("component", "notifications")),
		cfg:        cfg,
	}
	n.sink = n.deliver
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventChatCreated, n.handleChatCreated)
	n.dispatcher.Subscribe(events.EventChatMessageSent, n.handleMessageSent)
	n.dispatcher.Subscribe(events.EventChatStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventChatAssigned, n.handleAssigned)
}

func (n *NotificationService) handleChatCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ChatCreatedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ChatCreated", zap.String("chat_id", event.ChatID), zap.String("subject", payload.Chat.Subject))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageSent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageSentPayload)
	if !ok {
		return nil
	}
	recipient := counterpart(&payload.Chat, payload.Message.SenderID)
	if recipient == "" {
		return nil
	}
	n.notifyIfOffline(ctx, OfflineNotice{
		RecipientID: recipient,
		ChatID:      event.ChatID,
		EventType:   event.Type,
		Preview:     payload.Chat.LastMessagePreview,
	})
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ChatStatusChanged",
		zap.String("chat_id", event.ChatID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))
	if payload.NewStatus == domain.ChatStatusClosed {
		if recipient := counterpart(&payload.Chat, event.ActorID); recipient != "" {
			n.notifyIfOffline(ctx, OfflineNotice{
				RecipientID: recipient,
				ChatID:      event.ChatID,
				EventType:   event.Type,
				Preview:     payload.Chat.LastMessagePreview,
			})
		}
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignedPayload)
	if !ok {
		return nil
	}
	if payload.StaffID != event.ActorID {
		n.notifyIfOffline(ctx, OfflineNotice{
			RecipientID: payload.StaffID,
			ChatID:      event.ChatID,
			EventType:   event.Type,
			Preview:     payload.Chat.Subject,
		})
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) notifyIfOffline(ctx context.Context, notice OfflineNotice) {
	if n.presence != nil && n.presence.IsOnline(notice.RecipientID) {
		return
	}
	n.sink(ctx, notice)
}

func (n *NotificationService) deliver(ctx context.Context, notice OfflineNotice) {
	n.logger.Info("offline recipient",
		zap.String("recipient_id", notice.RecipientID),
		zap.String("chat_id", notice.ChatID),
		zap.String("event_type", string(notice.EventType)))
	n.sendEmailNotificationStub(ctx, notice)
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, notice OfflineNotice) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", notice.RecipientID),
		zap.String("chat_id", notice.ChatID))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("chat_id", event.ChatID),
		zap.String("event_type", string(event.Type)))
}

// counterpart returns who should hear about an action by actorID: the
// assigned staff member for the owner, the owner for everyone else.
func counterpart(chat *domain.Chat, actorID string) string {
	if chat.SideOf(actorID) == domain.SideOwner {
		if chat.AssignedStaffID != nil {
			return *chat.AssignedStaffID
		}
		return ""
	}
	return chat.OwnerID
}
