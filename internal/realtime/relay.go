package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/service"
)

// MessageViewer resolves the client facing view of a stored message.
type MessageViewer interface {
	View(ctx context.Context, msg *domain.ChatMessage) service.MessageView
}

// MessageData is the payload of a MESSAGE frame.
type MessageData struct {
	Message dto.MessageResponse `json:"message"`
	Sender  *domain.Participant `json:"sender,omitempty"`
	Chat    dto.ChatResponse    `json:"chat"`
}

// ReadData is the payload of a READ frame.
type ReadData struct {
	ReaderID string           `json:"reader_id"`
	Side     domain.Side      `json:"side"`
	Marked   int64            `json:"marked"`
	Chat     dto.ChatResponse `json:"chat"`
}

// ThreadData is the payload of a THREAD_UPDATED frame.
type ThreadData struct {
	Chat      *dto.ChatResponse `json:"chat,omitempty"`
	OldStatus domain.ChatStatus `json:"old_status,omitempty"`
	NewStatus domain.ChatStatus `json:"new_status,omitempty"`
	Deleted   bool              `json:"deleted,omitempty"`
}

// Relay turns committed domain events into frames for live subscribers.
type Relay struct {
	fanout *Fanout
	viewer MessageViewer
	logger *zap.Logger
}

// NewRelay creates a relay.
func NewRelay(fanout *Fanout, viewer MessageViewer, logger *zap.Logger) *Relay {
	return &Relay{
		fanout: fanout,
		viewer: viewer,
		logger: logger.With(zap.String("component", "realtime_relay")),
	}
}

// RegisterHandlers subscribes the relay to chat events.
func (r *Relay) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventChatMessageSent, r.handleMessageSent)
	dispatcher.Subscribe(events.EventChatMessagesRead, r.handleMessagesRead)
	dispatcher.Subscribe(events.EventChatStatusChanged, r.handleStatusChanged)
	dispatcher.Subscribe(events.EventChatAssigned, r.handleAssigned)
	dispatcher.Subscribe(events.EventChatDeleted, r.handleDeleted)
}

func (r *Relay) handleMessageSent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageSentPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	sender := payload.Sender
	return r.publishMessage(ctx, &payload.Chat, &payload.Message, &sender)
}

func (r *Relay) handleMessagesRead(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessagesReadPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return r.publish(ctx, EventRead, event.ChatID, ReadData{
		ReaderID: payload.ReaderID,
		Side:     payload.Side,
		Marked:   payload.Marked,
		Chat:     dto.NewChatResponse(&payload.Chat),
	})
}

func (r *Relay) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.SystemMessage != nil {
		if err := r.publishMessage(ctx, &payload.Chat, payload.SystemMessage, nil); err != nil {
			return err
		}
	}
	chat := dto.NewChatResponse(&payload.Chat)
	return r.publish(ctx, EventThreadUpdated, event.ChatID, ThreadData{
		Chat:      &chat,
		OldStatus: payload.OldStatus,
		NewStatus: payload.NewStatus,
	})
}

func (r *Relay) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.SystemMessage != nil {
		if err := r.publishMessage(ctx, &payload.Chat, payload.SystemMessage, nil); err != nil {
			return err
		}
	}
	chat := dto.NewChatResponse(&payload.Chat)
	return r.publish(ctx, EventThreadUpdated, event.ChatID, ThreadData{Chat: &chat})
}

func (r *Relay) handleDeleted(ctx context.Context, event events.Event) error {
	err := r.publish(ctx, EventThreadUpdated, event.ChatID, ThreadData{Deleted: true})
	r.fanout.Hub().DropChat(event.ChatID)
	return err
}

func (r *Relay) publishMessage(ctx context.Context, chat *domain.Chat, msg *domain.ChatMessage, sender *domain.Participant) error {
	view := service.MessageView{ChatMessage: *msg}
	if r.viewer != nil {
		view = r.viewer.View(ctx, msg)
	}
	return r.publish(ctx, EventMessage, chat.ID, MessageData{
		Message: dto.NewMessageResponse(view),
		Sender:  sender,
		Chat:    dto.NewChatResponse(chat),
	})
}

func (r *Relay) publish(ctx context.Context, eventType EventType, chatID string, data any) error {
	frame, err := NewFrame(eventType, chatID, data)
	if err != nil {
		return err
	}
	r.fanout.Publish(ctx, frame, "")
	return nil
}
