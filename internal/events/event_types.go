package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventChatCreated       EventType = "chat_created"
	EventChatMessageSent   EventType = "chat_message_sent"
	EventChatMessagesRead  EventType = "chat_messages_read"
	EventChatStatusChanged EventType = "chat_status_changed"
	EventChatAssigned      EventType = "chat_assigned"
	EventChatDeleted       EventType = "chat_deleted"
)

// Event represents a domain event emitted after a chat transaction commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChatID    string      `json:"chat_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, chatID, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChatID:    chatID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ChatCreatedPayload payload.
type ChatCreatedPayload struct {
	Chat    domain.Chat        `json:"chat"`
	Message domain.ChatMessage `json:"message"`
}

// MessageSentPayload payload. Chat is the state right after the send.
type MessageSentPayload struct {
	Chat    domain.Chat        `json:"chat"`
	Message domain.ChatMessage `json:"message"`
	Sender  domain.Participant `json:"sender"`
}

// MessagesReadPayload payload.
type MessagesReadPayload struct {
	Chat     domain.Chat `json:"chat"`
	ReaderID string      `json:"reader_id"`
	Side     domain.Side `json:"side"`
	Marked   int64       `json:"marked"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	Chat          domain.Chat         `json:"chat"`
	OldStatus     domain.ChatStatus   `json:"old_status"`
	NewStatus     domain.ChatStatus   `json:"new_status"`
	SystemMessage *domain.ChatMessage `json:"system_message,omitempty"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	Chat          domain.Chat         `json:"chat"`
	StaffID       string              `json:"staff_id"`
	SystemMessage *domain.ChatMessage `json:"system_message,omitempty"`
}

// ChatDeletedPayload payload.
type ChatDeletedPayload struct {
	OwnerID string `json:"owner_id"`
}
