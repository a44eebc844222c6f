// Package messagelog replicates chat messages into an append-optimized store
// used for historical scans. The relational store stays authoritative.
package messagelog

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// ErrDisabled is returned when no secondary store is configured.
var ErrDisabled = errors.New("message log disabled")

// Record is the replicated form of a chat message.
type Record struct {
	MessageID     string             `json:"message_id" bson:"message_id"`
	ChatID        string             `json:"chat_id" bson:"chat_id"`
	SenderID      string             `json:"sender_id" bson:"sender_id"`
	Content       string             `json:"content" bson:"content"`
	Kind          domain.MessageKind `json:"kind" bson:"kind"`
	AttachmentKey string             `json:"attachment_key,omitempty" bson:"attachment_key,omitempty"`
	IsStaff       bool               `json:"is_staff" bson:"is_staff"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// Entry is a stored record together with the store generated reference.
type Entry struct {
	Ref string `json:"ref"`
	Record
}

// Store is the secondary append store contract.
type Store interface {
	Append(ctx context.Context, chatID string, rec Record) (string, error)
	QueryByThread(ctx context.Context, chatID string, limit int) ([]Entry, error)
	DeleteByThread(ctx context.Context, chatID string) error
}

// RecordFromMessage builds the replicated record for msg.
func RecordFromMessage(msg *domain.ChatMessage) Record {
	rec := Record{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Kind:      msg.Kind,
		IsStaff:   msg.IsStaffMessage,
		CreatedAt: msg.CreatedAt.UTC(),
	}
	if msg.Attachment != nil {
		rec.AttachmentKey = msg.Attachment.ObjectKey
	}
	return rec
}

type disabledStore struct{}

// NewDisabledStore returns a Store that replicates nothing.
func NewDisabledStore() Store {
	return disabledStore{}
}

func (disabledStore) Append(context.Context, string, Record) (string, error) {
	return "", ErrDisabled
}

func (disabledStore) QueryByThread(context.Context, string, int) ([]Entry, error) {
	return nil, ErrDisabled
}

func (disabledStore) DeleteByThread(context.Context, string) error {
	return nil
}
