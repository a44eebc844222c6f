package messagelog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-chat/internal/domain"
)

type redisStreamStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStreamStore appends records to one Redis stream per chat.
// The stream entry id is the external reference.
func NewRedisStreamStore(client *redis.Client, prefix string) Store {
	return &redisStreamStore{client: client, prefix: prefix}
}

func (s *redisStreamStore) key(chatID string) string {
	return s.prefix + chatID
}

func (s *redisStreamStore) Append(ctx context.Context, chatID string, rec Record) (string, error) {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key(chatID),
		Values: map[string]any{
			"message_id":     rec.MessageID,
			"chat_id":        chatID,
			"sender_id":      rec.SenderID,
			"content":        rec.Content,
			"kind":           string(rec.Kind),
			"attachment_key": rec.AttachmentKey,
			"is_staff":       strconv.FormatBool(rec.IsStaff),
			"created_at":     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.key(chatID), err)
	}
	return id, nil
}

// QueryByThread returns the newest limit entries in ascending order.
func (s *redisStreamStore) QueryByThread(ctx context.Context, chatID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	msgs, err := s.client.XRevRangeN(ctx, s.key(chatID), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		entries = append(entries, decodeStreamEntry(msgs[i]))
	}
	return entries, nil
}

func (s *redisStreamStore) DeleteByThread(ctx context.Context, chatID string) error {
	return s.client.Del(ctx, s.key(chatID)).Err()
}

func decodeStreamEntry(msg redis.XMessage) Entry {
	field := func(name string) string {
		if v, ok := msg.Values[name].(string); ok {
			return v
		}
		return ""
	}
	entry := Entry{Ref: msg.ID}
	entry.MessageID = field("message_id")
	entry.ChatID = field("chat_id")
	entry.SenderID = field("sender_id")
	entry.Content = field("content")
	entry.Kind = domain.MessageKind(field("kind"))
	entry.AttachmentKey = field("attachment_key")
	entry.IsStaff, _ = strconv.ParseBool(field("is_staff"))
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, field("created_at"))
	return entry
}
