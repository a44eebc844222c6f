// Package memory holds process-local repository implementations used when no
// Postgres DSN is configured and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
)

type state struct {
	chats    map[string]domain.Chat
	messages map[string]domain.ChatMessage
	order    map[string][]string
}

func (s state) clone() state {
	out := state{
		chats:    make(map[string]domain.Chat, len(s.chats)),
		messages: make(map[string]domain.ChatMessage, len(s.messages)),
		order:    make(map[string][]string, len(s.order)),
	}
	for k, v := range s.chats {
		out.chats[k] = v
	}
	for k, v := range s.messages {
		out.messages[k] = v
	}
	for k, v := range s.order {
		out.order[k] = append([]string(nil), v...)
	}
	return out
}

// ChatStore is an in-memory repository.ChatRepository. Transactions are
// serialized on a single mutex and applied atomically on success.
type ChatStore struct {
	mu         sync.Mutex
	data       state
	lastTS     time.Time
	now        func() time.Time
	fixedClock bool
}

// Option configures a ChatStore.
type Option func(*ChatStore)

// WithClock stamps rows with now as-is, so equal readings produce equal
// timestamps the way concurrent Postgres inserts can.
func WithClock(now func() time.Time) Option {
	return func(s *ChatStore) {
		s.now = now
		s.fixedClock = true
	}
}

// NewChatStore returns an empty store.
func NewChatStore(opts ...Option) *ChatStore {
	s := &ChatStore{
		data: state{
			chats:    map[string]domain.Chat{},
			messages: map[string]domain.ChatMessage{},
			order:    map[string][]string{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.ChatRepository = (*ChatStore)(nil)

// timestamp returns strictly increasing microsecond timestamps unless a
// clock was supplied. Caller holds mu.
func (s *ChatStore) timestamp() time.Time {
	ts := s.now().Truncate(time.Microsecond)
	if s.fixedClock {
		return ts
	}
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = ts
	return ts
}

func (s *ChatStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.ChatTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &chatTx{store: s, data: s.data.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *ChatStore) GetChat(_ context.Context, id string) (*domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.data.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &chat, nil
}

func (s *ChatStore) ListChats(_ context.Context, filter repository.ChatFilter) ([]domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}

	var result []domain.Chat
	for _, chat := range s.data.chats {
		if filter.OwnerID != nil && chat.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AssigneeID != nil && (chat.AssignedStaffID == nil || *chat.AssignedStaffID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, chat.Status) {
			continue
		}
		if filter.CreatedFrom != nil && chat.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && chat.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(chat.Subject), search) &&
			!strings.Contains(strings.ToLower(chat.LastMessagePreview), search) {
			continue
		}
		if filter.HasUnread != nil {
			unread := chat.UnreadForStaff
			if filter.UnreadSide == domain.SideOwner {
				unread = chat.UnreadForOwner
			}
			if (unread > 0) != *filter.HasUnread {
				continue
			}
		}
		result = append(result, chat)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func (s *ChatStore) ListMessages(_ context.Context, chatID string, limit, offset int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.data.order[chatID]
	msgs := make([]domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, s.data.messages[id])
	}
	sortMessages(msgs)
	return page(msgs, limit, offset), nil
}

func (s *ChatStore) ListAttachmentKeys(_ context.Context, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for _, id := range s.data.order[chatID] {
		if att := s.data.messages[id].Attachment; att != nil {
			keys = append(keys, att.ObjectKey)
		}
	}
	return keys, nil
}

func (s *ChatStore) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.chats[id]; !ok {
		return repository.ErrNotFound
	}
	for _, msgID := range s.data.order[id] {
		delete(s.data.messages, msgID)
	}
	delete(s.data.order, id)
	delete(s.data.chats, id)
	return nil
}

func (s *ChatStore) SetSecondaryRef(_ context.Context, messageID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.data.messages[messageID]
	if !ok || msg.SecondaryRef != nil {
		return nil
	}
	msg.SecondaryRef = &ref
	s.data.messages[messageID] = msg
	return nil
}

func (s *ChatStore) ListUnreplicated(_ context.Context, olderThan time.Time, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []domain.ChatMessage
	for _, msg := range s.data.messages {
		if msg.SecondaryRef == nil && msg.CreatedAt.Before(olderThan) {
			msgs = append(msgs, msg)
		}
	}
	sortMessages(msgs)
	return page(msgs, limit, 0), nil
}

type chatTx struct {
	store *ChatStore
	data  state
}

func (t *chatTx) LockChat(_ context.Context, id string) (*domain.Chat, error) {
	chat, ok := t.data.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &chat, nil
}

func (t *chatTx) InsertChat(_ context.Context, chat *domain.Chat) error {
	ts := t.store.timestamp()
	chat.ID = uuid.NewString()
	chat.CreatedAt = ts
	chat.UpdatedAt = ts
	t.data.chats[chat.ID] = *chat
	return nil
}

func (t *chatTx) UpdateChat(_ context.Context, chat *domain.Chat) error {
	if _, ok := t.data.chats[chat.ID]; !ok {
		return repository.ErrNotFound
	}
	chat.UpdatedAt = t.store.timestamp()
	t.data.chats[chat.ID] = *chat
	return nil
}

func (t *chatTx) InsertMessage(_ context.Context, msg *domain.ChatMessage) error {
	if _, ok := t.data.chats[msg.ChatID]; !ok {
		return repository.ErrNotFound
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = t.store.timestamp()
	t.data.messages[msg.ID] = *msg
	t.data.order[msg.ChatID] = append(t.data.order[msg.ChatID], msg.ID)
	return nil
}

func (t *chatTx) MarkRead(_ context.Context, chatID, readerID string, at time.Time) (int64, error) {
	var n int64
	for _, id := range t.data.order[chatID] {
		msg := t.data.messages[id]
		if msg.SenderID == readerID || msg.IsRead {
			continue
		}
		readAt := at
		msg.IsRead = true
		msg.ReadAt = &readAt
		t.data.messages[id] = msg
		n++
	}
	return n, nil
}

func sortMessages(msgs []domain.ChatMessage) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func containsStatus(statuses []domain.ChatStatus, status domain.ChatStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
