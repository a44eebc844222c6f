package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-chat/internal/domain"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// ErrNotFound is returned when a chat row does not exist.
var ErrNotFound = pgx.ErrNoRows

// ChatFilter captures list parameters for chats.
type ChatFilter struct {
	OwnerID     *string
	AssigneeID  *string
	Statuses    []domain.ChatStatus
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// HasUnread filters on the counter of UnreadSide.
	HasUnread  *bool
	UnreadSide domain.Side
	Limit      int
	Offset     int
}

// ChatTx is the set of operations available inside a chat transaction.
// Every counter mutation happens after LockChat has taken the row lock.
type ChatTx interface {
	LockChat(ctx context.Context, id string) (*domain.Chat, error)
	InsertChat(ctx context.Context, chat *domain.Chat) error
	UpdateChat(ctx context.Context, chat *domain.Chat) error
	InsertMessage(ctx context.Context, msg *domain.ChatMessage) error
	MarkRead(ctx context.Context, chatID, readerID string, at time.Time) (int64, error)
}

// ChatRepository is the authoritative store for chats and their messages.
type ChatRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ChatTx) error) error
	GetChat(ctx context.Context, id string) (*domain.Chat, error)
	ListChats(ctx context.Context, filter ChatFilter) ([]domain.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]domain.ChatMessage, error)
	ListAttachmentKeys(ctx context.Context, chatID string) ([]string, error)
	DeleteChat(ctx context.Context, id string) error
	SetSecondaryRef(ctx context.Context, messageID, ref string) error
	ListUnreplicated(ctx context.Context, olderThan time.Time, limit int) ([]domain.ChatMessage, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const chatColumns = `id, owner_user_id, assigned_staff_id, subject, status, message_count,
               unread_count_owner, unread_count_staff, last_message_preview, last_message_at,
               created_at, updated_at, closed_at`

const messageColumns = `id, chat_id, sender_id, content, kind, attachment_key, attachment_name,
               attachment_size, attachment_mime, is_read, read_at, is_staff_message, created_at, secondary_ref`

type chatQueries struct {
	q querier
}

type chatRepository struct {
	chatQueries
	pool *pgxpool.Pool
}

type chatTx struct {
	chatQueries
}

// NewChatRepository returns a Postgres-backed ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{chatQueries: chatQueries{q: pool}, pool: pool}
}

func (r *chatRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ChatTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &chatTx{chatQueries: chatQueries{q: tx}})
	})
}

func (t *chatTx) LockChat(ctx context.Context, id string) (*domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id=$1 FOR UPDATE`
	chat, err := scanChat(t.q.QueryRow(ctx, query, id))
	return chat, lookupError(err)
}

func (t *chatTx) InsertChat(ctx context.Context, chat *domain.Chat) error {
	const query = `
        INSERT INTO chats (owner_user_id, assigned_staff_id, subject, status, message_count,
                           unread_count_owner, unread_count_staff, last_message_preview, last_message_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return t.q.QueryRow(ctx, query,
		chat.OwnerID,
		chat.AssignedStaffID,
		chat.Subject,
		chat.Status,
		chat.MessageCount,
		chat.UnreadForOwner,
		chat.UnreadForStaff,
		chat.LastMessagePreview,
		chat.LastMessageAt,
	).Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt)
}

func (t *chatTx) UpdateChat(ctx context.Context, chat *domain.Chat) error {
	const query = `
        UPDATE chats SET assigned_staff_id=$1, status=$2, message_count=$3, unread_count_owner=$4,
            unread_count_staff=$5, last_message_preview=$6, last_message_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := t.q.QueryRow(ctx, query,
		chat.AssignedStaffID,
		chat.Status,
		chat.MessageCount,
		chat.UnreadForOwner,
		chat.UnreadForStaff,
		chat.LastMessagePreview,
		chat.LastMessageAt,
		chat.ClosedAt,
		chat.ID,
	).Scan(&chat.UpdatedAt)
	return err
}

func (t *chatTx) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (chat_id, sender_id, content, kind, attachment_key, attachment_name,
                                   attachment_size, attachment_mime, is_staff_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	var key, name, mime *string
	var size *int64
	if msg.Attachment != nil {
		key, name, size, mime = &msg.Attachment.ObjectKey, &msg.Attachment.FileName, &msg.Attachment.SizeBytes, &msg.Attachment.MimeType
	}
	return t.q.QueryRow(ctx, query,
		msg.ChatID,
		msg.SenderID,
		msg.Content,
		msg.Kind,
		key,
		name,
		size,
		mime,
		msg.IsStaffMessage,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (t *chatTx) MarkRead(ctx context.Context, chatID, readerID string, at time.Time) (int64, error) {
	const query = `
        UPDATE chat_messages SET is_read=TRUE, read_at=$3
        WHERE chat_id=$1 AND sender_id<>$2 AND NOT is_read`
	cmd, err := t.q.Exec(ctx, query, chatID, readerID, at)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (c chatQueries) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id=$1`
	chat, err := scanChat(c.q.QueryRow(ctx, query, id))
	return chat, lookupError(err)
}

func (c chatQueries) ListChats(ctx context.Context, filter ChatFilter) ([]domain.Chat, error) {
	base := `SELECT ` + chatColumns + ` FROM chats`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE $%d OR LOWER(last_message_preview) LIKE $%d)", len(args), len(args)))
	}
	if filter.HasUnread != nil {
		column := "unread_count_staff"
		if filter.UnreadSide == domain.SideOwner {
			column = "unread_count_owner"
		}
		op := "="
		if *filter.HasUnread {
			op = ">"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s 0", column, op))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY updated_at DESC, id", base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := c.q.Query(ctx, query, args...)
	if err != nil {
		return filterError(err)
	}
	defer rows.Close()

	var result []domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *chat)
	}
	if err := rows.Err(); err != nil {
		return filterError(err)
	}
	return result, nil
}

func (c chatQueries) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages
        WHERE chat_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	return c.queryMessages(ctx, query, chatID, limit, offset)
}

func (c chatQueries) ListUnreplicated(ctx context.Context, olderThan time.Time, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages
        WHERE secondary_ref IS NULL AND created_at < $1 ORDER BY created_at ASC, id ASC LIMIT $2`
	return c.queryMessages(ctx, query, olderThan, limit)
}

func (c chatQueries) queryMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := c.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func (c chatQueries) ListAttachmentKeys(ctx context.Context, chatID string) ([]string, error) {
	const query = `SELECT attachment_key FROM chat_messages WHERE chat_id=$1 AND attachment_key IS NOT NULL`
	rows, err := c.q.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteChat removes the chat; messages go with it through the cascade.
func (c chatQueries) DeleteChat(ctx context.Context, id string) error {
	cmd, err := c.q.Exec(ctx, `DELETE FROM chats WHERE id=$1`, id)
	if err != nil {
		return lookupError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetSecondaryRef back-fills the reference once. A message that is gone or already
// back-filled is left untouched.
func (c chatQueries) SetSecondaryRef(ctx context.Context, messageID, ref string) error {
	const query = `UPDATE chat_messages SET secondary_ref=$1 WHERE id=$2 AND secondary_ref IS NULL`
	_, err := c.q.Exec(ctx, query, ref, messageID)
	return err
}

// lookupError reports an id Postgres cannot parse as a missing row.
func lookupError(err error) error {
	if apperrors.IsMalformedInput(err) {
		return ErrNotFound
	}
	return err
}

// filterError turns a malformed filter id into an empty result; no row can match it.
func filterError(err error) ([]domain.Chat, error) {
	if apperrors.IsMalformedInput(err) {
		return []domain.Chat{}, nil
	}
	return nil, err
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var chat domain.Chat
	if err := row.Scan(
		&chat.ID,
		&chat.OwnerID,
		&chat.AssignedStaffID,
		&chat.Subject,
		&chat.Status,
		&chat.MessageCount,
		&chat.UnreadForOwner,
		&chat.UnreadForStaff,
		&chat.LastMessagePreview,
		&chat.LastMessageAt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
		&chat.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &chat, nil
}

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	var key, name, mime *string
	var size *int64
	if err := row.Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.SenderID,
		&msg.Content,
		&msg.Kind,
		&key,
		&name,
		&size,
		&mime,
		&msg.IsRead,
		&msg.ReadAt,
		&msg.IsStaffMessage,
		&msg.CreatedAt,
		&msg.SecondaryRef,
	); err != nil {
		return nil, err
	}
	if key != nil && name != nil && size != nil && mime != nil {
		msg.Attachment = &domain.Attachment{ObjectKey: *key, FileName: *name, SizeBytes: *size, MimeType: *mime}
	}
	return &msg, nil
}
