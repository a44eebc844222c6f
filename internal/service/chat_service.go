package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

var tracer = otel.Tracer("github.com/spec-kit/support-chat/internal/service")

// ChatService enforces the chat lifecycle and unread bookkeeping. Every
// mutation runs in one transaction holding the chat row lock; events and
// then replication run strictly after commit.
type ChatService struct {
	chats       repository.ChatRepository
	directory   repository.UserDirectory
	policy      *auth.AccessPolicy
	attachments *AttachmentService
	replicator  *DualWriteCoordinator
	messageLog  messagelog.Store
	dispatcher  events.Dispatcher
	limits      config.ChatConfig
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	ChatRepo    repository.ChatRepository
	Directory   repository.UserDirectory
	Policy      *auth.AccessPolicy
	Attachments *AttachmentService
	Replicator  *DualWriteCoordinator
	MessageLog  messagelog.Store
	Dispatcher  events.Dispatcher
	Limits      config.ChatConfig
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// CreateChatInput describes a new chat with its first message.
type CreateChatInput struct {
	Subject string
	Content string
}

// SendMessageInput describes a message with an optional attachment.
type SendMessageInput struct {
	Content string
	Upload  *Upload
}

// ChatListFilter describes list filters accepted from callers.
type ChatListFilter struct {
	OwnerID     *string
	AssigneeID  *string
	Statuses    []domain.ChatStatus
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	HasUnread   *bool
	Page        int
	PageSize    int
}

// MessageView is a message with a retrieval URL for its attachment, if any.
type MessageView struct {
	domain.ChatMessage
	AttachmentURL string
}

// HistoryEntry is one record from a history scan.
type HistoryEntry = messagelog.Entry

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	policy := deps.Policy
	if policy == nil {
		policy = auth.NewAccessPolicy()
	}
	messageLog := deps.MessageLog
	if messageLog == nil {
		messageLog = messagelog.NewDisabledStore()
	}
	return &ChatService{
		chats:       deps.ChatRepo,
		directory:   deps.Directory,
		policy:      policy,
		attachments: deps.Attachments,
		replicator:  deps.Replicator,
		messageLog:  messageLog,
		dispatcher:  deps.Dispatcher,
		limits:      deps.Limits,
		metrics:     deps.Metrics,
		logger:      logger.With(zap.String("component", "chat-service")),
		now:         clock,
	}
}

// CreateChat opens a chat for ownerID together with its first message.
func (s *ChatService) CreateChat(ctx context.Context, ownerID string, input CreateChatInput) (_ *domain.Chat, _ *domain.ChatMessage, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.CreateChat", ownerID, "")
	defer endSpan(span, &err)

	owner, err := s.participant(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	if err := s.validateText("subject", subject, s.limits.MaxSubjectLength, true); err != nil {
		return nil, nil, err
	}
	content := strings.TrimSpace(input.Content)
	if err := s.validateText("message", content, s.limits.MaxContentLength, true); err != nil {
		return nil, nil, err
	}

	chat := &domain.Chat{
		OwnerID: owner.ID,
		Subject: subject,
		Status:  domain.ChatStatusOpen,
	}
	msg := &domain.ChatMessage{
		SenderID: owner.ID,
		Content:  content,
		Kind:     domain.MessageKindText,
	}

	err = s.chats.WithinTx(ctx, func(ctx context.Context, tx repository.ChatTx) error {
		if err := tx.InsertChat(ctx, chat); err != nil {
			return err
		}
		msg.ChatID = chat.ID
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		applyMessage(chat, msg, s.limits.PreviewLength)
		return tx.UpdateChat(ctx, chat)
	})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.metrics.RecordMessage(string(msg.Kind))
	s.publishEvent(ctx, events.NewEvent(events.EventChatCreated, chat.ID, owner.ID, events.ChatCreatedPayload{
		Chat:    *chat,
		Message: *msg,
	}))
	s.replicate(ctx, msg)
	return chat, msg, nil
}

// SendMessage appends a message. Sending into a CLOSED chat reopens it.
func (s *ChatService) SendMessage(ctx context.Context, senderID, chatID string, input SendMessageInput) (_ *domain.ChatMessage, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.SendMessage", senderID, chatID)
	defer endSpan(span, &err)

	sender, err := s.participant(ctx, senderID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*sender, chat, auth.ActionSend); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if err := s.validateText("content", content, s.limits.MaxContentLength, input.Upload == nil); err != nil {
		return nil, err
	}

	var attachment *domain.Attachment
	if input.Upload != nil {
		if s.attachments == nil {
			return nil, apperrors.NewFieldError("file", "attachments are not enabled")
		}
		attachment, err = s.attachments.Upload(ctx, chat.ID, *input.Upload)
		if err != nil {
			return nil, err
		}
	}

	msg := &domain.ChatMessage{
		ChatID:     chat.ID,
		SenderID:   sender.ID,
		Content:    content,
		Kind:       domain.MessageKindText,
		Attachment: attachment,
	}
	if attachment != nil {
		msg.Kind = domain.KindForMimeType(attachment.MimeType)
	}

	var updated *domain.Chat
	var oldStatus domain.ChatStatus
	err = s.chats.WithinTx(ctx, func(ctx context.Context, tx repository.ChatTx) error {
		locked, err := tx.LockChat(ctx, chat.ID)
		if err != nil {
			return err
		}
		oldStatus = locked.Status
		if locked.IsClosed() {
			locked.Status = domain.ChatStatusReopened
			locked.ClosedAt = nil
		}
		msg.IsStaffMessage = locked.SideOf(sender.ID) == domain.SideStaff
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		applyMessage(locked, msg, s.limits.PreviewLength)
		if err := tx.UpdateChat(ctx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		if attachment != nil && s.attachments != nil {
			s.attachments.Delete(context.WithoutCancel(ctx), attachment.ObjectKey)
		}
		return nil, s.chatError(err, chat.ID)
	}

	s.metrics.RecordMessage(string(msg.Kind))
	s.publishEvent(ctx, events.NewEvent(events.EventChatMessageSent, chat.ID, sender.ID, events.MessageSentPayload{
		Chat:    *updated,
		Message: *msg,
		Sender:  *sender,
	}))
	if oldStatus != updated.Status {
		s.publishEvent(ctx, events.NewEvent(events.EventChatStatusChanged, chat.ID, sender.ID, events.StatusChangedPayload{
			Chat:      *updated,
			OldStatus: oldStatus,
			NewStatus: updated.Status,
		}))
	}
	s.replicate(ctx, msg)
	return msg, nil
}

// MarkRead marks every unread message not authored by readerID as read and
// zeroes the reader's counter. Calling it again is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, readerID, chatID string) (_ *domain.Chat, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.MarkRead", readerID, chatID)
	defer endSpan(span, &err)

	reader, err := s.participant(ctx, readerID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*reader, chat, auth.ActionMarkRead); err != nil {
		return nil, err
	}

	var marked int64
	var changed bool
	err = s.chats.WithinTx(ctx, func(ctx context.Context, tx repository.ChatTx) error {
		locked, err := tx.LockChat(ctx, chat.ID)
		if err != nil {
			return err
		}
		chat = locked
		marked, err = tx.MarkRead(ctx, locked.ID, reader.ID, s.now())
		if err != nil {
			return err
		}
		changed = clearUnread(locked, locked.SideOf(reader.ID))
		if !changed && marked == 0 {
			return nil
		}
		return tx.UpdateChat(ctx, locked)
	})
	if err != nil {
		return nil, s.chatError(err, chatID)
	}

	if changed || marked > 0 {
		s.publishEvent(ctx, events.NewEvent(events.EventChatMessagesRead, chat.ID, reader.ID, events.MessagesReadPayload{
			Chat:     *chat,
			ReaderID: reader.ID,
			Side:     chat.SideOf(reader.ID),
			Marked:   marked,
		}))
	}
	return chat, nil
}

// CloseChat closes the chat and appends a SYSTEM message. Closing also reads
// the chat on the closer's side.
func (s *ChatService) CloseChat(ctx context.Context, actorID, chatID string) (_ *domain.Chat, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.CloseChat", actorID, chatID)
	defer endSpan(span, &err)

	actor, err := s.participant(ctx, actorID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*actor, chat, auth.ActionClose); err != nil {
		return nil, err
	}

	var oldStatus domain.ChatStatus
	var systemMsg *domain.ChatMessage
	err = s.chats.WithinTx(ctx, func(ctx context.Context, tx repository.ChatTx) error {
		locked, err := tx.LockChat(ctx, chat.ID)
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return apperrors.NewAlreadyClosed(map[string]any{"chat_id": locked.ID})
		}
		if !isValidTransition(locked.Status, domain.ChatStatusClosed) {
			return apperrors.NewConflict("chat cannot be closed in its current status", map[string]any{"status": locked.Status})
		}
		oldStatus = locked.Status
		now := s.now()

		if _, err := tx.MarkRead(ctx, locked.ID, actor.ID, now); err != nil {
			return err
		}
		clearUnread(locked, locked.SideOf(actor.ID))

		systemMsg = &domain.ChatMessage{
			ChatID:         locked.ID,
			SenderID:       actor.ID,
			Content:        fmt.Sprintf("Chat closed by %s", displayName(actor)),
			Kind:           domain.MessageKindSystem,
			IsStaffMessage: locked.SideOf(actor.ID) == domain.SideStaff,
		}
		if err := tx.InsertMessage(ctx, systemMsg); err != nil {
			return err
		}
		applyMessage(locked, systemMsg, s.limits.PreviewLength)
		locked.Status = domain.ChatStatusClosed
		locked.ClosedAt = &now
		if err := tx.UpdateChat(ctx, locked); err != nil {
			return err
		}
		chat = locked
		return nil
	})
	if err != nil {
		return nil, s.chatError(err, chatID)
	}

	s.metrics.RecordMessage(string(systemMsg.Kind))
	s.publishEvent(ctx, events.NewEvent(events.EventChatStatusChanged, chat.ID, actor.ID, events.StatusChangedPayload{
		Chat:          *chat,
		OldStatus:     oldStatus,
		NewStatus:     chat.Status,
		SystemMessage: systemMsg,
	}))
	s.replicate(ctx, systemMsg)
	return chat, nil
}

// AssignStaff assigns staffID to the chat, marks it ACTIVE and appends a SYSTEM message.
func (s *ChatService) AssignStaff(ctx context.Context, actorID, chatID, staffID string) (_ *domain.Chat, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.AssignStaff", actorID, chatID)
	defer endSpan(span, &err)

	actor, err := s.participant(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*actor, nil, auth.ActionAssign); err != nil {
		return nil, err
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, apperrors.NewFieldError("staff_id", "must not be empty")
	}
	assignee, err := s.directory.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewFieldError("staff_id", "unknown staff member")
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.IsStaff() {
		return nil, apperrors.NewFieldError("staff_id", "participant does not have the staff capability")
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var oldStatus domain.ChatStatus
	var systemMsg *domain.ChatMessage
	err = s.chats.WithinTx(ctx, func(ctx context.Context, tx repository.ChatTx) error {
		locked, err := tx.LockChat(ctx, chat.ID)
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return apperrors.NewAlreadyClosed(map[string]any{"chat_id": locked.ID})
		}
		if !isValidTransition(locked.Status, domain.ChatStatusActive) {
			return apperrors.NewConflict("chat cannot be assigned in its current status", map[string]any{"status": locked.Status})
		}
		oldStatus = locked.Status

		content := fmt.Sprintf("Assigned to %s", displayName(assignee))
		if assignee.ID == actor.ID {
			content = fmt.Sprintf("%s joined the chat", displayName(assignee))
		}
		systemMsg = &domain.ChatMessage{
			ChatID:         locked.ID,
			SenderID:       actor.ID,
			Content:        content,
			Kind:           domain.MessageKindSystem,
			IsStaffMessage: locked.SideOf(actor.ID) == domain.SideStaff,
		}
		if err := tx.InsertMessage(ctx, systemMsg); err != nil {
			return err
		}
		applyMessage(locked, systemMsg, s.limits.PreviewLength)
		assigned := assignee.ID
		locked.AssignedStaffID = &assigned
		locked.Status = domain.ChatStatusActive
		if err := tx.UpdateChat(ctx, locked); err != nil {
			return err
		}
		chat = locked
		return nil
	})
	if err != nil {
		return nil, s.chatError(err, chatID)
	}

	s.metrics.RecordMessage(string(systemMsg.Kind))
	s.publishEvent(ctx, events.NewEvent(events.EventChatAssigned, chat.ID, actor.ID, events.AssignedPayload{
		Chat:          *chat,
		StaffID:       assignee.ID,
		SystemMessage: systemMsg,
	}))
	if oldStatus != chat.Status {
		s.publishEvent(ctx, events.NewEvent(events.EventChatStatusChanged, chat.ID, actor.ID, events.StatusChangedPayload{
			Chat:      *chat,
			OldStatus: oldStatus,
			NewStatus: chat.Status,
		}))
	}
	s.replicate(ctx, systemMsg)
	return chat, nil
}

// DeleteChat removes external payloads first, then the relational chat. An
// orphaned attachment or log record is acceptable; an orphaned row is not.
func (s *ChatService) DeleteChat(ctx context.Context, actorID, chatID string) (err error) {
	ctx, span := s.startSpan(ctx, "ChatService.DeleteChat", actorID, chatID)
	defer endSpan(span, &err)

	actor, err := s.participant(ctx, actorID)
	if err != nil {
		return err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(*actor, chat, auth.ActionDelete); err != nil {
		return err
	}

	keys, err := s.chats.ListAttachmentKeys(ctx, chat.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if len(keys) > 0 && s.attachments != nil {
		if failed := s.attachments.DeleteAll(ctx, keys); failed > 0 {
			s.logger.Warn("some attachments were not deleted",
				zap.String("chat_id", chat.ID),
				zap.Int("failed", failed),
				zap.Int("total", len(keys)))
		}
	}
	if err := s.messageLog.DeleteByThread(ctx, chat.ID); err != nil {
		s.logger.Warn("secondary store delete failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}

	if err := s.chats.DeleteChat(ctx, chat.ID); err != nil {
		return s.chatError(err, chat.ID)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventChatDeleted, chat.ID, actor.ID, events.ChatDeletedPayload{
		OwnerID: chat.OwnerID,
	}))
	return nil
}

// GetChat returns a chat visible to viewerID.
func (s *ChatService) GetChat(ctx context.Context, viewerID, chatID string) (*domain.Chat, error) {
	viewer, err := s.participant(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*viewer, chat, auth.ActionView); err != nil {
		return nil, err
	}
	return chat, nil
}

// CanSubscribe checks whether participantID may follow the chat live.
func (s *ChatService) CanSubscribe(ctx context.Context, participantID, chatID string) (*domain.Chat, error) {
	viewer, err := s.participant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(*viewer, chat, auth.ActionSubscribe); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListChats returns chats visible to viewerID. Non-staff callers only ever see their own chats.
func (s *ChatService) ListChats(ctx context.Context, viewerID string, filter ChatListFilter) ([]domain.Chat, error) {
	viewer, err := s.participant(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewFieldError("status", fmt.Sprintf("unknown status %s", status))
		}
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return nil, apperrors.NewFieldError("created_from", "must not be after created_to")
	}

	limit, offset := s.pagination(filter.Page, filter.PageSize)
	repoFilter := repository.ChatFilter{
		OwnerID:     filter.OwnerID,
		AssigneeID:  filter.AssigneeID,
		Statuses:    filter.Statuses,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		HasUnread:   filter.HasUnread,
		UnreadSide:  domain.SideStaff,
		Limit:       limit,
		Offset:      offset,
	}
	if !viewer.IsStaff() {
		self := viewer.ID
		repoFilter.OwnerID = &self
		repoFilter.UnreadSide = domain.SideOwner
	}

	chats, err := s.chats.ListChats(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return chats, nil
}

// ListMessages returns a page of messages in ascending creation order.
func (s *ChatService) ListMessages(ctx context.Context, viewerID, chatID string, page, pageSize int) ([]MessageView, error) {
	if _, err := s.GetChat(ctx, viewerID, chatID); err != nil {
		return nil, err
	}
	limit, offset := s.pagination(page, pageSize)
	msgs, err := s.chats.ListMessages(ctx, chatID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, s.View(ctx, &msgs[i]))
	}
	return views, nil
}

// View attaches a retrieval URL to msg when it carries an attachment.
func (s *ChatService) View(ctx context.Context, msg *domain.ChatMessage) MessageView {
	view := MessageView{ChatMessage: *msg}
	if msg.Attachment != nil && s.attachments != nil {
		view.AttachmentURL = s.attachments.PresignedURL(ctx, msg.Attachment.ObjectKey, 0)
	}
	return view
}

// History returns the newest records of a chat from the secondary store, in
// ascending order. It falls back to the relational store when the secondary
// store is disabled or failing.
func (s *ChatService) History(ctx context.Context, viewerID, chatID string, limit int) ([]HistoryEntry, string, error) {
	viewer, err := s.participant(ctx, viewerID)
	if err != nil {
		return nil, "", err
	}
	chat, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, "", err
	}
	if err := s.policy.Authorize(*viewer, chat, auth.ActionHistory); err != nil {
		return nil, "", err
	}
	limit, _ = s.pagination(1, limit)

	entries, err := s.messageLog.QueryByThread(ctx, chat.ID, limit)
	if err == nil {
		return dedupeEntries(entries), "secondary", nil
	}
	if !errors.Is(err, messagelog.ErrDisabled) {
		s.logger.Warn("secondary history scan failed; using relational store",
			zap.String("chat_id", chat.ID), zap.Error(err))
	}

	offset := chat.MessageCount - limit
	if offset < 0 {
		offset = 0
	}
	msgs, err := s.chats.ListMessages(ctx, chat.ID, limit, offset)
	if err != nil {
		return nil, "", apperrors.MapError(err)
	}
	entries = make([]HistoryEntry, 0, len(msgs))
	for i := range msgs {
		entry := HistoryEntry{Record: messagelog.RecordFromMessage(&msgs[i])}
		if msgs[i].SecondaryRef != nil {
			entry.Ref = *msgs[i].SecondaryRef
		}
		entries = append(entries, entry)
	}
	return entries, "relational", nil
}

// dedupeEntries drops repeated appends of the same message, keeping the first.
func dedupeEntries(entries []HistoryEntry) []HistoryEntry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e.MessageID]; ok && e.MessageID != "" {
			continue
		}
		seen[e.MessageID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (s *ChatService) participant(ctx context.Context, id string) (*domain.Participant, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewNotFound("user", nil)
	}
	p, err := s.directory.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return p, nil
}

func (s *ChatService) chat(ctx context.Context, id string) (*domain.Chat, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewNotFound("chat", nil)
	}
	chat, err := s.chats.GetChat(ctx, id)
	if err != nil {
		return nil, s.chatError(err, id)
	}
	return chat, nil
}

func (s *ChatService) chatError(err error, chatID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("chat", map[string]any{"chat_id": chatID})
	}
	return apperrors.MapError(err)
}

func (s *ChatService) validateText(field, value string, max int, required bool) error {
	if !utf8.ValidString(value) || strings.ContainsRune(value, 0) {
		return apperrors.NewFieldError(field, "must be valid UTF-8 text without NUL characters")
	}
	if required && value == "" {
		return apperrors.NewFieldError(field, "must not be empty")
	}
	if max > 0 && utf8.RuneCountInString(value) > max {
		return apperrors.NewFieldError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func (s *ChatService) pagination(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = s.limits.DefaultPageSize
	}
	if s.limits.MaxPageSize > 0 && pageSize > s.limits.MaxPageSize {
		pageSize = s.limits.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

// replicate runs after the events are out; delivery never waits on the secondary store.
func (s *ChatService) replicate(ctx context.Context, msg *domain.ChatMessage) {
	if s.replicator == nil {
		return
	}
	s.replicator.ReplicateAsync(ctx, *msg)
}

func (s *ChatService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *ChatService) startSpan(ctx context.Context, name, actorID, chatID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("chat.actor_id", actorID),
		attribute.String("chat.id", chatID),
	))
}

func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

func displayName(p *domain.Participant) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}
