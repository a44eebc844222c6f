package dto

import (
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/messagelog"
	"github.com/spec-kit/support-chat/internal/service"
)

// CreateChatRequest payload.
type CreateChatRequest struct {
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendMessageRequest payload for JSON sends. Multipart sends carry the same
// content field next to the file part.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// AssignChatRequest payload.
type AssignChatRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
}

// ChatResponse describes a chat.
type ChatResponse struct {
	ID                 string            `json:"id"`
	OwnerID            string            `json:"owner_id"`
	AssignedStaffID    *string           `json:"assigned_staff_id"`
	Subject            string            `json:"subject"`
	Status             domain.ChatStatus `json:"status"`
	MessageCount       int               `json:"message_count"`
	UnreadCountOwner   int               `json:"unread_count_owner"`
	UnreadCountStaff   int               `json:"unread_count_staff"`
	LastMessagePreview string            `json:"last_message_preview"`
	LastMessageAt      *time.Time        `json:"last_message_at"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ClosedAt           *time.Time        `json:"closed_at"`
}

// ChatDetailResponse adds the participants currently viewing the chat.
type ChatDetailResponse struct {
	ChatResponse
	Unread   int      `json:"unread"`
	Presence []string `json:"presence"`
}

// CreateChatResponse returns the new chat and its first message.
type CreateChatResponse struct {
	Chat    ChatResponse    `json:"chat"`
	Message MessageResponse `json:"message"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url,omitempty"`
}

// MessageResponse represents one chat message.
type MessageResponse struct {
	ID             string              `json:"id"`
	ChatID         string              `json:"chat_id"`
	SenderID       string              `json:"sender_id"`
	Content        string              `json:"content"`
	Kind           domain.MessageKind  `json:"kind"`
	Attachment     *AttachmentResponse `json:"attachment,omitempty"`
	IsRead         bool                `json:"is_read"`
	ReadAt         *time.Time          `json:"read_at"`
	IsStaffMessage bool                `json:"is_staff_message"`
	CreatedAt      time.Time           `json:"created_at"`
}

// HistoryRecordResponse is one record served from the secondary store.
type HistoryRecordResponse struct {
	Ref           string             `json:"ref"`
	MessageID     string             `json:"message_id"`
	SenderID      string             `json:"sender_id"`
	Content       string             `json:"content"`
	Kind          domain.MessageKind `json:"kind"`
	AttachmentKey string             `json:"attachment_key,omitempty"`
	IsStaff       bool               `json:"is_staff"`
	CreatedAt     time.Time          `json:"created_at"`
}

// HistoryResponse wraps a history scan with the store that answered it.
type HistoryResponse struct {
	Source  string                  `json:"source"`
	Records []HistoryRecordResponse `json:"records"`
}

// NewChatResponse maps a domain chat.
func NewChatResponse(chat *domain.Chat) ChatResponse {
	return ChatResponse{
		ID:                 chat.ID,
		OwnerID:            chat.OwnerID,
		AssignedStaffID:    chat.AssignedStaffID,
		Subject:            chat.Subject,
		Status:             chat.Status,
		MessageCount:       chat.MessageCount,
		UnreadCountOwner:   chat.UnreadForOwner,
		UnreadCountStaff:   chat.UnreadForStaff,
		LastMessagePreview: chat.LastMessagePreview,
		LastMessageAt:      chat.LastMessageAt,
		CreatedAt:          chat.CreatedAt,
		UpdatedAt:          chat.UpdatedAt,
		ClosedAt:           chat.ClosedAt,
	}
}

// NewChatList maps a page of chats.
func NewChatList(chats []domain.Chat) []ChatResponse {
	out := make([]ChatResponse, 0, len(chats))
	for i := range chats {
		out = append(out, NewChatResponse(&chats[i]))
	}
	return out
}

// NewMessageResponse maps a message view.
func NewMessageResponse(view service.MessageView) MessageResponse {
	resp := MessageResponse{
		ID:             view.ID,
		ChatID:         view.ChatID,
		SenderID:       view.SenderID,
		Content:        view.Content,
		Kind:           view.Kind,
		IsRead:         view.IsRead,
		ReadAt:         view.ReadAt,
		IsStaffMessage: view.IsStaffMessage,
		CreatedAt:      view.CreatedAt,
	}
	if att := view.Attachment; att != nil {
		resp.Attachment = &AttachmentResponse{
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
			URL:       view.AttachmentURL,
		}
	}
	return resp
}

// NewMessageList maps a page of message views.
func NewMessageList(views []service.MessageView) []MessageResponse {
	out := make([]MessageResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewMessageResponse(v))
	}
	return out
}

// NewHistoryResponse maps secondary store entries.
func NewHistoryResponse(source string, entries []messagelog.Entry) HistoryResponse {
	records := make([]HistoryRecordResponse, 0, len(entries))
	for _, e := range entries {
		records = append(records, HistoryRecordResponse{
			Ref:           e.Ref,
			MessageID:     e.MessageID,
			SenderID:      e.SenderID,
			Content:       e.Content,
			Kind:          e.Kind,
			AttachmentKey: e.AttachmentKey,
			IsStaff:       e.IsStaff,
			CreatedAt:     e.CreatedAt,
		})
	}
	return HistoryResponse{Source: source, Records: records}
}
