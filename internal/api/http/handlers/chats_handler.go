package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

const defaultHistoryLimit = 100

// ChatsHandler serves the synchronous chat endpoints.
type ChatsHandler struct {
	service  *service.ChatService
	hub      *realtime.Hub
	maxBytes int64
}

// NewChatsHandler constructs handler. hub may be nil when live delivery is disabled.
func NewChatsHandler(chatService *service.ChatService, hub *realtime.Hub, maxUploadBytes int64) *ChatsHandler {
	return &ChatsHandler{service: chatService, hub: hub, maxBytes: maxUploadBytes}
}

// CreateChat POST /chats.
func (h *ChatsHandler) CreateChat(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	chat, msg, err := h.service.CreateChat(c.UserContext(), principal.ID(), service.CreateChatInput{
		Subject: req.Subject,
		Content: req.Message,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CreateChatResponse{
		Chat:    dto.NewChatResponse(chat),
		Message: dto.NewMessageResponse(h.service.View(c.UserContext(), msg)),
	}})
}

// ListChats GET /chats.
func (h *ChatsHandler) ListChats(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseChatListQuery(c)
	if err != nil {
		return err
	}
	chats, err := h.service.ListChats(c.UserContext(), principal.ID(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatList(chats)})
}

// GetChat GET /chats/:id.
func (h *ChatsHandler) GetChat(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	chat, err := h.service.GetChat(c.UserContext(), principal.ID(), c.Params("id"))
	if err != nil {
		return err
	}
	presence := []string{}
	if h.hub != nil {
		presence = h.hub.Presence(chat.ID)
	}
	return c.JSON(fiber.Map{"data": dto.ChatDetailResponse{
		ChatResponse: dto.NewChatResponse(chat),
		Unread:       chat.UnreadFor(principal.ID()),
		Presence:     presence,
	}})
}

// DeleteChat DELETE /chats/:id.
func (h *ChatsHandler) DeleteChat(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteChat(c.UserContext(), principal.ID(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListMessages GET /chats/:id/messages.
func (h *ChatsHandler) ListMessages(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListMessages(c.UserContext(), principal.ID(), c.Params("id"),
		parseInt(c.Query("page"), 1), parseInt(c.Query("page_size"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageList(views)})
}

// SendMessage POST /chats/:id/messages. Accepts JSON or multipart with a file part.
func (h *ChatsHandler) SendMessage(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	var input service.SendMessageInput
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		input.Content = c.FormValue("content")
		upload, err := h.readUpload(c)
		if err != nil {
			return err
		}
		input.Upload = upload
	} else {
		var req dto.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		input.Content = req.Content
	}

	msg, err := h.service.SendMessage(c.UserContext(), principal.ID(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(h.service.View(c.UserContext(), msg))})
}

// MarkRead POST /chats/:id/read.
func (h *ChatsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	chat, err := h.service.MarkRead(c.UserContext(), principal.ID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponse(chat)})
}

// CloseChat POST /chats/:id/close.
func (h *ChatsHandler) CloseChat(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	chat, err := h.service.CloseChat(c.UserContext(), principal.ID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponse(chat)})
}

// AssignChat POST /chats/:id/assign.
func (h *ChatsHandler) AssignChat(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	chat, err := h.service.AssignStaff(c.UserContext(), principal.ID(), c.Params("id"), req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponse(chat)})
}

// History GET /chats/:id/history.
func (h *ChatsHandler) History(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entries, source, err := h.service.History(c.UserContext(), principal.ID(), c.Params("id"),
		parseInt(c.Query("limit"), defaultHistoryLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponse(source, entries)})
}

func (h *ChatsHandler) readUpload(c *fiber.Ctx) (*service.Upload, error) {
	header, err := c.FormFile("file")
	if errors.Is(err, fasthttp.ErrMissingFile) || (err == nil && header == nil) {
		// a multipart send without a file part is a plain text send
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewFieldError("file", "malformed multipart body")
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return nil, apperrors.NewFieldError("file", "file exceeds max size of "+strconv.FormatInt(h.maxBytes, 10)+" bytes")
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewFieldError("file", "unreadable upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewFieldError("file", "unreadable upload")
	}
	return &service.Upload{FileName: header.Filename, Data: data}, nil
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseChatListQuery(c *fiber.Ctx) (service.ChatListFilter, error) {
	filter := service.ChatListFilter{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 0),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.ChatStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if owner := c.Query("owner_id"); owner != "" {
		filter.OwnerID = &owner
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}

	var err error
	if filter.CreatedFrom, err = parseTime("created_from", c.Query("created_from")); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseTime("created_to", c.Query("created_to")); err != nil {
		return filter, err
	}
	if raw := c.Query("has_unread"); raw != "" {
		hasUnread, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewFieldError("has_unread", "must be true or false")
		}
		filter.HasUnread = &hasUnread
	}
	return filter, nil
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewFieldError(field, "must be an RFC3339 timestamp")
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
