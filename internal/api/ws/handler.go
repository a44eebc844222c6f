package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

const (
	actionSubscribe = "subscribe"
	actionSend      = "send"
	actionTyping    = "typing"
	actionRead      = "read"
	actionJoin      = "join"
	actionLeave     = "leave"

	writeWait          = 10 * time.Second
	maxFrameBytes      = 64 * 1024
	codeBadFrame       = "BAD_FRAME"
	codeNotSubscribed  = "NOT_SUBSCRIBED"
	defaultPingPeriod  = 30 * time.Second
	defaultActionLimit = 10 * time.Second
)

// ChatOperations is the part of the chat service reachable over a live connection.
type ChatOperations interface {
	CanSubscribe(ctx context.Context, participantID, chatID string) (*domain.Chat, error)
	SendMessage(ctx context.Context, senderID, chatID string, input service.SendMessageInput) (*domain.ChatMessage, error)
	MarkRead(ctx context.Context, readerID, chatID string) (*domain.Chat, error)
}

type clientFrame struct {
	Action  string `json:"action"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// SubscribedData is the payload of a SUBSCRIBED frame.
type SubscribedData struct {
	Chat     dto.ChatResponse `json:"chat"`
	Presence []string         `json:"presence"`
}

// PresenceData is the payload of PRESENCE and TYPING frames.
type PresenceData struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

// Handler serves the websocket surface.
type Handler struct {
	chats         ChatOperations
	fanout        *realtime.Fanout
	pingInterval  time.Duration
	actionTimeout time.Duration
	logger        *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(chats ChatOperations, fanout *realtime.Fanout, pingInterval, actionTimeout time.Duration, logger *zap.Logger) *Handler {
	if pingInterval <= 0 {
		pingInterval = defaultPingPeriod
	}
	if actionTimeout <= 0 {
		actionTimeout = defaultActionLimit
	}
	return &Handler{
		chats:         chats,
		fanout:        fanout,
		pingInterval:  pingInterval,
		actionTimeout: actionTimeout,
		logger:        logger.With(zap.String("component", "websocket")),
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Serve returns the fiber handler that runs a connection.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Handler) serve(conn *websocket.Conn) {
	principal, ok := conn.Locals(auth.PrincipalLocalsKey).(*auth.Principal)
	if !ok {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := h.newSession(principal)
	defer func() {
		cancel()
		sess.close(context.Background())
		_ = conn.Close()
	}()

	go h.writeLoop(conn, sess.client)

	readWait := 2 * h.pingInterval
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read failed", zap.String("client_id", sess.client.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if msgType != websocket.TextMessage {
			continue
		}
		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			sess.reply(realtime.ErrorFrame("", codeBadFrame, "frame is not valid JSON"))
			continue
		}
		sess.handle(ctx, frame)
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, client *realtime.Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case frame, ok := <-client.Outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// session is the per-connection state machine. Replies to the originating
// connection go through the hub so only the write loop touches the socket.
type session struct {
	h         *Handler
	hub       *realtime.Hub
	principal *auth.Principal
	client    *realtime.Client
}

func (h *Handler) newSession(principal *auth.Principal) *session {
	hub := h.fanout.Hub()
	return &session{
		h:         h,
		hub:       hub,
		principal: principal,
		client:    hub.Register(principal.ID()),
	}
}

func (s *session) handle(ctx context.Context, frame clientFrame) {
	chatID := strings.TrimSpace(frame.ChatID)
	if chatID == "" {
		s.reply(realtime.ErrorFrame("", apperrors.CodeValidation, "chat_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.h.actionTimeout)
	defer cancel()

	switch frame.Action {
	case actionSubscribe:
		s.subscribe(ctx, chatID)
	case actionSend:
		if s.requireSubscription(chatID) {
			_, err := s.h.chats.SendMessage(ctx, s.principal.ID(), chatID, service.SendMessageInput{Content: frame.Content})
			s.fail(chatID, err)
		}
	case actionTyping:
		if s.requireSubscription(chatID) {
			s.broadcast(ctx, realtime.EventTyping, chatID, s.client.ID)
		}
	case actionRead:
		if s.requireSubscription(chatID) {
			_, err := s.h.chats.MarkRead(ctx, s.principal.ID(), chatID)
			s.fail(chatID, err)
		}
	case actionJoin:
		if s.requireSubscription(chatID) && s.hub.Join(s.client, chatID) {
			s.broadcast(ctx, realtime.EventPresenceJoin, chatID, "")
		}
	case actionLeave:
		if s.hub.Leave(s.client, chatID) {
			s.broadcast(ctx, realtime.EventPresenceLeave, chatID, "")
		}
	default:
		s.reply(realtime.ErrorFrame(chatID, codeBadFrame, "unknown action "+frame.Action))
	}
}

func (s *session) subscribe(ctx context.Context, chatID string) {
	chat, err := s.h.chats.CanSubscribe(ctx, s.principal.ID(), chatID)
	if err != nil {
		s.fail(chatID, err)
		return
	}
	s.hub.Subscribe(s.client, chatID)
	frame, err := realtime.NewFrame(realtime.EventSubscribed, chatID, SubscribedData{
		Chat:     dto.NewChatResponse(chat),
		Presence: s.hub.Presence(chatID),
	})
	if err != nil {
		s.fail(chatID, err)
		return
	}
	s.reply(frame)
}

func (s *session) requireSubscription(chatID string) bool {
	if s.hub.IsSubscribed(s.client, chatID) {
		return true
	}
	s.reply(realtime.ErrorFrame(chatID, codeNotSubscribed, "subscribe to the chat first"))
	return false
}

func (s *session) broadcast(ctx context.Context, eventType realtime.EventType, chatID, excludeID string) {
	frame, err := realtime.NewFrame(eventType, chatID, PresenceData{
		ParticipantID: s.principal.ID(),
		DisplayName:   s.principal.Participant.DisplayName,
	})
	if err != nil {
		s.fail(chatID, err)
		return
	}
	s.h.fanout.Publish(ctx, frame, excludeID)
}

// fail reports err to the originating connection only.
func (s *session) fail(chatID string, err error) {
	if err == nil {
		return
	}
	de := apperrors.ToDomainError(err)
	if de.Code == apperrors.CodeInternal {
		s.h.logger.Error("live action failed", zap.String("chat_id", chatID), zap.Error(err))
	}
	s.reply(realtime.ErrorFrame(chatID, de.Code, de.Message))
}

func (s *session) reply(frame realtime.Frame) {
	s.hub.Send(s.client, frame)
}

func (s *session) close(ctx context.Context) {
	for _, chatID := range s.hub.CloseClient(s.client) {
		s.broadcast(ctx, realtime.EventPresenceLeave, chatID, "")
	}
}
