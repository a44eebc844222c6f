package realtime

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/observability"
)

const defaultOutboundBuffer = 32

// Client is one live connection. Outbound is closed by Hub.CloseClient.
type Client struct {
	ID            string
	ParticipantID string
	Outbound      chan Frame

	chats  map[string]bool
	joined map[string]bool
	closed bool
}

// Hub tracks live connections, their chat subscriptions and who is viewing
// which chat on this instance.
type Hub struct {
	mu            sync.RWMutex
	logger        *zap.Logger
	metrics       *observability.Metrics
	buffer        int
	clients       map[string]*Client
	subscriptions map[string]map[*Client]bool
	viewers       map[string]map[string]int
	online        map[string]int
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *observability.Metrics, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultOutboundBuffer
	}
	return &Hub{
		logger:        logger.With(zap.String("component", "realtime_hub")),
		metrics:       metrics,
		buffer:        buffer,
		clients:       make(map[string]*Client),
		subscriptions: make(map[string]map[*Client]bool),
		viewers:       make(map[string]map[string]int),
		online:        make(map[string]int),
	}
}

// Register adds a connection for participantID.
func (h *Hub) Register(participantID string) *Client {
	client := &Client{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Outbound:      make(chan Frame, h.buffer),
		chats:         make(map[string]bool),
		joined:        make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.online[participantID]++
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("client connected", zap.String("client_id", client.ID), zap.String("participant_id", participantID))
	return client
}

// Subscribe adds client to the chat channel.
func (h *Hub) Subscribe(client *Client, chatID string) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return
	}
	client.chats[chatID] = true
	subs, ok := h.subscriptions[chatID]
	if !ok {
		subs = make(map[*Client]bool)
		h.subscriptions[chatID] = subs
	}
	subs[client] = true
}

// Unsubscribe removes client from the chat channel and from its viewers.
// It reports whether the client was viewing the chat.
func (h *Hub) Unsubscribe(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	wasJoined := h.leaveLocked(client, chatID)
	h.unsubscribeLocked(client, chatID)
	return wasJoined
}

// IsSubscribed reports whether client follows chatID.
func (h *Hub) IsSubscribed(client *Client, chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.chats[chatID]
}

// Join marks client as viewing chatID. It reports whether this changed anything.
func (h *Hub) Join(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed || !client.chats[chatID] || client.joined[chatID] {
		return false
	}
	client.joined[chatID] = true
	viewers, ok := h.viewers[chatID]
	if !ok {
		viewers = make(map[string]int)
		h.viewers[chatID] = viewers
	}
	viewers[client.ParticipantID]++
	return true
}

// Leave clears the viewing mark set by Join.
func (h *Hub) Leave(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(client, chatID)
}

// Presence lists the participants viewing chatID on this instance.
func (h *Hub) Presence(chatID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.viewers[chatID]))
	for id := range h.viewers[chatID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsOnline reports whether participantID has at least one live connection.
func (h *Hub) IsOnline(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[participantID] > 0
}

// Subscribers returns the number of connections following chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[chatID])
}

// Broadcast queues frame for every subscriber of frame.ChatID except the
// client with excludeID. Full buffers drop the frame for that client.
func (h *Hub) Broadcast(frame Frame, excludeID string) {
	if frame.ChatID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscriptions[frame.ChatID] {
		if c.ID == excludeID {
			continue
		}
		h.enqueue(c, frame)
	}
}

// Send queues frame for one client.
func (h *Hub) Send(client *Client, frame Frame) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client.closed {
		return false
	}
	return h.enqueue(client, frame)
}

// DropChat removes every subscription to chatID.
func (h *Hub) DropChat(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subscriptions[chatID] {
		delete(c.chats, chatID)
		delete(c.joined, chatID)
	}
	delete(h.subscriptions, chatID)
	delete(h.viewers, chatID)
}

// CloseClient purges every subscription of client and closes its outbound
// channel. It returns the chats the client was viewing.
func (h *Hub) CloseClient(client *Client) []string {
	h.mu.Lock()
	if client.closed {
		h.mu.Unlock()
		return nil
	}
	var left []string
	for chatID := range client.joined {
		if h.leaveLocked(client, chatID) {
			left = append(left, chatID)
		}
	}
	for chatID := range client.chats {
		h.unsubscribeLocked(client, chatID)
	}
	delete(h.clients, client.ID)
	if h.online[client.ParticipantID]--; h.online[client.ParticipantID] <= 0 {
		delete(h.online, client.ParticipantID)
	}
	client.closed = true
	close(client.Outbound)
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	h.logger.Debug("client disconnected", zap.String("client_id", client.ID), zap.String("participant_id", client.ParticipantID))
	sort.Strings(left)
	return left
}

func (h *Hub) enqueue(c *Client, frame Frame) bool {
	select {
	case c.Outbound <- frame:
		return true
	default:
		h.metrics.RecordDroppedEvent()
		h.logger.Warn("dropping frame; outbound buffer full",
			zap.String("client_id", c.ID),
			zap.String("chat_id", frame.ChatID),
			zap.String("type", string(frame.Type)))
		return false
	}
}

func (h *Hub) leaveLocked(client *Client, chatID string) bool {
	if !client.joined[chatID] {
		return false
	}
	delete(client.joined, chatID)
	if viewers, ok := h.viewers[chatID]; ok {
		if viewers[client.ParticipantID]--; viewers[client.ParticipantID] <= 0 {
			delete(viewers, client.ParticipantID)
		}
		if len(viewers) == 0 {
			delete(h.viewers, chatID)
		}
	}
	return true
}

func (h *Hub) unsubscribeLocked(client *Client, chatID string) {
	delete(client.chats, chatID)
	if subs, ok := h.subscriptions[chatID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, chatID)
		}
	}
}
