package realtime

import "encoding/json"

// EventType names a server to client frame.
type EventType string

const (
	EventMessage       EventType = "MESSAGE"
	EventTyping        EventType = "TYPING"
	EventRead          EventType = "READ"
	EventPresenceJoin  EventType = "PRESENCE_JOIN"
	EventPresenceLeave EventType = "PRESENCE_LEAVE"
	EventSubscribed    EventType = "SUBSCRIBED"
	EventError         EventType = "ERROR"
	EventThreadUpdated EventType = "THREAD_UPDATED"
)

// Frame is one JSON message pushed to a live connection. Data is encoded once
// so a frame forwarded across instances stays byte-identical.
type Frame struct {
	Type   EventType       `json:"type"`
	ChatID string          `json:"chat_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewFrame encodes data into a frame.
func NewFrame(eventType EventType, chatID string, data any) (Frame, error) {
	frame := Frame{Type: eventType, ChatID: chatID}
	if data == nil {
		return frame, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	frame.Data = raw
	return frame, nil
}

// ErrorFrame builds an ERROR frame. It never fails.
func ErrorFrame(chatID, code, message string) Frame {
	raw, _ := json.Marshal(map[string]string{"code": code, "message": message})
	return Frame{Type: EventError, ChatID: chatID, Data: raw}
}
