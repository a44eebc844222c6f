package service

import (
	"strings"

	"github.com/spec-kit/support-chat/internal/domain"
)

const previewEllipsis = "..."

var allowedTransitions = map[domain.ChatStatus][]domain.ChatStatus{
	domain.ChatStatusOpen:     {domain.ChatStatusActive, domain.ChatStatusClosed},
	domain.ChatStatusActive:   {domain.ChatStatusActive, domain.ChatStatusClosed},
	domain.ChatStatusClosed:   {domain.ChatStatusReopened},
	domain.ChatStatusReopened: {domain.ChatStatusActive, domain.ChatStatusClosed},
}

func isValidTransition(current, next domain.ChatStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// messagePreview trims content and cuts it to max runes, appending an ellipsis when cut.
func messagePreview(content string, max int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if max <= 0 || len(runes) <= max {
		return content
	}
	return string(runes[:max]) + previewEllipsis
}

// applyMessage updates the counters and preview of chat for a newly inserted message.
// System messages bump the count and preview but never the unread counters.
func applyMessage(chat *domain.Chat, msg *domain.ChatMessage, previewLength int) {
	chat.MessageCount++
	if msg.Kind != domain.MessageKindSystem {
		if chat.SideOf(msg.SenderID) == domain.SideOwner {
			chat.UnreadForStaff++
		} else {
			chat.UnreadForOwner++
		}
	}

	preview := msg.Content
	if strings.TrimSpace(preview) == "" && msg.Attachment != nil {
		preview = msg.Attachment.FileName
	}
	chat.LastMessagePreview = messagePreview(preview, previewLength)
	at := msg.CreatedAt
	chat.LastMessageAt = &at
}

// clearUnread zeroes the counter on side and reports whether it changed.
func clearUnread(chat *domain.Chat, side domain.Side) bool {
	if side == domain.SideOwner {
		changed := chat.UnreadForOwner != 0
		chat.UnreadForOwner = 0
		return changed
	}
	changed := chat.UnreadForStaff != 0
	chat.UnreadForStaff = 0
	return changed
}
