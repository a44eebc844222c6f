package auth

import (
	"github.com/spec-kit/support-chat/internal/domain"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// Action names an operation gated by the access policy.
type Action string

const (
	ActionView      Action = "view"
	ActionSend      Action = "send"
	ActionMarkRead  Action = "mark_read"
	ActionClose     Action = "close"
	ActionSubscribe Action = "subscribe"
	ActionAssign    Action = "assign"
	ActionDelete    Action = "delete"
	ActionHistory   Action = "history"
)

// AccessPolicy answers "is this participant the chat owner or staff" per action.
// Denials are always the generic AccessDenied error.
type AccessPolicy struct{}

// NewAccessPolicy returns the policy.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// Authorize checks actor against chat for action.
func (p *AccessPolicy) Authorize(actor domain.Participant, chat *domain.Chat, action Action) error {
	if p.Allowed(actor, chat, action) {
		return nil
	}
	return apperrors.NewAccessDenied()
}

// Allowed reports whether actor may perform action on chat.
func (p *AccessPolicy) Allowed(actor domain.Participant, chat *domain.Chat, action Action) bool {
	owner := chat != nil && chat.IsOwner(actor.ID)
	switch action {
	case ActionView, ActionSend, ActionMarkRead, ActionClose, ActionSubscribe:
		return owner || actor.IsStaff()
	case ActionAssign, ActionHistory:
		return actor.IsStaff()
	case ActionDelete:
		return owner || actor.Role == domain.RoleAdmin
	default:
		return false
	}
}
