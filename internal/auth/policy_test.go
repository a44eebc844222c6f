package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-chat/internal/domain"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

func TestAccessPolicy(t *testing.T) {
	chat := &domain.Chat{ID: "c1", OwnerID: "owner"}
	owner := domain.Participant{ID: "owner", Role: domain.RoleUser}
	stranger := domain.Participant{ID: "other", Role: domain.RoleUser}
	agent := domain.Participant{ID: "agent", Role: domain.RoleAgent}
	admin := domain.Participant{ID: "admin", Role: domain.RoleAdmin}

	cases := []struct {
		name    string
		actor   domain.Participant
		action  Action
		allowed bool
	}{
		{"owner sends", owner, ActionSend, true},
		{"agent sends", agent, ActionSend, true},
		{"stranger sends", stranger, ActionSend, false},
		{"stranger subscribes", stranger, ActionSubscribe, false},
		{"owner closes", owner, ActionClose, true},
		{"owner cannot assign", owner, ActionAssign, false},
		{"agent assigns", agent, ActionAssign, true},
		{"owner deletes", owner, ActionDelete, true},
		{"agent cannot delete", agent, ActionDelete, false},
		{"admin deletes", admin, ActionDelete, true},
		{"owner cannot scan history", owner, ActionHistory, false},
		{"unknown action", admin, Action("archive"), false},
	}

	policy := NewAccessPolicy()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, policy.Allowed(tc.actor, chat, tc.action))
			err := policy.Authorize(tc.actor, chat, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeAccessDenied))
			}
		})
	}
}
