package domain

// ParticipantRole is the role carried by a user directory entry.
type ParticipantRole string

const (
	RoleUser     ParticipantRole = "USER"
	RoleAgent    ParticipantRole = "AGENT"
	RoleTeamLead ParticipantRole = "TEAM_LEAD"
	RoleAdmin    ParticipantRole = "ADMIN"
)

// IsStaff reports whether the role carries the staff capability.
func (r ParticipantRole) IsStaff() bool {
	switch r {
	case RoleAgent, RoleTeamLead, RoleAdmin:
		return true
	default:
		return false
	}
}

// Participant is an opaque reference to a user owned by the platform directory.
type Participant struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	Role        ParticipantRole `json:"role"`
}

// IsStaff reports whether the participant may act as support staff.
func (p Participant) IsStaff() bool {
	return p.Role.IsStaff()
}
