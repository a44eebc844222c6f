package domain

import "time"

// ChatStatus enumerates lifecycle states for a support chat.
type ChatStatus string

const (
	ChatStatusOpen     ChatStatus = "OPEN"
	ChatStatusActive   ChatStatus = "ACTIVE"
	ChatStatusClosed   ChatStatus = "CLOSED"
	ChatStatusReopened ChatStatus = "REOPENED"
)

// Valid reports whether s is a known status.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusOpen, ChatStatusActive, ChatStatusClosed, ChatStatusReopened:
		return true
	default:
		return false
	}
}

// Chat is one conversation between a requesting user and, optionally, one staff member.
type Chat struct {
	ID                 string
	OwnerID            string
	AssignedStaffID    *string
	Subject            string
	Status             ChatStatus
	MessageCount       int
	UnreadForOwner     int
	UnreadForStaff     int
	LastMessagePreview string
	LastMessageAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}

// IsOwner reports whether participantID opened the chat.
func (c *Chat) IsOwner(participantID string) bool {
	return c.OwnerID == participantID
}

// UnreadFor returns the unread counter on the side participantID reads from.
func (c *Chat) UnreadFor(participantID string) int {
	if c.SideOf(participantID) == SideOwner {
		return c.UnreadForOwner
	}
	return c.UnreadForStaff
}

// Side identifies which unread counter a participant reads from.
type Side string

const (
	SideOwner Side = "owner"
	SideStaff Side = "staff"
)

// SideOf resolves the side for participantID. The owner wins if the owner is also staff.
func (c *Chat) SideOf(participantID string) Side {
	if c.IsOwner(participantID) {
		return SideOwner
	}
	return SideStaff
}

// IsClosed reports whether the chat is currently closed.
func (c *Chat) IsClosed() bool {
	return c.Status == ChatStatusClosed
}
