package domain

import (
	"strings"
	"time"
)

// MessageKind discriminates message variants.
type MessageKind string

const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindFile   MessageKind = "FILE"
	MessageKindImage  MessageKind = "IMAGE"
	MessageKindSystem MessageKind = "SYSTEM"
)

// HasAttachment reports whether the kind carries an attachment.
func (k MessageKind) HasAttachment() bool {
	return k == MessageKindFile || k == MessageKindImage
}

// KindForMimeType picks IMAGE for image/* payloads and FILE otherwise.
func KindForMimeType(mimeType string) MessageKind {
	if strings.HasPrefix(mimeType, "image/") {
		return MessageKindImage
	}
	return MessageKindFile
}

// Attachment describes an object-store payload bound to a message. All fields are set together.
type Attachment struct {
	ObjectKey string
	FileName  string
	SizeBytes int64
	MimeType  string
}

// ChatMessage is one unit of communication inside a Chat.
type ChatMessage struct {
	ID             string
	ChatID         string
	SenderID       string
	Content        string
	Kind           MessageKind
	Attachment     *Attachment
	IsRead         bool
	ReadAt         *time.Time
	IsStaffMessage bool
	CreatedAt      time.Time
	SecondaryRef   *string
}
