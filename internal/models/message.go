package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RedactedContent replaces the content of a deleted message on the wire.
const RedactedContent = "This message was deleted"

// AttachmentType is the closed set of attachment kinds.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Valid reports whether t is a known attachment kind.
func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentFile:
		return true
	}
	return false
}

// Attachment is a file reference carried by a message. Width and Height only
// apply to image and video, Duration to audio and video.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	Name     string         `json:"name,omitempty"`
	Size     int64          `json:"size,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Width    *int           `json:"width,omitempty"`
	Height   *int           `json:"height,omitempty"`
	Duration *float64       `json:"duration,omitempty"`
}

// Validate checks the attachment against its variant rules.
func (a Attachment) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown attachment type %q", a.Type)
	}
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("attachment url is required")
	}
	if a.Size < 0 {
		return errors.New("attachment size cannot be negative")
	}
	hasDimensions := a.Width != nil || a.Height != nil
	if hasDimensions && a.Type != AttachmentImage && a.Type != AttachmentVideo {
		return fmt.Errorf("%s attachments carry no dimensions", a.Type)
	}
	if a.Duration != nil && a.Type != AttachmentAudio && a.Type != AttachmentVideo {
		return fmt.Errorf("%s attachments carry no duration", a.Type)
	}
	return nil
}

// Attachments is stored as a JSONB array.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("attachments: unsupported source %T", src)
	}
	var out Attachments
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = Attachments{}
	}
	*a = out
	return nil
}

// Reaction is one user's reaction to a message.
type Reaction struct {
	MessageID int64     `db:"message_id" json:"-"`
	UserID    int64     `db:"user_id" json:"userId"`
	Type      string    `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// HistoryCursor bounds a history page to messages ordered strictly before
// (Before, BeforeID). A zero BeforeID compares on the timestamp only.
type HistoryCursor struct {
	Before   time.Time
	BeforeID int64
}

// Message is a chat message.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversation"`
	SenderID       int64       `db:"sender_id" json:"senderId"`
	Content        *string     `db:"content" json:"content,omitempty"`
	Attachments    Attachments `db:"attachments" json:"attachments"`
	ReplyToID      *int64      `db:"reply_to_id" json:"replyToId,omitempty"`
	IsDeleted      bool        `db:"is_deleted" json:"isDeleted"`
	IsEdited       bool        `db:"is_edited" json:"isEdited"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`

	ReadBy    []int64      `db:"-" json:"readBy"`
	Reactions []Reaction   `db:"-" json:"reactions"`
	Sender    *UserSummary `db:"-" json:"sender,omitempty"`
	ReplyTo   *Message     `db:"-" json:"replyTo,omitempty"`
}

// IsReadBy reports whether userID is in the readBy set.
func (m Message) IsReadBy(userID int64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// HasContent reports whether the message carries text or attachments.
func (m Message) HasContent() bool {
	return (m.Content != nil && strings.TrimSpace(*m.Content) != "") || len(m.Attachments) > 0
}

// MarshalJSON redacts deleted messages whatever the stored content is.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire Message
	w := wire(m)
	if w.IsDeleted {
		redacted := RedactedContent
		w.Content = &redacted
		w.Attachments = Attachments{}
	}
	if w.Attachments == nil {
		w.Attachments = Attachments{}
	}
	if w.ReadBy == nil {
		w.ReadBy = []int64{}
	}
	if w.Reactions == nil {
		w.Reactions = []Reaction{}
	}
	return json.Marshal(w)
}
