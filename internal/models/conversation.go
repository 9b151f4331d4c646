package models

import (
	"fmt"
	"time"
)

// Conversation is a direct chat between exactly two users or a named group.
type Conversation struct {
	ID            int64     `db:"id" json:"id"`
	IsGroup       bool      `db:"is_group" json:"isGroup"`
	Name          *string   `db:"name" json:"name,omitempty"`
	GroupAvatar   *string   `db:"group_avatar" json:"groupAvatar,omitempty"`
	LastMessageID *int64    `db:"last_message_id" json:"lastMessageId,omitempty"`
	CreatedBy     int64     `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`

	Participants []UserSummary `db:"-" json:"participants"`
	Admins       []int64       `db:"-" json:"admins"`
	LastMessage  *Message      `db:"-" json:"lastMessage,omitempty"`
	UnreadCount  int           `db:"-" json:"unreadCount"`
}

// HasParticipant reports whether userID is a member of the conversation.
func (c Conversation) HasParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID administers the conversation.
func (c Conversation) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs lists member ids in participant order.
func (c Conversation) ParticipantIDs() []int64 {
	ids := make([]int64, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// Participant is a membership row with the per-user unread counter.
type Participant struct {
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	UserID         int64     `db:"user_id" json:"userId"`
	IsAdmin        bool      `db:"is_admin" json:"isAdmin"`
	UnreadCount    int       `db:"unread_count" json:"unreadCount"`
	JoinedAt       time.Time `db:"joined_at" json:"joinedAt"`
}

// DirectKey is the order-independent key identifying the direct chat of a pair.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
