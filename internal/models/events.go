package models

import "time"

// Server to client event names.
const (
	EventNewMessage            = "new_message"
	EventMessageRead           = "message_read"
	EventMessageUpdated        = "message_updated"
	EventMessageDeleted        = "message_deleted"
	EventUserStatusChange      = "user_status_change"
	EventNewConversation       = "new_conversation"
	EventConversationUpdated   = "conversation_updated"
	EventFriendRequest         = "friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
	EventFriendRemoved         = "friend_removed"
	EventTyping                = "typing"
)

// Event is a frame pushed over the realtime connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewEvent builds an Event.
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data}
}

type MessageReadPayload struct {
	MessageID      int64 `json:"messageId"`
	UserID         int64 `json:"userId"`
	ConversationID int64 `json:"conversationId"`
}

type MessageDeletedPayload struct {
	MessageID      int64 `json:"messageId"`
	ConversationID int64 `json:"conversationId"`
}

type StatusChangePayload struct {
	UserID   int64      `json:"userId"`
	Status   Status     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
	IsTyping       bool  `json:"isTyping"`
}

type FriendAcceptedPayload struct {
	RequestID int64       `json:"requestId"`
	Friend    UserSummary `json:"friend"`
}

type FriendRejectedPayload struct {
	RequestID int64 `json:"requestId"`
	UserID    int64 `json:"userId"`
}

type FriendRemovedPayload struct {
	UserID int64 `json:"userId"`
}
