package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"messenger-service/internal/models"
)

// Client to server event names.
const (
	EventSendMessage         = "send_message"
	EventMarkAsRead          = "mark_as_read"
	EventTyping              = "typing"
	EventCreateConversation  = "create_conversation"
	EventSendFriendRequest   = "send_friend_request"
	EventAcceptFriendRequest = "accept_friend_request"
	EventRejectFriendRequest = "reject_friend_request"
)

const maxClientIDLength = 64

var errDuplicate = errors.New("duplicate client message id")

// frame is the envelope of every inbound message.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type payload interface {
	Validate() error
}

func decode[T payload](data json.RawMessage) (T, error) {
	var p T
	if len(data) == 0 {
		return p, errors.New("missing data")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode: %w", err)
	}
	return p, p.Validate()
}

type sendMessagePayload struct {
	Conversation int64              `json:"conversation"`
	Content      *string            `json:"content"`
	Attachments  models.Attachments `json:"attachments"`
	ReplyTo      *int64             `json:"replyTo"`
	ClientID     string             `json:"clientId"`
}

func (p sendMessagePayload) Validate() error {
	if p.Conversation <= 0 {
		return errors.New("conversation is required")
	}
	if p.ReplyTo != nil && *p.ReplyTo <= 0 {
		return errors.New("replyTo must be a message id")
	}
	if len(p.ClientID) > maxClientIDLength {
		return errors.New("clientId is too long")
	}
	for i, a := range p.Attachments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("attachment %d: %w", i, err)
		}
	}
	return nil
}

type markAsReadPayload struct {
	MessageID int64 `json:"messageId"`
}

func (p markAsReadPayload) Validate() error {
	if p.MessageID <= 0 {
		return errors.New("messageId is required")
	}
	return nil
}

type typingPayload struct {
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

func (p typingPayload) Validate() error {
	if p.ConversationID <= 0 {
		return errors.New("conversationId is required")
	}
	return nil
}

type createConversationPayload struct {
	UserIDs []int64 `json:"userIds"`
	IsGroup bool    `json:"isGroup"`
	Name    *string `json:"name"`
}

func (p createConversationPayload) Validate() error {
	if len(p.UserIDs) == 0 {
		return errors.New("userIds is required")
	}
	return nil
}

type friendRequestPayload struct {
	UserID  int64   `json:"userId"`
	Message *string `json:"message"`
}

func (p friendRequestPayload) Validate() error {
	if p.UserID <= 0 {
		return errors.New("userId is required")
	}
	return nil
}

type requestDecisionPayload struct {
	RequestID int64 `json:"requestId"`
}

func (p requestDecisionPayload) Validate() error {
	if p.RequestID <= 0 {
		return errors.New("requestId is required")
	}
	return nil
}
