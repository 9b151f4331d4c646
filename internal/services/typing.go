package services

import (
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

// TypingNotifier relays typing state. Nothing is stored; clients expire stale indicators.
type TypingNotifier struct {
	notifier Notifier
}

func NewTypingNotifier(notifier Notifier) *TypingNotifier {
	return &TypingNotifier{notifier: notifier}
}

// SetTyping broadcasts to every other connection of the conversation. The
// sending connection must be subscribed to the conversation channel.
func (t *TypingNotifier) SetTyping(h presence.Handle, conversationID int64, isTyping bool) error {
	if !t.notifier.IsSubscribed(h, conversationID) {
		return forbidden("not subscribed to this conversation")
	}
	t.notifier.BroadcastToConversation(conversationID, models.NewEvent(models.EventTyping, models.TypingPayload{
		ConversationID: conversationID,
		UserID:         h.UserID(),
		IsTyping:       isTyping,
	}), h)
	return nil
}
