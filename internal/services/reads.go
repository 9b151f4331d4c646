package services

import (
	"context"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// ReadTracker records read receipts and keeps unread counters in step.
type ReadTracker struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifier      Notifier
	log           *zap.Logger
}

// NewReadTracker constructs a ReadTracker.
func NewReadTracker(conversations repositories.ConversationRepository, messages repositories.MessageRepository, notifier Notifier, log *zap.Logger) *ReadTracker {
	return &ReadTracker{conversations: conversations, messages: messages, notifier: notifier, log: log}
}

// MarkRead adds the user to the message's readers. A repeated call is a
// no-op and reports false; only the first call resets the unread counter
// and broadcasts a receipt.
func (t *ReadTracker) MarkRead(ctx context.Context, userID, messageID int64) (bool, error) {
	msg, err := t.messages.GetMessage(ctx, messageID)
	if err != nil {
		return false, classify(err, "load message")
	}
	if msg.IsReadBy(userID) {
		return false, nil
	}
	ok, err := t.conversations.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return false, classify(err, "check participant")
	}
	if !ok {
		return false, forbidden("not a participant of this conversation")
	}

	added, err := t.messages.AddReader(ctx, messageID, userID)
	if err != nil {
		return false, classify(err, "add reader")
	}
	if !added {
		return false, nil
	}
	if err := t.conversations.ResetUnread(ctx, msg.ConversationID, userID); err != nil {
		return false, classify(err, "reset unread")
	}

	t.notifier.BroadcastToConversation(msg.ConversationID, models.NewEvent(models.EventMessageRead, models.MessageReadPayload{
		MessageID:      messageID,
		UserID:         userID,
		ConversationID: msg.ConversationID,
	}), nil)
	return true, nil
}

// MarkConversationRead marks every message the user has not read and did not
// send as read, resets the counter and broadcasts one receipt per message.
// It returns the number of messages newly marked.
func (t *ReadTracker) MarkConversationRead(ctx context.Context, userID, conversationID int64) (int, error) {
	ok, err := t.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, classify(err, "check participant")
	}
	if !ok {
		return 0, forbidden("not a participant of this conversation")
	}

	ids, err := t.messages.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return 0, classify(err, "mark conversation read")
	}
	if err := t.conversations.ResetUnread(ctx, conversationID, userID); err != nil {
		return 0, classify(err, "reset unread")
	}

	for _, id := range ids {
		t.notifier.BroadcastToConversation(conversationID, models.NewEvent(models.EventMessageRead, models.MessageReadPayload{
			MessageID:      id,
			UserID:         userID,
			ConversationID: conversationID,
		}), nil)
	}
	t.log.Debug("conversation marked read", zap.Int64("conversation_id", conversationID), zap.Int64("user_id", userID), zap.Int("count", len(ids)))
	return len(ids), nil
}
