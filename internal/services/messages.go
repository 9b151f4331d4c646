package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

const (
	MaxContentLength  = 5000
	MaxAttachments    = 10
	MaxReactionLength = 32

	DefaultPageSize = 30
	MaxPageSize     = 100
)

// SendInput is a message submission from either entry point.
type SendInput struct {
	ConversationID int64
	Content        *string
	Attachments    models.Attachments
	ReplyToID      *int64
	// Source labels the entry point in metrics ("ws" or "http").
	Source string
}

// MessageService is the message delivery pipeline plus message mutations.
type MessageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifier      Notifier
	log           *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, notifier Notifier, log *zap.Logger) *MessageService {
	return &MessageService{conversations: conversations, messages: messages, notifier: notifier, log: log}
}

// Send validates, persists and fans out a message. Nothing is broadcast
// unless the message and the conversation's last-message pointer were stored.
func (s *MessageService) Send(ctx context.Context, senderID int64, in SendInput) (models.Message, error) {
	content := normalizeContent(in.Content)
	if content == nil && len(in.Attachments) == 0 {
		return models.Message{}, validationf("message must have content or attachments")
	}
	if content != nil && utf8.RuneCountInString(*content) > MaxContentLength {
		return models.Message{}, validationf("message content exceeds %d characters", MaxContentLength)
	}
	if len(in.Attachments) > MaxAttachments {
		return models.Message{}, validationf("at most %d attachments are allowed", MaxAttachments)
	}
	for _, a := range in.Attachments {
		if err := a.Validate(); err != nil {
			return models.Message{}, validationf("invalid attachment: %v", err)
		}
	}

	conv, err := s.conversations.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return models.Message{}, classify(err, "load conversation")
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, forbidden("not a participant of this conversation")
	}

	var reply *models.Message
	if in.ReplyToID != nil {
		replied, err := s.messages.GetMessage(ctx, *in.ReplyToID)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, validationf("invalid reply target")
		}
		if err != nil {
			return models.Message{}, classify(err, "load replied message")
		}
		if replied.ConversationID != conv.ID {
			return models.Message{}, validationf("invalid reply target")
		}
		replied.ReplyTo = nil
		reply = &replied
	}

	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    in.Attachments,
		ReplyToID:      in.ReplyToID,
	})
	if err != nil {
		return models.Message{}, classify(err, "persist message")
	}
	if err := s.conversations.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		return models.Message{}, classify(err, "update last message")
	}
	observability.IncMessagesPersisted(sourceLabel(in.Source))

	for _, p := range conv.Participants {
		if p.ID == senderID {
			sender := p
			sender.Email = ""
			msg.Sender = &sender
			break
		}
	}
	msg.ReplyTo = reply

	// Counted before the broadcast so a read triggered by the event cannot be overtaken.
	if err := s.conversations.IncrementUnread(ctx, conv.ID, senderID); err != nil {
		s.log.Error("increment unread failed", zap.Int64("conversation_id", conv.ID), zap.Int64("message_id", msg.ID), zap.Error(err))
	}

	s.notifier.BroadcastToConversation(conv.ID, models.NewEvent(models.EventNewMessage, msg), nil)

	publishDomainEvent(ctx, s.log, observability.RoutingMessages, "message_created", map[string]any{
		"message_id":      msg.ID,
		"conversation_id": conv.ID,
		"sender_id":       senderID,
		"attachments":     len(msg.Attachments),
	})
	return msg, nil
}

// List returns a page of the conversation's history, oldest first.
func (s *MessageService) List(ctx context.Context, userID, conversationID int64, cursor *models.HistoryCursor, limit int) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	msgs, err := s.messages.ListMessages(ctx, conversationID, cursor, limit)
	return msgs, classify(err, "list messages")
}

// Delete soft-deletes the caller's message. If it was the conversation's last
// message the pointer moves to the newest surviving message or is cleared.
func (s *MessageService) Delete(ctx context.Context, userID, messageID int64) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return classify(err, "load message")
	}
	if msg.SenderID != userID {
		return forbidden("only the sender can delete this message")
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return classify(err, "delete message")
	}
	if !deleted {
		return nil
	}

	moved, err := s.conversations.ReassignLastMessage(ctx, msg.ConversationID, messageID)
	if err != nil {
		return classify(err, "reassign last message")
	}

	s.notifier.BroadcastToConversation(msg.ConversationID, models.NewEvent(models.EventMessageDeleted, models.MessageDeletedPayload{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
	}), nil)

	if moved {
		conv, err := s.conversations.GetConversation(ctx, msg.ConversationID)
		if err != nil {
			s.log.Warn("reload conversation after delete failed", zap.Int64("conversation_id", msg.ConversationID), zap.Error(err))
		} else {
			s.notifier.BroadcastToConversation(conv.ID, models.NewEvent(models.EventConversationUpdated, conv), nil)
		}
	}

	publishDomainEvent(ctx, s.log, observability.RoutingMessages, "message_deleted", map[string]any{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
	})
	return nil
}

// Edit replaces the text of the caller's message.
func (s *MessageService) Edit(ctx context.Context, userID, messageID int64, content string) (models.Message, error) {
	text := normalizeContent(&content)
	if text == nil {
		return models.Message{}, validationf("message content is required")
	}
	if utf8.RuneCountInString(*text) > MaxContentLength {
		return models.Message{}, validationf("message content exceeds %d characters", MaxContentLength)
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, classify(err, "load message")
	}
	if msg.SenderID != userID {
		return models.Message{}, forbidden("only the sender can edit this message")
	}
	if msg.IsDeleted {
		return models.Message{}, validationf("cannot edit a deleted message")
	}
	if err := s.messages.EditContent(ctx, messageID, *text); err != nil {
		return models.Message{}, classify(err, "edit message")
	}
	return s.reloadAndAnnounce(ctx, messageID)
}

// React sets the caller's reaction, replacing a previous one.
func (s *MessageService) React(ctx context.Context, userID, messageID int64, reaction string) (models.Message, error) {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return models.Message{}, validationf("reaction type is required")
	}
	if utf8.RuneCountInString(reaction) > MaxReactionLength {
		return models.Message{}, validationf("reaction type exceeds %d characters", MaxReactionLength)
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, classify(err, "load message")
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return models.Message{}, err
	}
	if msg.IsDeleted {
		return models.Message{}, validationf("cannot react to a deleted message")
	}
	if err := s.messages.SetReaction(ctx, messageID, userID, reaction); err != nil {
		return models.Message{}, classify(err, "set reaction")
	}
	return s.reloadAndAnnounce(ctx, messageID)
}

// Unreact removes the caller's reaction.
func (s *MessageService) Unreact(ctx context.Context, userID, messageID int64) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, classify(err, "load message")
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return models.Message{}, err
	}
	removed, err := s.messages.RemoveReaction(ctx, messageID, userID)
	if err != nil {
		return models.Message{}, classify(err, "remove reaction")
	}
	if !removed {
		return models.Message{}, notFound("reaction not found")
	}
	return s.reloadAndAnnounce(ctx, messageID)
}

func (s *MessageService) reloadAndAnnounce(ctx context.Context, messageID int64) (models.Message, error) {
	updated, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, classify(err, "reload message")
	}
	s.notifier.BroadcastToConversation(updated.ConversationID, models.NewEvent(models.EventMessageUpdated, updated), nil)
	return updated, nil
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return classify(err, "check participant")
	}
	if !ok {
		return forbidden("not a participant of this conversation")
	}
	return nil
}

func normalizeContent(content *string) *string {
	if content == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*content)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
