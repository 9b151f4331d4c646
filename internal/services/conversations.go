package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const MaxGroupNameLength = 100

// CreateConversationInput is a conversation creation request.
type CreateConversationInput struct {
	UserIDs     []int64
	IsGroup     bool
	Name        *string
	GroupAvatar *string
}

// ConversationService creates conversations and manages group membership,
// keeping channel subscriptions in step.
type ConversationService struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	notifier      Notifier
	online        OnlineChecker
	log           *zap.Logger
}

// NewConversationService constructs a ConversationService.
func NewConversationService(conversations repositories.ConversationRepository, users repositories.UserRepository, notifier Notifier, online OnlineChecker, log *zap.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, users: users, notifier: notifier, online: online, log: log}
}

// Create opens a direct or group conversation. The creator is always a
// participant. A direct conversation that already exists for the pair is
// returned instead, joined and announced to the creator only; created is
// false in that case.
func (s *ConversationService) Create(ctx context.Context, creatorID int64, in CreateConversationInput) (conv models.Conversation, created bool, err error) {
	participants := uniqueIDs(append([]int64{creatorID}, in.UserIDs...))
	if len(participants) < 2 {
		return models.Conversation{}, false, validationf("a conversation needs at least two participants")
	}

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.IsGroup {
		if name == "" {
			return models.Conversation{}, false, validationf("group name is required")
		}
		if utf8.RuneCountInString(name) > MaxGroupNameLength {
			return models.Conversation{}, false, validationf("group name exceeds %d characters", MaxGroupNameLength)
		}
	} else if len(participants) != 2 {
		return models.Conversation{}, false, validationf("a direct conversation has exactly two participants")
	}

	if err := s.requireUsers(ctx, participants); err != nil {
		return models.Conversation{}, false, err
	}

	if !in.IsGroup {
		conv, created, err = s.conversations.CreateOrGetDirect(ctx, creatorID, participants[1])
		if err != nil {
			return models.Conversation{}, false, classify(err, "create direct conversation")
		}
		decorateConversation(s.online, &conv)
		if !created {
			s.notifier.JoinConversation(creatorID, conv.ID)
			s.notifier.SendToUser(creatorID, models.NewEvent(models.EventNewConversation, conv))
			return conv, false, nil
		}
	} else {
		conv, err = s.conversations.CreateGroup(ctx, creatorID, name, in.GroupAvatar, participants[1:])
		if err != nil {
			return models.Conversation{}, false, classify(err, "create group")
		}
		decorateConversation(s.online, &conv)
	}

	event := models.NewEvent(models.EventNewConversation, conv)
	for _, id := range conv.ParticipantIDs() {
		s.notifier.JoinConversation(id, conv.ID)
		s.notifier.SendToUser(id, event)
	}
	s.log.Info("conversation created", zap.Int64("conversation_id", conv.ID), zap.Bool("is_group", conv.IsGroup), zap.Int("participants", len(conv.Participants)))
	return conv, true, nil
}

// List returns the user's conversations, most recent first.
func (s *ConversationService) List(ctx context.Context, userID int64) ([]models.Conversation, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, classify(err, "list conversations")
	}
	for i := range convs {
		decorateConversation(s.online, &convs[i])
	}
	return convs, nil
}

// Get returns one conversation the user participates in.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID int64) (models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, classify(err, "load conversation")
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, forbidden("not a participant of this conversation")
	}
	decorateConversation(s.online, &conv)
	return conv, nil
}

// AddParticipants set-adds users to a group. New members are subscribed and
// receive the conversation; existing members receive the update.
func (s *ConversationService) AddParticipants(ctx context.Context, actorID, conversationID int64, userIDs []int64) (models.Conversation, error) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return models.Conversation{}, validationf("user list is required")
	}
	if _, err := s.adminGroup(ctx, actorID, conversationID); err != nil {
		return models.Conversation{}, err
	}
	if err := s.requireUsers(ctx, ids); err != nil {
		return models.Conversation{}, err
	}

	added, err := s.conversations.AddParticipants(ctx, conversationID, ids)
	if err != nil {
		return models.Conversation{}, classify(err, "add participants")
	}
	conv, err := s.reload(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}

	isNew := make(map[int64]bool, len(added))
	newEvent := models.NewEvent(models.EventNewConversation, conv)
	for _, id := range added {
		isNew[id] = true
		s.notifier.JoinConversation(id, conversationID)
		s.notifier.SendToUser(id, newEvent)
	}
	updated := models.NewEvent(models.EventConversationUpdated, conv)
	for _, id := range conv.ParticipantIDs() {
		if !isNew[id] {
			s.notifier.SendToUser(id, updated)
		}
	}
	return conv, nil
}

// RemoveParticipant removes a member from a group. The only admin cannot be removed.
func (s *ConversationService) RemoveParticipant(ctx context.Context, actorID, conversationID, userID int64) (models.Conversation, error) {
	if _, err := s.adminGroup(ctx, actorID, conversationID); err != nil {
		return models.Conversation{}, err
	}
	if err := s.conversations.RemoveParticipant(ctx, conversationID, userID); err != nil {
		return models.Conversation{}, classify(err, "remove participant")
	}
	s.notifier.LeaveConversation(userID, conversationID)

	conv, err := s.reload(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	event := models.NewEvent(models.EventConversationUpdated, conv)
	s.notifier.BroadcastToConversation(conversationID, event, nil)
	s.notifier.SendToUser(userID, event)
	return conv, nil
}

// Update changes the group name or avatar.
func (s *ConversationService) Update(ctx context.Context, actorID, conversationID int64, name, avatar *string) (models.Conversation, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return models.Conversation{}, validationf("group name cannot be empty")
		}
		if utf8.RuneCountInString(trimmed) > MaxGroupNameLength {
			return models.Conversation{}, validationf("group name exceeds %d characters", MaxGroupNameLength)
		}
		name = &trimmed
	}
	if _, err := s.adminGroup(ctx, actorID, conversationID); err != nil {
		return models.Conversation{}, err
	}
	if err := s.conversations.UpdateGroup(ctx, conversationID, name, avatar); err != nil {
		return models.Conversation{}, classify(err, "update conversation")
	}
	conv, err := s.reload(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	s.notifier.BroadcastToConversation(conversationID, models.NewEvent(models.EventConversationUpdated, conv), nil)
	return conv, nil
}

func (s *ConversationService) adminGroup(ctx context.Context, actorID, conversationID int64) (models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, classify(err, "load conversation")
	}
	if !conv.IsGroup {
		return models.Conversation{}, validationf("direct conversations have fixed participants")
	}
	if !conv.IsAdmin(actorID) {
		return models.Conversation{}, forbidden("only group admins can do this")
	}
	return conv, nil
}

func (s *ConversationService) reload(ctx context.Context, conversationID int64) (models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, classify(err, "reload conversation")
	}
	decorateConversation(s.online, &conv)
	return conv, nil
}

func (s *ConversationService) requireUsers(ctx context.Context, ids []int64) error {
	users, err := s.users.GetSummaries(ctx, ids)
	if err != nil {
		return classify(err, "load users")
	}
	if len(users) != len(ids) {
		return validationf("unknown user in participant list")
	}
	return nil
}

// uniqueIDs drops non-positive and repeated ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
