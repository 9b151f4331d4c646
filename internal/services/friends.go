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

const MaxFriendRequestMessage = 200

// FriendService negotiates friendships. Each user pair owns at most one
// request record, which moves pending -> accepted | rejected and may be
// reopened from a settled state.
type FriendService struct {
	friends  repositories.FriendRepository
	users    repositories.UserRepository
	notifier Notifier
	online   OnlineChecker
	log      *zap.Logger
}

// NewFriendService constructs a FriendService.
func NewFriendService(friends repositories.FriendRepository, users repositories.UserRepository, notifier Notifier, online OnlineChecker, log *zap.Logger) *FriendService {
	return &FriendService{friends: friends, users: users, notifier: notifier, online: online, log: log}
}

// SendRequest asks toID for friendship. When toID already has a pending
// request towards fromID, that request is accepted instead and returned.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID int64, message *string) (models.FriendRequest, error) {
	if fromID == toID {
		return models.FriendRequest{}, validationf("cannot send a friend request to yourself")
	}
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		if utf8.RuneCountInString(trimmed) > MaxFriendRequestMessage {
			return models.FriendRequest{}, validationf("friend request message exceeds %d characters", MaxFriendRequestMessage)
		}
		message = &trimmed
		if trimmed == "" {
			message = nil
		}
	}

	sender, err := s.users.GetUser(ctx, fromID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "load sender")
	}
	if _, err := s.users.GetUser(ctx, toID); err != nil {
		return models.FriendRequest{}, classify(err, "load recipient")
	}
	blocked, err := s.users.IsBlockedEither(ctx, fromID, toID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "check block list")
	}
	if blocked {
		return models.FriendRequest{}, validationf("cannot send a friend request to this user")
	}
	friends, err := s.friends.AreFriends(ctx, fromID, toID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "check friendship")
	}
	if friends {
		return models.FriendRequest{}, conflict("already friends")
	}

	var req models.FriendRequest
	existing, err := s.friends.FindRequestBetween(ctx, fromID, toID)
	switch {
	case errors.Is(err, repositories.ErrFriendRequestNotFound):
		req, err = s.friends.CreateRequest(ctx, fromID, toID, message)
	case err != nil:
		return models.FriendRequest{}, classify(err, "find friend request")
	case existing.Status == models.FriendRequestPending && existing.RecipientID == fromID:
		return s.accept(ctx, existing)
	case existing.Status == models.FriendRequestPending:
		return models.FriendRequest{}, conflict("a friend request is already pending")
	default:
		req, err = s.friends.ReopenRequest(ctx, existing.ID, fromID, toID, message)
	}
	if err != nil {
		return models.FriendRequest{}, classify(err, "save friend request")
	}

	summary := sender.Summary()
	req.Sender = &summary
	s.notifier.SendToUser(toID, models.NewEvent(models.EventFriendRequest, req))
	publishDomainEvent(ctx, s.log, observability.RoutingFriendships, "friend_request_sent", map[string]any{
		"request_id":   req.ID,
		"sender_id":    fromID,
		"recipient_id": toID,
	})
	return req, nil
}

// Respond settles a pending request addressed to actorID.
func (s *FriendService) Respond(ctx context.Context, actorID, requestID int64, decision models.FriendRequestStatus) (models.FriendRequest, error) {
	if decision != models.FriendRequestAccepted && decision != models.FriendRequestRejected {
		return models.FriendRequest{}, validationf("status must be accepted or rejected")
	}
	req, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "load friend request")
	}
	if req.RecipientID != actorID {
		return models.FriendRequest{}, forbidden("only the recipient can respond to this request")
	}
	if req.Status != models.FriendRequestPending {
		return models.FriendRequest{}, conflict("friend request is not pending")
	}

	if decision == models.FriendRequestAccepted {
		return s.accept(ctx, req)
	}

	rejected, err := s.friends.RejectRequest(ctx, requestID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "reject friend request")
	}
	s.notifier.SendToUser(rejected.SenderID, models.NewEvent(models.EventFriendRequestRejected, models.FriendRejectedPayload{
		RequestID: rejected.ID,
		UserID:    actorID,
	}))
	return rejected, nil
}

func (s *FriendService) accept(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error) {
	accepted, err := s.friends.AcceptRequest(ctx, req.ID)
	if err != nil {
		return models.FriendRequest{}, classify(err, "accept friend request")
	}

	profiles, err := s.users.GetSummaries(ctx, []int64{accepted.SenderID, accepted.RecipientID})
	if err != nil {
		s.log.Warn("load friend profiles failed", zap.Int64("request_id", accepted.ID), zap.Error(err))
		return accepted, nil
	}
	decorateSummaries(s.online, profiles)
	byID := make(map[int64]models.UserSummary, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	s.notifier.SendToUser(accepted.SenderID, models.NewEvent(models.EventFriendRequestAccepted, models.FriendAcceptedPayload{
		RequestID: accepted.ID,
		Friend:    byID[accepted.RecipientID],
	}))
	s.notifier.SendToUser(accepted.RecipientID, models.NewEvent(models.EventFriendRequestAccepted, models.FriendAcceptedPayload{
		RequestID: accepted.ID,
		Friend:    byID[accepted.SenderID],
	}))
	publishDomainEvent(ctx, s.log, observability.RoutingFriendships, "friend_request_accepted", map[string]any{
		"request_id":   accepted.ID,
		"sender_id":    accepted.SenderID,
		"recipient_id": accepted.RecipientID,
	})
	return accepted, nil
}

// ListFriends returns the user's friends with derived online flags.
func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]models.UserSummary, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, classify(err, "list friends")
	}
	if friends == nil {
		friends = []models.UserSummary{}
	}
	decorateSummaries(s.online, friends)
	return friends, nil
}

// ListPending returns pending requests addressed to the user.
func (s *FriendService) ListPending(ctx context.Context, userID int64) ([]models.FriendRequest, error) {
	reqs, err := s.friends.ListPendingRequests(ctx, userID)
	return reqs, classify(err, "list friend requests")
}

// RemoveFriend ends the friendship in both directions and tells the other party.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	removed, err := s.friends.RemoveFriendship(ctx, userID, friendID)
	if err != nil {
		return classify(err, "remove friend")
	}
	if !removed {
		return notFound("friendship not found")
	}
	s.notifier.SendToUser(friendID, models.NewEvent(models.EventFriendRemoved, models.FriendRemovedPayload{UserID: userID}))
	return nil
}

