package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const (
	MinDisplayName  = 2
	MaxDisplayName  = 50
	MaxBioLength    = 200
	MinSearchLength = 2
	SearchLimit     = 20
)

// StatusView is the public availability of a user.
type StatusView struct {
	UserID   int64         `json:"userId"`
	Status   models.Status `json:"status"`
	LastSeen time.Time     `json:"lastSeen"`
	IsOnline bool          `json:"isOnline"`
}

// UserService serves profiles, search, status and the block list.
type UserService struct {
	users    repositories.UserRepository
	friends  repositories.FriendRepository
	notifier Notifier
	online   OnlineChecker
	log      *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users repositories.UserRepository, friends repositories.FriendRepository, notifier Notifier, online OnlineChecker, log *zap.Logger) *UserService {
	return &UserService{users: users, friends: friends, notifier: notifier, online: online, log: log}
}

// Profile returns the user's own profile.
func (s *UserService) Profile(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, classify(err, "load profile")
	}
	user.IsOnline = user.Status == models.StatusOnline && s.online.IsOnline(userID)
	return user, nil
}

// UpdateProfile validates and applies a profile change. A status change is
// announced to reachable friends.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if n := utf8.RuneCountInString(name); n < MinDisplayName || n > MaxDisplayName {
			return models.User{}, validationf("display name must be between %d and %d characters", MinDisplayName, MaxDisplayName)
		}
		update.DisplayName = &name
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return models.User{}, validationf("bio cannot exceed %d characters", MaxBioLength)
		}
		update.Bio = &bio
	}
	if update.Status != nil && !update.Status.Valid() {
		return models.User{}, validationf("invalid status")
	}

	before, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, classify(err, "load profile")
	}
	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return models.User{}, classify(err, "update profile")
	}
	user.IsOnline = user.Status == models.StatusOnline && s.online.IsOnline(userID)

	if user.Status != before.Status {
		NotifyFriends(ctx, s.friends, s.notifier, s.log, userID, models.StatusChangePayload{
			UserID: userID,
			Status: user.Status,
		})
	}
	return user, nil
}

// Search finds users by display name or email.
func (s *UserService) Search(ctx context.Context, userID int64, query string) ([]models.UserSummary, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return nil, validationf("search must have at least %d characters", MinSearchLength)
	}
	users, err := s.users.Search(ctx, userID, query, SearchLimit)
	if err != nil {
		return nil, classify(err, "search users")
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	decorateSummaries(s.online, users)
	return users, nil
}

// Status returns the persisted status together with the derived online flag.
func (s *UserService) Status(ctx context.Context, userID int64) (StatusView, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return StatusView{}, classify(err, "load status")
	}
	return StatusView{
		UserID:   user.ID,
		Status:   user.Status,
		LastSeen: user.LastSeen,
		IsOnline: user.Status == models.StatusOnline && s.online.IsOnline(userID),
	}, nil
}

// Logout persists the user as offline.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	return classify(s.users.SetStatus(ctx, userID, models.StatusOffline, time.Now()), "logout")
}

// Block adds target to the user's block list.
func (s *UserService) Block(ctx context.Context, userID, targetID int64) error {
	if userID == targetID {
		return validationf("cannot block yourself")
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		return classify(err, "load user")
	}
	return classify(s.users.Block(ctx, userID, targetID), "block user")
}

// Unblock removes target from the user's block list.
func (s *UserService) Unblock(ctx context.Context, userID, targetID int64) error {
	return classify(s.users.Unblock(ctx, userID, targetID), "unblock user")
}

// NotifyFriends sends a status change to every friend holding a live connection.
func NotifyFriends(ctx context.Context, friends repositories.FriendRepository, notifier Notifier, log *zap.Logger, userID int64, payload models.StatusChangePayload) {
	ids, err := friends.ListFriendIDs(ctx, userID)
	if err != nil {
		log.Error("load friends for status change failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	event := models.NewEvent(models.EventUserStatusChange, payload)
	for _, id := range ids {
		notifier.SendToUser(id, event)
	}
}
