package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrFriendRequestNotFound  = errors.New("friend request not found")
	ErrFriendRequestExists    = errors.New("friend request already exists for this pair")
	ErrFriendRequestPending   = errors.New("friend request already pending")
	ErrFriendRequestNotActive = errors.New("friend request is not pending")
	ErrNotParticipant         = errors.New("user is not a participant")
	ErrSoleAdmin              = errors.New("cannot remove the only admin of a group")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
