package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// FriendRepository persists friendships and the per-pair friend request record.
type FriendRepository interface {
	AreFriends(ctx context.Context, a, b int64) (bool, error)
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
	ListFriends(ctx context.Context, userID int64) ([]models.UserSummary, error)
	RemoveFriendship(ctx context.Context, a, b int64) (bool, error)

	FindRequestBetween(ctx context.Context, a, b int64) (models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID int64) (models.FriendRequest, error)
	ListPendingRequests(ctx context.Context, recipientID int64) ([]models.FriendRequest, error)
	CreateRequest(ctx context.Context, senderID, recipientID int64, message *string) (models.FriendRequest, error)
	ReopenRequest(ctx context.Context, requestID, senderID, recipientID int64, message *string) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID int64) (models.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID int64) (models.FriendRequest, error)
}

// FriendRepo is a sqlx implementation of FriendRepository.
type FriendRepo struct {
	db *sqlx.DB
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

const requestColumns = `id, sender_id, recipient_id, status, message, created_at, updated_at`

// AreFriends checks the friendship edge from a to b.
func (r *FriendRepo) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM user_friends WHERE user_id=$1 AND friend_id=$2)`, a, b)
	return exists, err
}

// ListFriendIDs returns the ids of the user's friends.
func (r *FriendRepo) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT friend_id FROM user_friends WHERE user_id=$1 ORDER BY friend_id`, userID)
	return ids, err
}

// ListFriends returns the public profile of every friend.
func (r *FriendRepo) ListFriends(ctx context.Context, userID int64) ([]models.UserSummary, error) {
	var friends []models.UserSummary
	err := r.db.SelectContext(ctx, &friends, `SELECT u.id, u.display_name, u.email, u.avatar, u.status, u.last_seen
        FROM user_friends f INNER JOIN users u ON u.id = f.friend_id
        WHERE f.user_id=$1 ORDER BY u.display_name`, userID)
	return friends, err
}

// RemoveFriendship deletes both directions of the friendship and reports whether one existed.
func (r *FriendRepo) RemoveFriendship(ctx context.Context, a, b int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_friends
        WHERE (user_id=$1 AND friend_id=$2) OR (user_id=$2 AND friend_id=$1)`, a, b)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindRequestBetween returns the record of the unordered pair, whatever its direction.
func (r *FriendRepo) FindRequestBetween(ctx context.Context, a, b int64) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM friend_requests WHERE pair_key=$1`, models.PairKey(a, b))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// GetRequest fetches a request by id.
func (r *FriendRepo) GetRequest(ctx context.Context, requestID int64) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// ListPendingRequests returns pending requests addressed to the user, senders populated.
func (r *FriendRepo) ListPendingRequests(ctx context.Context, recipientID int64) ([]models.FriendRequest, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.message, fr.created_at, fr.updated_at,
        u.display_name, u.email, u.avatar, u.status AS sender_status, u.last_seen
        FROM friend_requests fr INNER JOIN users u ON u.id = fr.sender_id
        WHERE fr.recipient_id=$1 AND fr.status='pending'
        ORDER BY fr.updated_at DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.FriendRequest{}
	for rows.Next() {
		var req models.FriendRequest
		var sender models.UserSummary
		if err := rows.Scan(&req.ID, &req.SenderID, &req.RecipientID, &req.Status, &req.Message, &req.CreatedAt, &req.UpdatedAt,
			&sender.DisplayName, &sender.Email, &sender.Avatar, &sender.Status, &sender.LastSeen); err != nil {
			return nil, err
		}
		sender.ID = req.SenderID
		req.Sender = &sender
		result = append(result, req)
	}
	return result, rows.Err()
}

// CreateRequest inserts the pair's record. A concurrent insert for the same
// pair surfaces as ErrFriendRequestExists.
func (r *FriendRepo) CreateRequest(ctx context.Context, senderID, recipientID int64, message *string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `INSERT INTO friend_requests (sender_id, recipient_id, message, pair_key)
        VALUES ($1, $2, $3, $4) RETURNING `+requestColumns,
		senderID, recipientID, message, models.PairKey(senderID, recipientID))
	if isUniqueViolation(err) {
		return models.FriendRequest{}, ErrFriendRequestExists
	}
	return req, err
}

// ReopenRequest flips a settled record back to pending in the new direction.
func (r *FriendRepo) ReopenRequest(ctx context.Context, requestID, senderID, recipientID int64, message *string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `UPDATE friend_requests
        SET sender_id=$2, recipient_id=$3, message=$4, status='pending', updated_at=NOW()
        WHERE id=$1 AND status <> 'pending' RETURNING `+requestColumns,
		requestID, senderID, recipientID, message)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestPending
	}
	return req, err
}

// AcceptRequest settles a pending request and records the friendship in both
// directions within one transaction.
func (r *FriendRepo) AcceptRequest(ctx context.Context, requestID int64) (req models.FriendRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FriendRequest{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &req, `UPDATE friend_requests SET status='accepted', updated_at=NOW()
        WHERE id=$1 AND status='pending' RETURNING `+requestColumns, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrFriendRequestNotActive
		}
		return models.FriendRequest{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO user_friends (user_id, friend_id) VALUES ($1, $2), ($2, $1)
        ON CONFLICT DO NOTHING`, req.SenderID, req.RecipientID); err != nil {
		return models.FriendRequest{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}

// RejectRequest settles a pending request as rejected.
func (r *FriendRepo) RejectRequest(ctx context.Context, requestID int64) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `UPDATE friend_requests SET status='rejected', updated_at=NOW()
        WHERE id=$1 AND status='pending' RETURNING `+requestColumns, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotActive
	}
	return req, err
}
