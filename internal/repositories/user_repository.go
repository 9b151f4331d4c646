package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// UserRepository abstracts user persistence, including the block list.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
	GetSummaries(ctx context.Context, userIDs []int64) ([]models.UserSummary, error)
	UpsertGoogleUser(ctx context.Context, profile models.GoogleProfile, displayName string) (models.User, error)
	SetStatus(ctx context.Context, userID int64, status models.Status, at time.Time) error
	UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error)
	Search(ctx context.Context, userID int64, query string, limit int) ([]models.UserSummary, error)
	IsBlockedEither(ctx context.Context, a, b int64) (bool, error)
	Block(ctx context.Context, userID, blockedID int64) error
	Unblock(ctx context.Context, userID, blockedID int64) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, google_id, email, display_name, first_name, last_name, avatar, bio, status, last_seen, last_login, created_at, updated_at`

const summaryColumns = `id, display_name, email, avatar, status, last_seen`

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetSummaries resolves public profile fields for the given ids. Unknown ids are skipped.
func (r *UserRepo) GetSummaries(ctx context.Context, userIDs []int64) ([]models.UserSummary, error) {
	if len(userIDs) == 0 {
		return []models.UserSummary{}, nil
	}
	var users []models.UserSummary
	err := r.db.SelectContext(ctx, &users, `SELECT `+summaryColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(userIDs))
	return users, err
}

// UpsertGoogleUser finds the account linked to the Google identity, links an
// existing account with the same email, or creates a new one.
func (r *UserRepo) UpsertGoogleUser(ctx context.Context, profile models.GoogleProfile, displayName string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `UPDATE users SET last_login = NOW(), updated_at = NOW(),
        avatar = CASE WHEN avatar = '' THEN $2 ELSE avatar END
        WHERE google_id = $1 RETURNING `+userColumns, profile.GoogleID, profile.Picture)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}

	err = r.db.GetContext(ctx, &user, `INSERT INTO users (google_id, email, display_name, first_name, last_name, avatar)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (email) DO UPDATE SET google_id = EXCLUDED.google_id, last_login = NOW(), updated_at = NOW()
        RETURNING `+userColumns,
		profile.GoogleID, strings.ToLower(profile.Email), displayName, profile.FirstName, profile.LastName, profile.Picture)
	return user, err
}

// SetStatus persists the availability status and refreshes last_seen.
func (r *UserRepo) SetStatus(ctx context.Context, userID int64, status models.Status, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status=$2, last_seen=$3, updated_at=NOW() WHERE id=$1`, userID, status, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	var user models.User
	err := r.db.GetContext(ctx, &user, `UPDATE users SET
        display_name = COALESCE($2, display_name),
        bio = COALESCE($3, bio),
        status = COALESCE($4, status),
        updated_at = NOW()
        WHERE id=$1 RETURNING `+userColumns, userID, update.DisplayName, update.Bio, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Search matches display name or email, excluding the caller and the users
// the caller has blocked.
func (r *UserRepo) Search(ctx context.Context, userID int64, query string, limit int) ([]models.UserSummary, error) {
	pattern := "%" + escapeLike(query) + "%"
	var users []models.UserSummary
	err := r.db.SelectContext(ctx, &users, `SELECT `+summaryColumns+` FROM users
        WHERE id <> $1 AND (display_name ILIKE $2 OR email ILIKE $2)
        AND id NOT IN (SELECT blocked_id FROM user_blocks WHERE user_id = $1)
        ORDER BY display_name LIMIT $3`, userID, pattern, limit)
	return users, err
}

// IsBlockedEither reports whether either user has blocked the other.
func (r *UserRepo) IsBlockedEither(ctx context.Context, a, b int64) (bool, error) {
	var blocked bool
	err := r.db.GetContext(ctx, &blocked, `SELECT EXISTS(SELECT 1 FROM user_blocks
        WHERE (user_id=$1 AND blocked_id=$2) OR (user_id=$2 AND blocked_id=$1))`, a, b)
	return blocked, err
}

// Block adds blockedID to the user's block list.
func (r *UserRepo) Block(ctx context.Context, userID, blockedID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_blocks (user_id, blocked_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, blockedID)
	return err
}

// Unblock removes blockedID from the user's block list.
func (r *UserRepo) Unblock(ctx context.Context, userID, blockedID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_blocks WHERE user_id=$1 AND blocked_id=$2`, userID, blockedID)
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
