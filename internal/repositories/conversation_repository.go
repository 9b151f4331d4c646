package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	CreateOrGetDirect(ctx context.Context, creatorID, otherID int64) (models.Conversation, bool, error)
	CreateGroup(ctx context.Context, creatorID int64, name string, avatar *string, memberIDs []int64) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	ListIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	SetLastMessage(ctx context.Context, conversationID, messageID int64) error
	ReassignLastMessage(ctx context.Context, conversationID, deletedMessageID int64) (bool, error)
	IncrementUnread(ctx context.Context, conversationID, exceptUserID int64) error
	ResetUnread(ctx context.Context, conversationID, userID int64) error
	AddParticipants(ctx context.Context, conversationID int64, userIDs []int64) ([]int64, error)
	RemoveParticipant(ctx context.Context, conversationID, userID int64) error
	UpdateGroup(ctx context.Context, conversationID int64, name, avatar *string) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `c.id, c.is_group, c.name, c.group_avatar, c.last_message_id, c.created_by, c.created_at, c.updated_at`

// CreateOrGetDirect returns the direct conversation of the pair, creating it
// when absent. The direct_key unique index arbitrates concurrent creators; the
// loser reads the winner's row. The boolean reports whether a row was created.
func (r *ConversationRepo) CreateOrGetDirect(ctx context.Context, creatorID, otherID int64) (conv models.Conversation, created bool, err error) {
	key := models.DirectKey(creatorID, otherID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id int64
	err = tx.GetContext(ctx, &id, `INSERT INTO conversations (is_group, created_by, direct_key) VALUES (FALSE, $1, $2)
        ON CONFLICT (direct_key) DO NOTHING RETURNING id`, creatorID, key)
	switch {
	case err == nil:
		created = true
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id)
            VALUES ($1, $2), ($1, $3)`, id, creatorID, otherID); err != nil {
			return models.Conversation{}, false, err
		}
	case errors.Is(err, sql.ErrNoRows):
		if err = tx.GetContext(ctx, &id, `SELECT id FROM conversations WHERE direct_key=$1`, key); err != nil {
			return models.Conversation{}, false, err
		}
	default:
		return models.Conversation{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, false, err
	}
	conv, err = r.GetConversation(ctx, id)
	return conv, created, err
}

// CreateGroup creates a named group; the creator is its first admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int64, name string, avatar *string, memberIDs []int64) (conv models.Conversation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id int64
	if err = tx.GetContext(ctx, &id, `INSERT INTO conversations (is_group, name, group_avatar, created_by)
        VALUES (TRUE, $1, $2, $3) RETURNING id`, name, avatar, creatorID); err != nil {
		return models.Conversation{}, err
	}

	members := append([]int64{creatorID}, memberIDs...)
	if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
        SELECT $1, m, m = $2 FROM unnest($3::bigint[]) AS m
        ON CONFLICT DO NOTHING`, id, creatorID, pq.Array(members)); err != nil {
		return models.Conversation{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return r.GetConversation(ctx, id)
}

// GetConversation fetches a conversation with participants, admins and last message populated.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	convs := []models.Conversation{conv}
	if err := r.populate(ctx, convs, 0); err != nil {
		return models.Conversation{}, err
	}
	return convs[0], nil
}

// ListForUser returns the user's conversations, most recently active first,
// each carrying the user's own unread counter.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations c
        INNER JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $1
        ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if err := r.populate(ctx, convs, userID); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListIDsForUser returns the ids of every conversation the user participates in.
func (r *ConversationRepo) ListIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT conversation_id FROM conversation_participants WHERE user_id=$1`, userID)
	return ids, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// SetLastMessage points the conversation at messageID and bumps updated_at.
// Concurrent senders resolve last-write-wins.
func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2, updated_at=NOW() WHERE id=$1`, conversationID, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ReassignLastMessage moves the last-message pointer off a deleted message to
// the newest surviving one, or clears it. It reports whether the pointer moved.
func (r *ConversationRepo) ReassignLastMessage(ctx context.Context, conversationID, deletedMessageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id = (
            SELECT m.id FROM messages m
            WHERE m.conversation_id = $1 AND m.is_deleted = FALSE
            ORDER BY m.created_at DESC, m.id DESC LIMIT 1
        ), updated_at = NOW()
        WHERE id=$1 AND last_message_id=$2`, conversationID, deletedMessageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IncrementUnread bumps the unread counter of every participant except one.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID, exceptUserID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET unread_count = unread_count + 1
        WHERE conversation_id=$1 AND user_id <> $2`, conversationID, exceptUserID)
	return err
}

// ResetUnread zeroes the user's unread counter for the conversation.
func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET unread_count = 0
        WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	return err
}

// AddParticipants set-adds members and returns the ids that were not already present.
func (r *ConversationRepo) AddParticipants(ctx context.Context, conversationID int64, userIDs []int64) ([]int64, error) {
	added := []int64{}
	err := r.db.SelectContext(ctx, &added, `INSERT INTO conversation_participants (conversation_id, user_id)
        SELECT $1, u FROM unnest($2::bigint[]) AS u
        ON CONFLICT DO NOTHING RETURNING user_id`, conversationID, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		_, err = r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID)
	}
	return added, err
}

// RemoveParticipant deletes a membership unless it would leave the group without an admin.
func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversation_participants
        WHERE conversation_id=$1 AND user_id=$2
        AND (NOT is_admin OR EXISTS (
            SELECT 1 FROM conversation_participants
            WHERE conversation_id=$1 AND is_admin AND user_id <> $2
        ))`, conversationID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID)
		return err
	}

	member, err := r.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrSoleAdmin
	}
	return ErrNotParticipant
}

// UpdateGroup changes the group name and avatar; nil leaves a field unchanged.
func (r *ConversationRepo) UpdateGroup(ctx context.Context, conversationID int64, name, avatar *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET
        name = COALESCE($2, name),
        group_avatar = COALESCE($3, group_avatar),
        updated_at = NOW()
        WHERE id=$1 AND is_group`, conversationID, name, avatar)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

type participantRow struct {
	ConversationID int64 `db:"conversation_id"`
	IsAdmin        bool  `db:"is_admin"`
	UnreadCount    int   `db:"unread_count"`
	models.UserSummary
}

// populate resolves participants, admins and last messages in three queries.
// When viewerID is set, each conversation carries that user's unread counter.
func (r *ConversationRepo) populate(ctx context.Context, convs []models.Conversation, viewerID int64) error {
	if len(convs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(convs))
	var lastIDs []int64
	for _, c := range convs {
		ids = append(ids, c.ID)
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	var rows []participantRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT cp.conversation_id, cp.is_admin, cp.unread_count,
        u.id, u.display_name, u.email, u.avatar, u.status, u.last_seen
        FROM conversation_participants cp INNER JOIN users u ON u.id = cp.user_id
        WHERE cp.conversation_id = ANY($1)
        ORDER BY cp.joined_at, u.id`, pq.Array(ids)); err != nil {
		return err
	}

	byConv := make(map[int64]int, len(convs))
	for i := range convs {
		convs[i].Participants = []models.UserSummary{}
		convs[i].Admins = []int64{}
		byConv[convs[i].ID] = i
	}
	for _, row := range rows {
		i := byConv[row.ConversationID]
		convs[i].Participants = append(convs[i].Participants, row.UserSummary)
		if row.IsAdmin {
			convs[i].Admins = append(convs[i].Admins, row.ID)
		}
		if viewerID != 0 && row.ID == viewerID {
			convs[i].UnreadCount = row.UnreadCount
		}
	}

	if len(lastIDs) == 0 {
		return nil
	}
	last, err := selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(lastIDs))
	if err != nil {
		return err
	}
	if err := attachSenders(ctx, r.db, last); err != nil {
		return err
	}
	byID := make(map[int64]*models.Message, len(last))
	for i := range last {
		byID[last[i].ID] = &last[i]
	}
	for i := range convs {
		if convs[i].LastMessageID != nil {
			convs[i].LastMessage = byID[*convs[i].LastMessageID]
		}
	}
	return nil
}
