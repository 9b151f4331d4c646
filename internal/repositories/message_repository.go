package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// MessageRepository defines interactions for conversation messages, their
// read receipts and reactions.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int64, cursor *models.HistoryCursor, limit int) ([]models.Message, error)
	AddReader(ctx context.Context, messageID, userID int64) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int64) ([]int64, error)
	SoftDelete(ctx context.Context, messageID int64) (bool, error)
	EditContent(ctx context.Context, messageID int64, content string) error
	SetReaction(ctx context.Context, messageID, userID int64, reaction string) error
	RemoveReaction(ctx context.Context, messageID, userID int64) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, attachments, reply_to_id, is_deleted, is_edited, deleted_at, created_at, updated_at`

// CreateMessage stores a message and records the sender as its first reader
// in the same transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (created models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if msg.Attachments == nil {
		msg.Attachments = models.Attachments{}
	}
	if err = tx.GetContext(ctx, &created, `INSERT INTO messages (conversation_id, sender_id, content, attachments, reply_to_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ConversationID, msg.SenderID, msg.Content, msg.Attachments, msg.ReplyToID); err != nil {
		return models.Message{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`, created.ID, created.SenderID); err != nil {
		return models.Message{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	created.ReadBy = []int64{created.SenderID}
	return created, nil
}

// GetMessage retrieves a single message with readers, reactions, sender and reply populated.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	msgs, err := selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if len(msgs) == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	if err := r.populate(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// ListMessages returns up to limit messages ordered before the cursor, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int64, cursor *models.HistoryCursor, limit int) ([]models.Message, error) {
	var (
		msgs []models.Message
		err  error
	)
	switch {
	case cursor != nil && cursor.BeforeID > 0:
		msgs, err = selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages
            WHERE conversation_id=$1 AND (created_at, id) < ($2, $3)
            ORDER BY created_at DESC, id DESC LIMIT $4`, conversationID, cursor.Before, cursor.BeforeID, limit)
	case cursor != nil:
		msgs, err = selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages
            WHERE conversation_id=$1 AND created_at < $2
            ORDER BY created_at DESC, id DESC LIMIT $3`, conversationID, cursor.Before, limit)
	default:
		msgs, err = selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages
            WHERE conversation_id=$1
            ORDER BY created_at DESC, id DESC LIMIT $2`, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if err := r.populate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// AddReader set-adds the user to the message's readers and reports whether
// the user was newly added.
func (r *MessageRepo) AddReader(ctx context.Context, messageID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, messageID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkConversationRead marks every message of the conversation not sent by
// the user as read and returns the ids that were newly marked. Messages
// inserted after the statement's snapshot are left for the next call.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, userID int64) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $2 FROM messages m
        WHERE m.conversation_id=$1 AND m.sender_id <> $2
        ON CONFLICT DO NOTHING RETURNING message_id`, conversationID, userID)
	return ids, err
}

// SoftDelete flags the message deleted and drops its payload. It reports
// false if the message was already deleted.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted=TRUE, deleted_at=NOW(), updated_at=NOW(),
        content=NULL, attachments='[]'::jsonb
        WHERE id=$1 AND NOT is_deleted`, messageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// EditContent replaces the text of a live message.
func (r *MessageRepo) EditContent(ctx context.Context, messageID int64, content string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET content=$2, is_edited=TRUE, updated_at=NOW()
        WHERE id=$1 AND NOT is_deleted`, messageID, content)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SetReaction records the user's reaction, replacing any earlier one.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID, userID int64, reaction string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, type) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET type = EXCLUDED.type, created_at = NOW()`, messageID, userID, reaction)
	return err
}

// RemoveReaction deletes the user's reaction and reports whether one existed.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type readRow struct {
	MessageID int64 `db:"message_id"`
	UserID    int64 `db:"user_id"`
}

func (r *MessageRepo) populate(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(msgs))
	index := make(map[int64]int, len(msgs))
	var replyIDs []int64
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		index[msgs[i].ID] = i
		msgs[i].ReadBy = []int64{}
		msgs[i].Reactions = []models.Reaction{}
		if msgs[i].ReplyToID != nil {
			replyIDs = append(replyIDs, *msgs[i].ReplyToID)
		}
	}

	var reads []readRow
	if err := r.db.SelectContext(ctx, &reads, `SELECT message_id, user_id FROM message_reads
        WHERE message_id = ANY($1) ORDER BY read_at, user_id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, rd := range reads {
		i := index[rd.MessageID]
		msgs[i].ReadBy = append(msgs[i].ReadBy, rd.UserID)
	}

	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, user_id, type, created_at FROM message_reactions
        WHERE message_id = ANY($1) ORDER BY created_at`, pq.Array(ids)); err != nil {
		return err
	}
	for _, re := range reactions {
		i := index[re.MessageID]
		msgs[i].Reactions = append(msgs[i].Reactions, re)
	}

	if err := attachSenders(ctx, r.db, msgs); err != nil {
		return err
	}

	if len(replyIDs) == 0 {
		return nil
	}
	replies, err := selectMessages(ctx, r.db, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(replyIDs))
	if err != nil {
		return err
	}
	if err := attachSenders(ctx, r.db, replies); err != nil {
		return err
	}
	byID := make(map[int64]*models.Message, len(replies))
	for i := range replies {
		byID[replies[i].ID] = &replies[i]
	}
	for i := range msgs {
		if msgs[i].ReplyToID != nil {
			msgs[i].ReplyTo = byID[*msgs[i].ReplyToID]
		}
	}
	return nil
}

func selectMessages(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]models.Message, error) {
	msgs := []models.Message{}
	if err := sqlx.SelectContext(ctx, q, &msgs, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return msgs, nil
		}
		return nil, err
	}
	return msgs, nil
}

// attachSenders resolves the sender summary of each message.
func attachSenders(ctx context.Context, q sqlx.QueryerContext, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(msgs))
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	var senders []models.UserSummary
	if err := sqlx.SelectContext(ctx, q, &senders, `SELECT `+summaryColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return err
	}
	byID := make(map[int64]models.UserSummary, len(senders))
	for _, s := range senders {
		byID[s.ID] = s
	}
	for i := range msgs {
		if s, ok := byID[msgs[i].SenderID]; ok {
			sender := s
			sender.Email = ""
			msgs[i].Sender = &sender
		}
	}
	return nil
}
