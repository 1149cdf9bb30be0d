package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may do this")
)

// CreateMessageParams carries the inputs for message creation.
type CreateMessageParams struct {
	ConversationID int
	SenderID       int
	Content        string
	Kind           models.MessageKind
	ReplyTo        *int
	FileURL        *string
	FileName       *string
	FileSize       *int64
}

// ReadResult reports the outcome of a read-receipt attempt.
type ReadResult struct {
	Added    bool
	ReadAt   time.Time
	Promoted bool
	SeenAt   time.Time
}

// MessageRepository defines the message lifecycle operations. Status
// transitions are guarded in SQL so a later status is never overwritten by an
// earlier one.
type MessageRepository interface {
	Create(ctx context.Context, p CreateMessageParams) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListForUser(ctx context.Context, conversationID, userID, limit int, before *time.Time) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID, recipientID int) (bool, time.Time, error)
	MarkRead(ctx context.Context, messageID, readerID int) (ReadResult, error)
	ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (string, error)
	Edit(ctx context.Context, messageID, editorID int, newContent string) (models.Message, error)
	DeleteForAll(ctx context.Context, messageID, requesterID int) error
	HideForUser(ctx context.Context, messageID, userID int) error
	EditHistory(ctx context.Context, messageID int) ([]models.EditSnapshot, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, kind, reply_to_id,
    file_url, file_name, file_size, status, sent_at, delivered_at, seen_at,
    is_edited, deleted_for_all, deleted_at, created_at`

// Create persists a message with status sent and stamps sent_at.
func (r *MessageRepo) Create(ctx context.Context, p CreateMessageParams) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, kind, reply_to_id, file_url, file_name, file_size, status, sent_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'sent', NOW())
         RETURNING `+messageColumns,
		p.ConversationID, p.SenderID, p.Content, p.Kind, p.ReplyTo, p.FileURL, p.FileName, p.FileSize).
		StructScan(&msg)
	return msg, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForUser returns up to limit messages of a conversation visible to the
// user, newest first, optionally older than the before cursor. Tombstoned
// messages stay in the list (their content is the placeholder); messages on
// the user's hide-list are filtered out.
func (r *MessageRepo) ListForUser(ctx context.Context, conversationID, userID, limit int, before *time.Time) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
        WHERE m.conversation_id=$1
        AND NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id=m.id AND h.user_id=$2)
        AND ($3::timestamptz IS NULL OR m.created_at < $3)
        ORDER BY m.created_at DESC
        LIMIT $4`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, userID, before, limit)
	return msgs, err
}

// MarkDelivered records a delivery receipt for the recipient and promotes the
// message from sent to delivered. The promotion is guarded so a seen message
// never regresses; the receipt insert is idempotent.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID, recipientID int) (bool, time.Time, error) {
	if err := r.mustExist(ctx, messageID); err != nil {
		return false, time.Time{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO message_deliveries (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, recipientID); err != nil {
		return false, time.Time{}, err
	}

	var deliveredAt time.Time
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET status='delivered', delivered_at=NOW()
         WHERE id=$1 AND status='sent'
         RETURNING delivered_at`,
		messageID).Scan(&deliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, deliveredAt, nil
}

// MarkRead appends a read receipt and promotes the message to seen. Both
// steps are idempotent: a repeated call by the same reader adds nothing and
// promotes nothing.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, readerID int) (ReadResult, error) {
	if err := r.mustExist(ctx, messageID); err != nil {
		return ReadResult{}, err
	}

	var res ReadResult
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO NOTHING
         RETURNING read_at`,
		messageID, readerID).Scan(&res.ReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ReadResult{}, nil
	}
	if err != nil {
		return ReadResult{}, err
	}
	res.Added = true

	err = r.db.QueryRowxContext(ctx,
		`UPDATE messages SET status='seen', seen_at=NOW()
         WHERE id=$1 AND status IN ('sent', 'delivered')
         RETURNING seen_at`,
		messageID).Scan(&res.SeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return ReadResult{}, err
	}
	res.Promoted = true
	return res, nil
}

// ToggleReaction removes the (user, emoji) pair if present, otherwise adds
// it. Returns "add" or "remove".
func (r *MessageRepo) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (string, error) {
	if err := r.mustExist(ctx, messageID); err != nil {
		return "", err
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return "", err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if removed > 0 {
		return "remove", nil
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, userID, emoji)
	if err != nil {
		return "", err
	}
	return "add", nil
}

// Edit replaces the content, snapshotting the previous content into the edit
// history. Only the sender may edit; a tombstoned message cannot be edited.
func (r *MessageRepo) Edit(ctx context.Context, messageID, editorID int, newContent string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != editorID {
		return models.Message{}, ErrNotSender
	}
	if msg.DeletedForAll {
		return models.Message{}, ErrMessageNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_edits (message_id, content) VALUES ($1, $2)`,
		messageID, msg.Content); err != nil {
		return models.Message{}, err
	}

	err = tx.QueryRowxContext(ctx,
		`UPDATE messages SET content=$2, is_edited=TRUE WHERE id=$1 RETURNING `+messageColumns,
		messageID, newContent).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// DeleteForAll tombstones a message: content replaced with a placeholder,
// visible to every participant. Sender only.
func (r *MessageRepo) DeleteForAll(ctx context.Context, messageID, requesterID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET deleted_for_all=TRUE, deleted_at=NOW(), content=$3
         WHERE id=$1 AND sender_id=$2`,
		messageID, requesterID, models.DeletedPlaceholder)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		if err := r.mustExist(ctx, messageID); err != nil {
			return err
		}
		return ErrNotSender
	}
	return nil
}

// HideForUser appends the user to the message's hide-list. Content is
// untouched; other participants' views are unaffected.
func (r *MessageRepo) HideForUser(ctx context.Context, messageID, userID int) error {
	if err := r.mustExist(ctx, messageID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_hidden (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID)
	return err
}

// EditHistory returns prior content snapshots, oldest first.
func (r *MessageRepo) EditHistory(ctx context.Context, messageID int) ([]models.EditSnapshot, error) {
	var history []models.EditSnapshot
	err := r.db.SelectContext(ctx, &history,
		`SELECT message_id, content, edited_at FROM message_edits WHERE message_id=$1 ORDER BY edited_at ASC`,
		messageID)
	return history, err
}

func (r *MessageRepo) mustExist(ctx context.Context, messageID int) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}
	return nil
}
