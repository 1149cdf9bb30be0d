package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetDirect(ctx context.Context, userID, otherID int) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID int, name string, avatar *string, memberIDs []int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	Participants(ctx context.Context, conversationID int) ([]int, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID int, at time.Time) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, kind, name, avatar, created_by, last_message_id, last_message_at, created_at`

const conversationColumnsPrefixed = `c.id, c.kind, c.name, c.avatar, c.created_by, c.last_message_id, c.last_message_at, c.created_at`

// CreateOrGetDirect returns the direct conversation between two users,
// creating it if absent.
func (r *ConversationRepo) CreateOrGetDirect(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, errors.New("cannot start a conversation with yourself")
	}
	pair := []int{userID, otherID}
	sort.Ints(pair)

	var conv models.Conversation
	query := `SELECT ` + conversationColumnsPrefixed + `
        FROM conversations c
        JOIN conversation_participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
        JOIN conversation_participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
        WHERE c.kind = 'direct'`
	err := r.db.GetContext(ctx, &conv, query, pair[0], pair[1])
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, created_by) VALUES ('direct', $1) RETURNING `+conversationColumns,
		userID).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}
	for _, id := range pair {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation with the creator as admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, name string, avatar *string, memberIDs []int) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, name, avatar, created_by) VALUES ('group', $1, $2, $3) RETURNING `+conversationColumns,
		name, avatar, creatorID).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, TRUE)`,
		conv.ID, creatorID); err != nil {
		return models.Conversation{}, err
	}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// Participants returns the participant ids of a conversation.
func (r *ConversationRepo) Participants(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`,
		conversationID)
	return ids, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	query := `SELECT ` + conversationColumnsPrefixed + `
        FROM conversations c
        JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id = $1
        ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}

// SetLastMessage advances the conversation's last-message pointer.
func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_id=$2, last_message_at=$3 WHERE id=$1`,
		conversationID, messageID, at)
	return err
}
