package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// UserRepository covers the slice of the user record the core mutates.
type UserRepository interface {
	UpdatePresence(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error
	GetPresence(ctx context.Context, userID int) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// UpdatePresence stamps the user's status and last-seen timestamp. The row is
// created on first sight since user CRUD lives outside this service.
func (r *UserRepo) UpdatePresence(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, status, last_seen) VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, last_seen = EXCLUDED.last_seen`,
		userID, status, lastSeen)
	return err
}

// GetPresence returns the persisted presence for a user, defaulting to
// offline for users this service has never seen.
func (r *UserRepo) GetPresence(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, status, last_seen FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{ID: userID, Status: models.PresenceOffline}, nil
	}
	return user, err
}
