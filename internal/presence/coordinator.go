package presence

import (
	"context"
	"errors"
	"log"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ErrInvalidStatus rejects unknown presence states from status:update.
var ErrInvalidStatus = errors.New("invalid presence status")

// Broadcaster fans a presence event out to connected clients.
type Broadcaster interface {
	BroadcastAll(event string, payload any)
}

// Coordinator drives presence transitions: connect -> online, explicit
// status:update -> requested state, disconnect -> offline. Every transition
// stamps lastSeen, persists, refreshes the cache and broadcasts user:status.
type Coordinator struct {
	users       repositories.UserRepository
	cache       *StatusCache
	broadcaster Broadcaster
}

// NewCoordinator constructs a Coordinator. cache may be nil.
func NewCoordinator(users repositories.UserRepository, cache *StatusCache, broadcaster Broadcaster) *Coordinator {
	return &Coordinator{users: users, cache: cache, broadcaster: broadcaster}
}

// HandleConnect marks a user online after a successful handshake.
func (c *Coordinator) HandleConnect(ctx context.Context, userID int) {
	c.transition(ctx, userID, models.PresenceOnline)
}

// HandleDisconnect marks a user offline on transport disconnect.
func (c *Coordinator) HandleDisconnect(ctx context.Context, userID int) {
	c.transition(ctx, userID, models.PresenceOffline)
}

// SetStatus applies an explicit status:update.
func (c *Coordinator) SetStatus(ctx context.Context, userID int, status models.PresenceStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	c.transition(ctx, userID, status)
	return nil
}

// Status returns the current presence of a user, preferring the cache.
func (c *Coordinator) Status(ctx context.Context, userID int) (models.PresenceStatus, time.Time, error) {
	if status, lastSeen, ok, err := c.cache.Get(ctx, userID); err == nil && ok {
		return status, lastSeen, nil
	} else if err != nil {
		log.Printf("presence cache read failed for user %d: %v", userID, err)
	}

	user, err := c.users.GetPresence(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	var lastSeen time.Time
	if user.LastSeen != nil {
		lastSeen = *user.LastSeen
	}
	return user.Status, lastSeen, nil
}

func (c *Coordinator) transition(ctx context.Context, userID int, status models.PresenceStatus) {
	now := time.Now().UTC()

	if err := c.users.UpdatePresence(ctx, userID, status, now); err != nil {
		log.Printf("persist presence for user %d failed: %v", userID, err)
	}
	if err := c.cache.Set(ctx, userID, status, now); err != nil {
		log.Printf("cache presence for user %d failed: %v", userID, err)
	}

	if c.broadcaster != nil {
		c.broadcaster.BroadcastAll(models.EventUserStatus, models.UserStatusPayload{
			UserID:   userID,
			Status:   status,
			LastSeen: now,
		})
	}
}
