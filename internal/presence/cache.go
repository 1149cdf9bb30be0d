package presence

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

const statusKeyPrefix = "presence:"

type cachedStatus struct {
	Status   models.PresenceStatus `json:"status"`
	LastSeen time.Time             `json:"last_seen"`
}

// StatusCache keeps a short-lived copy of user presence in redis so presence
// reads stay off the database. A nil cache is a no-op; the durable store is
// the source of truth either way.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusCache builds a cache over the given redis client.
func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Set stores the status under the user's presence key.
func (c *StatusCache) Set(ctx context.Context, userID int, status models.PresenceStatus, lastSeen time.Time) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(cachedStatus{Status: status, LastSeen: lastSeen})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, statusKey(userID), data, c.ttl).Err()
}

// Get returns the cached status. The second result is false on a miss.
func (c *StatusCache) Get(ctx context.Context, userID int) (models.PresenceStatus, time.Time, bool, error) {
	if c == nil || c.rdb == nil {
		return "", time.Time{}, false, nil
	}
	val, err := c.rdb.Get(ctx, statusKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	var cached cachedStatus
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return "", time.Time{}, false, err
	}
	return cached.Status, cached.LastSeen, true, nil
}

func statusKey(userID int) string {
	return statusKeyPrefix + strconv.Itoa(userID)
}
