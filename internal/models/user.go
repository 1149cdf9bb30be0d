package models

import "time"

// PresenceStatus is a user's availability state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether the status is a known presence state.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// User carries the slice of the external user record the core mutates:
// presence status and last-seen timestamp.
type User struct {
	ID       int            `db:"id" json:"id"`
	Username string         `db:"username" json:"username"`
	Status   PresenceStatus `db:"status" json:"status"`
	LastSeen *time.Time     `db:"last_seen" json:"last_seen,omitempty"`
}
