package presence

import (
	"sync"
	"time"
)

type typingKey struct {
	conversationID int
	userID         int
}

// TypingTracker holds the live typing set. A signal expires on its own after
// the TTL so a client that disconnects mid-type never leaves a stuck
// indicator. Expiry is a per-signal timer, not a global sweep.
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	timers  map[typingKey]*time.Timer
	expired func(conversationID, userID int)
}

// NewTypingTracker builds a tracker. expired is invoked (on the timer
// goroutine) when a signal times out without an explicit stop.
func NewTypingTracker(ttl time.Duration, expired func(conversationID, userID int)) *TypingTracker {
	return &TypingTracker{
		ttl:     ttl,
		timers:  make(map[typingKey]*time.Timer),
		expired: expired,
	}
}

// Start records a typing signal. Returns true when the user was not already
// typing in the conversation; a repeated start only extends the expiry.
func (t *TypingTracker) Start(conversationID, userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{conversationID, userID}
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.ttl)
		return false
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.expire(key)
	})
	return true
}

// Stop clears a typing signal. Returns true when the user was typing.
func (t *TypingTracker) Stop(conversationID, userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{conversationID, userID}
	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, key)
	return true
}

// StopAllForUser clears every typing signal of a user, returning the
// conversations that had one. Used on disconnect.
func (t *TypingTracker) StopAllForUser(userID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var conversations []int
	for key, timer := range t.timers {
		if key.userID != userID {
			continue
		}
		timer.Stop()
		delete(t.timers, key)
		conversations = append(conversations, key.conversationID)
	}
	return conversations
}

// TypingIn returns the users currently typing in a conversation.
func (t *TypingTracker) TypingIn(conversationID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var users []int
	for key := range t.timers {
		if key.conversationID == conversationID {
			users = append(users, key.userID)
		}
	}
	return users
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok && t.expired != nil {
		t.expired(key.conversationID, key.userID)
	}
}
