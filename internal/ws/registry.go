package ws

import "sync"

// Registry maps a user identity to their live connection. The mapping is
// last-writer-wins: a second connection from the same user supersedes the
// first. Entries are keyed per user, so concurrent connect/disconnect for
// different users never contend.
type Registry struct {
	conns sync.Map // userID -> *Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores the client for the user and returns the superseded
// connection, if any. Call only after the authentication handshake succeeds.
func (r *Registry) Register(userID int, client *Client) *Client {
	prev, loaded := r.conns.Swap(userID, client)
	if !loaded {
		return nil
	}
	return prev.(*Client)
}

// Unregister removes the mapping, but only when it still points at the given
// client; a superseded connection must not evict its successor.
func (r *Registry) Unregister(userID int, client *Client) bool {
	return r.conns.CompareAndDelete(userID, client)
}

// Lookup returns the live connection for a user.
func (r *Registry) Lookup(userID int) (*Client, bool) {
	val, ok := r.conns.Load(userID)
	if !ok {
		return nil, false
	}
	return val.(*Client), true
}
