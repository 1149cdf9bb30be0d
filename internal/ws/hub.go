package ws

import (
	"log"
	"sync"

	"messaging-service/internal/observability"
)

// Hub multiplexes connections into conversation rooms and fans events out.
// Room membership is the unit of delivery: a broadcast reaches exactly the
// clients currently joined to that room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[int]map[*Client]bool
	joined  map[*Client]map[int]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[int]map[*Client]bool),
		joined:  make(map[*Client]map[int]bool),
	}
}

// Add registers a connected client with the hub.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Remove drops a client from the hub and from every room it joined.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
	for conversationID := range h.joined[client] {
		h.leaveLocked(client, conversationID)
	}
	delete(h.joined, client)
}

// Join subscribes a client to a conversation room. Idempotent.
func (h *Hub) Join(client *Client, conversationID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][client] = true
	if _, ok := h.joined[client]; !ok {
		h.joined[client] = make(map[int]bool)
	}
	h.joined[client][conversationID] = true
}

// Leave unsubscribes a client from a room. Leaving a room not joined is a
// no-op.
func (h *Hub) Leave(client *Client, conversationID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, conversationID)
	if joined, ok := h.joined[client]; ok {
		delete(joined, conversationID)
	}
}

func (h *Hub) leaveLocked(client *Client, conversationID int) {
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// Broadcast sends an event to every client in the room.
func (h *Hub) Broadcast(conversationID int, event string, payload any) {
	h.BroadcastExcept(conversationID, event, payload, nil)
}

// BroadcastExcept sends an event to every client in the room except one.
func (h *Hub) BroadcastExcept(conversationID int, event string, payload any, except *Client) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[conversationID]))
	for client := range h.rooms[conversationID] {
		if client != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, frame, event)
	}
}

// BroadcastAll sends an event to every connected client, joined to a room or
// not. Used for presence fan-out.
func (h *Hub) BroadcastAll(event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, frame, event)
	}
}

// Send delivers an event to a single client only.
func (h *Hub) Send(client *Client, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}
	h.deliver(client, frame, event)
}

// RoomSize reports how many clients are joined to a room.
func (h *Hub) RoomSize(conversationID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) deliver(client *Client, frame []byte, event string) {
	if client.Enqueue(frame) {
		observability.IncWSEvent(event)
		return
	}
	// Buffer full or connection closed: the client is not keeping up.
	log.Printf("dropping slow websocket client user=%d conn=%s", client.UserID, client.Info.ConnID)
	client.Close()
	h.Remove(client)
}
