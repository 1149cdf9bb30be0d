package models

import (
	"encoding/json"
	"time"
)

// Socket event names. Inbound events are emitted by clients, outbound events
// by the server. Field names on payloads follow the wire protocol
// (camelCase), independent of the snake_case REST representation.
const (
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
	EventMessageSend       = "message:send"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageReact      = "message:react"
	EventMessageRead       = "message:read"
	EventMessageEdit       = "message:edit"
	EventMessageDelete     = "message:delete"
	EventStatusUpdate      = "status:update"

	EventMessageNew       = "message:new"
	EventMessageSent      = "message:sent"
	EventMessageDelivered = "message:delivered"
	EventMessageReadAck   = "message:read"
	EventMessageSeen      = "message:seen"
	EventMessageReaction  = "message:reaction"
	EventMessageEdited    = "message:edited"
	EventMessageDeleted   = "message:deleted"
	EventTypingUser       = "typing:user"
	EventUserStatus       = "user:status"
	EventMessageError     = "message:error"
)

// Delete scopes for message:delete.
const (
	DeleteScopeMine     = "mine"
	DeleteScopeEveryone = "everyone"
)

// Error codes carried on message:error.
const (
	ErrCodeValidation   = "validation"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInternal     = "internal"
)

// Envelope frames every socket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendMessagePayload is the message:send request.
type SendMessagePayload struct {
	ConversationID int         `json:"conversationId"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"type"`
	ReplyTo        *int        `json:"replyTo,omitempty"`
	TempID         string      `json:"tempId,omitempty"`
	FileURL        *string     `json:"fileUrl,omitempty"`
	FileName       *string     `json:"fileName,omitempty"`
	FileSize       *int64      `json:"fileSize,omitempty"`
}

// ConversationRefPayload carries a bare conversation reference
// (join:conversation, leave:conversation, typing:start, typing:stop).
type ConversationRefPayload struct {
	ConversationID int `json:"conversationId"`
}

// ReactPayload is the message:react request.
type ReactPayload struct {
	MessageID int    `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// ReadPayload is the message:read request.
type ReadPayload struct {
	MessageID      int `json:"messageId"`
	ConversationID int `json:"conversationId"`
}

// EditPayload is the message:edit request.
type EditPayload struct {
	MessageID  int    `json:"messageId"`
	NewContent string `json:"newContent"`
}

// DeletePayload is the message:delete request.
type DeletePayload struct {
	MessageID int    `json:"messageId"`
	Scope     string `json:"scope"`
}

// StatusUpdatePayload is the status:update request.
type StatusUpdatePayload struct {
	Status PresenceStatus `json:"status"`
}

// NewMessagePayload is broadcast to the room on message creation. TempID lets
// every client reconcile an optimistic local copy with the stored record.
type NewMessagePayload struct {
	Message Message `json:"message"`
	TempID  string  `json:"tempId,omitempty"`
}

// SentPayload acknowledges creation to the sender only.
type SentPayload struct {
	TempID  string  `json:"tempId,omitempty"`
	Message Message `json:"message"`
}

// DeliveredPayload announces the sent -> delivered promotion.
type DeliveredPayload struct {
	MessageID   int       `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// ReadReceiptPayload announces a new read receipt.
type ReadReceiptPayload struct {
	MessageID int       `json:"messageId"`
	UserID    int       `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

// SeenPayload announces the promotion to seen.
type SeenPayload struct {
	MessageID int       `json:"messageId"`
	SeenAt    time.Time `json:"seenAt"`
}

// ReactionPayload announces a reaction toggle; Action is "add" or "remove".
type ReactionPayload struct {
	MessageID int    `json:"messageId"`
	UserID    int    `json:"userId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"`
}

// EditedPayload announces an in-place content edit.
type EditedPayload struct {
	MessageID  int       `json:"messageId"`
	NewContent string    `json:"newContent"`
	EditedAt   time.Time `json:"editedAt"`
}

// DeletedPayload announces a deletion. Scope "mine" goes only to the
// requester; scope "everyone" is broadcast to the room.
type DeletedPayload struct {
	MessageID int    `json:"messageId"`
	Scope     string `json:"scope"`
}

// TypingPayload announces a typing signal change in a room.
type TypingPayload struct {
	ConversationID int  `json:"conversationId"`
	UserID         int  `json:"userId"`
	IsTyping       bool `json:"isTyping"`
}

// UserStatusPayload announces a presence transition.
type UserStatusPayload struct {
	UserID   int            `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// ErrorPayload is sent to the originating connection only, never broadcast.
type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
