package models

import "time"

// ConversationKind distinguishes one-to-one chats from groups.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation groups an ordered set of participants. The last-message
// pointer always references the most recently persisted message.
type Conversation struct {
	ID            int              `db:"id" json:"id"`
	Kind          ConversationKind `db:"kind" json:"kind"`
	Name          *string          `db:"name" json:"name,omitempty"`
	Avatar        *string          `db:"avatar" json:"avatar,omitempty"`
	CreatedBy     int              `db:"created_by" json:"created_by"`
	LastMessageID *int             `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time       `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// ConversationSummary is the API view of a conversation for one user.
type ConversationSummary struct {
	Conversation
	Participants []int `json:"participants"`
}
