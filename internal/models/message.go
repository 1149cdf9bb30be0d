package models

import "time"

// MessageStatus is the delivery state of a message. Transitions only move
// forward: sending < sent < delivered < seen.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// Rank returns the position of the status in the delivery progression, or -1
// for an unknown status.
func (s MessageStatus) Rank() int {
	rank, ok := statusRank[s]
	if !ok {
		return -1
	}
	return rank
}

// CanAdvanceTo reports whether moving to the target status is a forward
// transition.
func (s MessageStatus) CanAdvanceTo(target MessageStatus) bool {
	from, to := s.Rank(), target.Rank()
	return from >= 0 && to >= 0 && to > from
}

// MessageKind classifies the content payload.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindAudio MessageKind = "audio"
	KindFile  MessageKind = "file"
)

// Valid reports whether the kind is one of the supported content kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindFile:
		return true
	}
	return false
}

// Message represents a persisted conversation message.
type Message struct {
	ID             int           `db:"id" json:"id"`
	ConversationID int           `db:"conversation_id" json:"conversation_id"`
	SenderID       int           `db:"sender_id" json:"sender_id"`
	Content        string        `db:"content" json:"content"`
	Kind           MessageKind   `db:"kind" json:"kind"`
	ReplyToID      *int          `db:"reply_to_id" json:"reply_to_id,omitempty"`
	FileURL        *string       `db:"file_url" json:"file_url,omitempty"`
	FileName       *string       `db:"file_name" json:"file_name,omitempty"`
	FileSize       *int64        `db:"file_size" json:"file_size,omitempty"`
	Status         MessageStatus `db:"status" json:"status"`
	SentAt         *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt    *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	SeenAt         *time.Time    `db:"seen_at" json:"seen_at,omitempty"`
	IsEdited       bool          `db:"is_edited" json:"is_edited"`
	DeletedForAll  bool          `db:"deleted_for_all" json:"deleted_for_all"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Reaction is one (user, emoji) entry on a message. The pair is unique;
// re-submitting toggles it off.
type Reaction struct {
	MessageID int    `db:"message_id" json:"message_id"`
	UserID    int    `db:"user_id" json:"user_id"`
	Emoji     string `db:"emoji" json:"emoji"`
}

// ReadReceipt records that a recipient marked the message read.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// DeliveryReceipt records that a recipient's connection acknowledged receipt.
type DeliveryReceipt struct {
	MessageID   int       `db:"message_id" json:"message_id"`
	UserID      int       `db:"user_id" json:"user_id"`
	DeliveredAt time.Time `db:"delivered_at" json:"delivered_at"`
}

// EditSnapshot stores the content a message had before an edit.
type EditSnapshot struct {
	MessageID int       `db:"message_id" json:"message_id"`
	Content   string    `db:"content" json:"content"`
	EditedAt  time.Time `db:"edited_at" json:"edited_at"`
}

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"
