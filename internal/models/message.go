package models

import (
	"database/sql"
	"time"
)

// MessageType discriminates message payloads.
type MessageType string

const (
	MessageText          MessageType = "text"
	MessageImage         MessageType = "image"
	MessageSharedListing MessageType = "shared_listing"
	MessageCallEvent     MessageType = "call_event"
	MessageSystem        MessageType = "system"
)

// MessageStatus is the delivery lifecycle state. Transitions move only
// forward: sent -> delivered -> read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a single message within a conversation.
type Message struct {
	ID             int64          `db:"id" json:"id"`
	ConversationID int64          `db:"conversation_id" json:"conversation_id"`
	SenderID       int64          `db:"sender_id" json:"sender_id"`
	ReceiverID     int64          `db:"receiver_id" json:"receiver_id"`
	ListingID      sql.NullInt64  `db:"listing_id" json:"listing_id,omitempty"`
	Type           MessageType    `db:"type" json:"type"`
	Content        string         `db:"content" json:"content"`
	ImageURL       sql.NullString `db:"image_url" json:"image_url,omitempty"`
	ReplyToID      sql.NullInt64  `db:"reply_to_id" json:"reply_to_id,omitempty"`
	ReplyPreview   sql.NullString `db:"reply_preview" json:"reply_preview,omitempty"`
	Status         MessageStatus  `db:"status" json:"status"`
	DeliveredAt    sql.NullTime   `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt         sql.NullTime   `db:"read_at" json:"read_at,omitempty"`
	Deleted        bool           `db:"deleted" json:"deleted"`
	DeletedAt      sql.NullTime   `db:"deleted_at" json:"deleted_at,omitempty"`
	Edited         bool           `db:"edited" json:"edited"`
	EditedAt       sql.NullTime   `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
