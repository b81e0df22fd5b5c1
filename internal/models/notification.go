package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NotificationType is the fixed enumeration of notification categories.
type NotificationType string

const (
	NotifNewMessage    NotificationType = "new_message"
	NotifNewInquiry    NotificationType = "new_inquiry"
	NotifNewOffer      NotificationType = "new_offer"
	NotifOfferAccepted NotificationType = "offer_accepted"
	NotifListingLiked  NotificationType = "listing_liked"
	NotifListingViewed NotificationType = "listing_viewed"
	NotifProductUpdate NotificationType = "product_update"
	NotifSystem        NotificationType = "system"
)

// Priority orders push urgency. Urgent bypasses quiet hours.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// NotificationTTL is the fixed lifetime of a notification record,
// set once at creation and never extended.
const NotificationTTL = 30 * 24 * time.Hour

// NotificationData carries the structured auxiliary payload shown
// alongside a notification.
type NotificationData struct {
	SenderName     string  `json:"sender_name,omitempty"`
	SenderImage    string  `json:"sender_image,omitempty"`
	ListingTitle   string  `json:"listing_title,omitempty"`
	ListingImage   string  `json:"listing_image,omitempty"`
	OfferAmount    float64 `json:"offer_amount,omitempty"`
	MessagePreview string  `json:"message_preview,omitempty"`
}

// Notification is a persisted in-app notification record.
type Notification struct {
	ID             int64            `db:"id" json:"id"`
	RecipientID    int64            `db:"recipient_id" json:"recipient_id"`
	SenderID       sql.NullInt64    `db:"sender_id" json:"sender_id,omitempty"`
	Type           NotificationType `db:"type" json:"type"`
	Title          string           `db:"title" json:"title"`
	Body           string           `db:"body" json:"body"`
	Data           []byte           `db:"data" json:"-"`
	ListingID      sql.NullInt64    `db:"listing_id" json:"listing_id,omitempty"`
	ConversationID sql.NullInt64    `db:"conversation_id" json:"conversation_id,omitempty"`
	MessageID      sql.NullInt64    `db:"message_id" json:"message_id,omitempty"`
	Read           bool             `db:"read" json:"read"`
	ReadAt         sql.NullTime     `db:"read_at" json:"read_at,omitempty"`
	Delivered      bool             `db:"delivered" json:"delivered"`
	Priority       Priority         `db:"priority" json:"priority"`
	ExpiresAt      time.Time        `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// DecodedData unmarshals the auxiliary payload.
func (n Notification) DecodedData() NotificationData {
	var d NotificationData
	if len(n.Data) > 0 {
		_ = json.Unmarshal(n.Data, &d)
	}
	return d
}
