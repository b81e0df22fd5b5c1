package models

import (
	"database/sql"
	"time"
)

// Conversation is the unique channel between exactly two participants.
// The pair is stored normalized (user1_id < user2_id) so the unordered
// pair maps to a single row.
type Conversation struct {
	ID          int64          `db:"id" json:"id"`
	User1ID     int64          `db:"user1_id" json:"user1_id"`
	User2ID     int64          `db:"user2_id" json:"user2_id"`
	ListingID   sql.NullInt64  `db:"listing_id" json:"listing_id,omitempty"`
	LastContent sql.NullString `db:"last_content" json:"last_content,omitempty"`
	LastSender  sql.NullInt64  `db:"last_sender_id" json:"last_sender_id,omitempty"`
	LastType    sql.NullString `db:"last_type" json:"last_type,omitempty"`
	LastSentAt  sql.NullTime   `db:"last_sent_at" json:"last_sent_at,omitempty"`
	User1Unread int            `db:"user1_unread" json:"user1_unread"`
	User2Unread int            `db:"user2_unread" json:"user2_unread"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Participant reports whether the user belongs to the conversation.
func (c Conversation) Participant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the counterpart of the given user.
func (c Conversation) OtherParticipant(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor returns the unread counter belonging to the user.
func (c Conversation) UnreadFor(userID int64) int {
	if c.User1ID == userID {
		return c.User1Unread
	}
	return c.User2Unread
}

// SummaryFor renders the conversation from one participant's
// perspective.
func (c Conversation) SummaryFor(userID int64) ConversationSummary {
	s := ConversationSummary{
		ConversationID: c.ID,
		OtherUserID:    c.OtherParticipant(userID),
		Unread:         c.UnreadFor(userID),
		CreatedAt:      c.CreatedAt,
	}
	if c.ListingID.Valid {
		listingID := c.ListingID.Int64
		s.ListingID = &listingID
	}
	if c.LastContent.Valid {
		s.LastContent = c.LastContent.String
	}
	if c.LastSender.Valid {
		senderID := c.LastSender.Int64
		s.LastSenderID = &senderID
	}
	if c.LastType.Valid {
		s.LastType = c.LastType.String
	}
	if c.LastSentAt.Valid {
		sentAt := c.LastSentAt.Time
		s.LastSentAt = &sentAt
	}
	return s
}

// ConversationSummary is the API-friendly list view of a conversation.
type ConversationSummary struct {
	ConversationID int64      `json:"conversation_id"`
	OtherUserID    int64      `json:"other_user_id"`
	ListingID      *int64     `json:"listing_id,omitempty"`
	LastContent    string     `json:"last_content,omitempty"`
	LastSenderID   *int64     `json:"last_sender_id,omitempty"`
	LastType       string     `json:"last_type,omitempty"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
	Unread         int        `json:"unread"`
	CreatedAt      time.Time  `json:"created_at"`
}
