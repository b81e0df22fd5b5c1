package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

const conversationColumns = `id, user1_id, user2_id, listing_id, last_content, last_sender_id, last_type, last_sent_at,
        user1_unread, user2_unread, active, created_at, updated_at`

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID, otherID int64, listingID *int64) (models.Conversation, error)
	GetByID(ctx context.Context, conversationID int64) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID int64, preview string, senderID int64, msgType models.MessageType, sentAt time.Time) error
	IncrementUnread(ctx context.Context, conversationID, userID int64) error
	ResetUnread(ctx context.Context, conversationID, userID int64) error
	TotalUnread(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, conversationID int64) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGet returns the conversation for the unordered pair, creating it
// on first contact. A second create with the same pair returns the
// existing row.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID, otherID int64, listingID *int64) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	user1, user2 := userID, otherID
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err == nil {
		if listingID != nil && (!conv.ListingID.Valid || conv.ListingID.Int64 != *listingID) {
			_, uerr := r.db.ExecContext(ctx,
				`UPDATE conversations SET listing_id=$1, updated_at=NOW() WHERE id=$2`, *listingID, conv.ID)
			if uerr == nil {
				conv.ListingID = sql.NullInt64{Int64: *listingID, Valid: true}
			}
		}
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	var listing sql.NullInt64
	if listingID != nil {
		listing = sql.NullInt64{Int64: *listingID, Valid: true}
	}
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (user1_id, user2_id, listing_id) VALUES ($1, $2, $3)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET updated_at = NOW()
         RETURNING `+conversationColumns, user1, user2, listing).StructScan(&conv)
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetByID fetches a conversation by id.
func (r *ConversationRepo) GetByID(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`,
		conversationID, userID)
	return exists, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT `+conversationColumns+` FROM conversations
         WHERE (user1_id=$1 OR user2_id=$1) AND active
         ORDER BY COALESCE(last_sent_at, created_at) DESC`, userID)
	return convs, err
}

// UpdateLastMessage refreshes the denormalized snapshot used by list views.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID int64, preview string, senderID int64, msgType models.MessageType, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_content=$1, last_sender_id=$2, last_type=$3, last_sent_at=$4, updated_at=NOW()
         WHERE id=$5`, preview, senderID, string(msgType), sentAt, conversationID)
	return err
}

// IncrementUnread bumps the counter belonging to the given participant.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET
            user1_unread = user1_unread + CASE WHEN user1_id=$2 THEN 1 ELSE 0 END,
            user2_unread = user2_unread + CASE WHEN user2_id=$2 THEN 1 ELSE 0 END
         WHERE id=$1`, conversationID, userID)
	return err
}

// ResetUnread zeroes the counter belonging to the given participant. Only
// that participant's own mark-read reaches this.
func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET
            user1_unread = CASE WHEN user1_id=$2 THEN 0 ELSE user1_unread END,
            user2_unread = CASE WHEN user2_id=$2 THEN 0 ELSE user2_unread END
         WHERE id=$1`, conversationID, userID)
	return err
}

// TotalUnread sums the user's unread counters across conversations.
func (r *ConversationRepo) TotalUnread(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(CASE WHEN user1_id=$1 THEN user1_unread ELSE user2_unread END), 0)
         FROM conversations WHERE user1_id=$1 OR user2_id=$1`, userID)
	return total, err
}

// Delete hard-deletes the conversation; messages cascade.
func (r *ConversationRepo) Delete(ctx context.Context, conversationID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}
