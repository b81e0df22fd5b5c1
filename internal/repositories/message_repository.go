package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, receiver_id, listing_id, type, content, image_url,
        reply_to_id, reply_preview, status, delivered_at, read_at, deleted, deleted_at, edited, edited_at, created_at`

// NewMessage carries the fields needed to create a message.
type NewMessage struct {
	ConversationID int64
	SenderID       int64
	ReceiverID     int64
	ListingID      *int64
	Type           models.MessageType
	Content        string
	ImageURL       string
	ReplyToID      *int64
	ReplyPreview   string
}

// MessageRepository defines interactions for messages.
type MessageRepository interface {
	Create(ctx context.Context, m NewMessage) (models.Message, error)
	GetByID(ctx context.Context, messageID int64) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID int64, includeDeleted bool, limit int, beforeID int64) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64) (bool, error)
	MarkRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) ([]int64, error)
	UnreadIDs(ctx context.Context, conversationID, readerID int64) ([]int64, error)
	SoftDelete(ctx context.Context, messageID, senderID int64) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message with initial status "sent".
func (r *MessageRepo) Create(ctx context.Context, m NewMessage) (models.Message, error) {
	var listing, replyTo sql.NullInt64
	if m.ListingID != nil {
		listing = sql.NullInt64{Int64: *m.ListingID, Valid: true}
	}
	if m.ReplyToID != nil {
		replyTo = sql.NullInt64{Int64: *m.ReplyToID, Valid: true}
	}
	imageURL := sql.NullString{String: m.ImageURL, Valid: m.ImageURL != ""}
	replyPreview := sql.NullString{String: m.ReplyPreview, Valid: m.ReplyPreview != ""}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, receiver_id, listing_id, type, content, image_url, reply_to_id, reply_preview)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING `+messageColumns,
		m.ConversationID, m.SenderID, m.ReceiverID, listing, string(m.Type), m.Content, imageURL, replyTo, replyPreview).
		StructScan(&msg)
	return msg, err
}

// GetByID retrieves a single message.
func (r *MessageRepo) GetByID(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForConversation returns messages newest-first, paginated by id.
// Soft-deleted rows are excluded unless includeDeleted is set; the
// exclusion is explicit here rather than baked into a query default.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, includeDeleted bool, limit int, beforeID int64) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1`
	args := []interface{}{conversationID}
	if !includeDeleted {
		query += ` AND deleted = FALSE`
	}
	if beforeID > 0 {
		args = append(args, beforeID)
		query += ` AND id < $2`
	}
	args = append(args, limit)
	if beforeID > 0 {
		query += ` ORDER BY id DESC LIMIT $3`
	} else {
		query += ` ORDER BY id DESC LIMIT $2`
	}

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// MarkDelivered advances a sent message to delivered. Returns false when
// the message was already delivered or read; status never regresses.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET status='delivered', delivered_at=NOW() WHERE id=$1 AND status='sent'`, messageID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// MarkRead advances the listed messages to read, scoped to the reader as
// receiver so a sender cannot mark their own messages. Returns the ids
// that actually transitioned, making duplicate submissions no-ops.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryxContext(ctx,
		`UPDATE messages SET status='read', read_at=NOW(),
            delivered_at = COALESCE(delivered_at, NOW())
         WHERE conversation_id=$1 AND receiver_id=$2 AND id = ANY($3) AND status <> 'read'
         RETURNING id`, conversationID, readerID, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// UnreadIDs lists the reader's not-yet-read message ids in a conversation.
func (r *MessageRepo) UnreadIDs(ctx context.Context, conversationID, readerID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM messages WHERE conversation_id=$1 AND receiver_id=$2 AND status <> 'read' AND deleted=FALSE`,
		conversationID, readerID)
	return ids, err
}

// SoftDelete flags a message deleted by its sender.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, senderID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET deleted=TRUE, deleted_at=NOW() WHERE id=$1 AND sender_id=$2 AND deleted=FALSE`,
		messageID, senderID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
