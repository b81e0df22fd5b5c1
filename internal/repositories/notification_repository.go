package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `id, recipient_id, sender_id, type, title, body, data, listing_id, conversation_id,
        message_id, read, read_at, delivered, priority, expires_at, created_at`

// NewNotification carries the fields needed to persist a notification.
type NewNotification struct {
	RecipientID    int64
	SenderID       *int64
	Type           models.NotificationType
	Title          string
	Body           string
	Data           models.NotificationData
	ListingID      *int64
	ConversationID *int64
	MessageID      *int64
	Priority       models.Priority
}

// NotificationFilter narrows listing queries.
type NotificationFilter struct {
	Type       models.NotificationType
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n NewNotification) (models.Notification, error)
	ListForRecipient(ctx context.Context, recipientID int64, filter NotificationFilter) ([]models.Notification, error)
	UndeliveredSince(ctx context.Context, recipientID int64, since time.Time) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error)
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	MarkDelivered(ctx context.Context, id int64) error
	Delete(ctx context.Context, recipientID, id int64) error
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists a notification with its expiry fixed at creation time.
func (r *NotificationRepo) Create(ctx context.Context, n NewNotification) (models.Notification, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return models.Notification{}, err
	}
	priority := n.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	toNull := func(v *int64) sql.NullInt64 {
		if v == nil {
			return sql.NullInt64{}
		}
		return sql.NullInt64{Int64: *v, Valid: true}
	}

	var notif models.Notification
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (recipient_id, sender_id, type, title, body, data, listing_id, conversation_id, message_id, priority, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW() + $11::interval)
         RETURNING `+notificationColumns,
		n.RecipientID, toNull(n.SenderID), string(n.Type), n.Title, n.Body, data,
		toNull(n.ListingID), toNull(n.ConversationID), toNull(n.MessageID),
		string(priority), models.NotificationTTL.String()).StructScan(&notif)
	return notif, err
}

// ListForRecipient returns notifications recent-first with optional
// type/unread filters.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID int64, filter NotificationFilter) ([]models.Notification, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=$1`
	args := []interface{}{recipientID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += ` AND type=$2`
	}
	if filter.UnreadOnly {
		query += ` AND read = FALSE`
	}
	args = append(args, limit, filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var notifs []models.Notification
	err := r.db.SelectContext(ctx, &notifs, query, args...)
	return notifs, err
}

// UndeliveredSince returns undelivered notifications created after the
// given time, oldest first, for the connect-time snapshot.
func (r *NotificationRepo) UndeliveredSince(ctx context.Context, recipientID int64, since time.Time) ([]models.Notification, error) {
	var notifs []models.Notification
	err := r.db.SelectContext(ctx, &notifs,
		`SELECT `+notificationColumns+` FROM notifications
         WHERE recipient_id=$1 AND delivered = FALSE AND created_at >= $2
         ORDER BY created_at ASC`, recipientID, since)
	return notifs, err
}

// CountUnread counts unread notifications for the recipient.
func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND read = FALSE`, recipientID)
	return count, err
}

// MarkRead flags the listed notifications read. Reads never extend expiry.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read=TRUE, read_at=NOW()
         WHERE recipient_id=$1 AND id = ANY($2) AND read = FALSE`, recipientID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkAllRead flags every unread notification of the recipient.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read=TRUE, read_at=NOW() WHERE recipient_id=$1 AND read = FALSE`, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkDelivered records that at least one push succeeded.
func (r *NotificationRepo) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET delivered=TRUE WHERE id=$1`, id)
	return err
}

// Delete removes one notification owned by the recipient.
func (r *NotificationRepo) Delete(ctx context.Context, recipientID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteExpired removes up to limit notifications past their expiry.
func (r *NotificationRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id IN (
            SELECT id FROM notifications WHERE expires_at <= $1 LIMIT $2
         )`, now, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
