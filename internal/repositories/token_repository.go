package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// ErrTokenNotFound is returned when a token does not exist for the user.
var ErrTokenNotFound = errors.New("device token not found")

// TokenRepository abstracts device token persistence.
type TokenRepository interface {
	Upsert(ctx context.Context, userID int64, token, endpointARN, platform string) (models.DeviceToken, error)
	ActiveForUser(ctx context.Context, userID int64) ([]models.DeviceToken, error)
	Deactivate(ctx context.Context, tokens []string) (int64, error)
	Remove(ctx context.Context, userID int64, token string) (string, error)
	DeactivateStale(ctx context.Context, olderThan time.Time, limit int) (int64, error)
}

// TokenRepo is a sqlx implementation of TokenRepository.
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo constructs a TokenRepo.
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// Upsert registers a token for the user, reactivating and refreshing it if
// the same token was seen before (possibly for a different user after an
// app reinstall).
func (r *TokenRepo) Upsert(ctx context.Context, userID int64, token, endpointARN, platform string) (models.DeviceToken, error) {
	var dt models.DeviceToken
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO device_tokens (user_id, token, endpoint_arn, platform)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (token) DO UPDATE
            SET user_id = EXCLUDED.user_id,
                endpoint_arn = EXCLUDED.endpoint_arn,
                platform = EXCLUDED.platform,
                active = TRUE,
                last_seen_at = NOW()
         RETURNING id, user_id, token, endpoint_arn, platform, active, last_seen_at, created_at`,
		userID, token, endpointARN, platform).StructScan(&dt)
	return dt, err
}

// ActiveForUser returns the user's active device tokens.
func (r *TokenRepo) ActiveForUser(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	err := r.db.SelectContext(ctx, &tokens,
		`SELECT id, user_id, token, endpoint_arn, platform, active, last_seen_at, created_at
         FROM device_tokens WHERE user_id=$1 AND active`, userID)
	return tokens, err
}

// Deactivate flags the given tokens inactive. Used for permanently
// invalid tokens reported by the push gateway.
func (r *TokenRepo) Deactivate(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_tokens SET active=FALSE WHERE token = ANY($1)`, pq.Array(tokens))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Remove deletes the user's token and returns its endpoint ARN so the
// caller can tear down the push-gateway endpoint.
func (r *TokenRepo) Remove(ctx context.Context, userID int64, token string) (string, error) {
	var arn string
	err := r.db.GetContext(ctx, &arn,
		`DELETE FROM device_tokens WHERE user_id=$1 AND token=$2 RETURNING endpoint_arn`, userID, token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	return arn, err
}

// DeactivateStale flags tokens not seen since olderThan, up to limit.
func (r *TokenRepo) DeactivateStale(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_tokens SET active=FALSE WHERE id IN (
            SELECT id FROM device_tokens WHERE active AND last_seen_at < $1 LIMIT $2
         )`, olderThan, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
