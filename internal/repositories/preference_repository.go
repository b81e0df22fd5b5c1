package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// PreferenceRepository abstracts notification preference persistence.
type PreferenceRepository interface {
	Get(ctx context.Context, userID int64) (models.Preferences, error)
	Upsert(ctx context.Context, prefs models.Preferences) (models.Preferences, error)
}

// PreferenceRepo is a sqlx implementation of PreferenceRepository.
type PreferenceRepo struct {
	db *sqlx.DB
}

// NewPreferenceRepo constructs a PreferenceRepo.
func NewPreferenceRepo(db *sqlx.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// Get returns the user's saved preferences, or the defaults when the user
// never saved any.
func (r *PreferenceRepo) Get(ctx context.Context, userID int64) (models.Preferences, error) {
	var prefs models.Preferences
	err := r.db.GetContext(ctx, &prefs,
		`SELECT user_id, push_enabled, messages_enabled, offers_enabled, product_updates_enabled,
                quiet_hours_enabled, quiet_start, quiet_end, timezone, updated_at
         FROM notification_preferences WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreferences(userID), nil
	}
	return prefs, err
}

// Upsert saves the user's preferences.
func (r *PreferenceRepo) Upsert(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	var saved models.Preferences
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notification_preferences
            (user_id, push_enabled, messages_enabled, offers_enabled, product_updates_enabled,
             quiet_hours_enabled, quiet_start, quiet_end, timezone, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
         ON CONFLICT (user_id) DO UPDATE SET
            push_enabled = EXCLUDED.push_enabled,
            messages_enabled = EXCLUDED.messages_enabled,
            offers_enabled = EXCLUDED.offers_enabled,
            product_updates_enabled = EXCLUDED.product_updates_enabled,
            quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
            quiet_start = EXCLUDED.quiet_start,
            quiet_end = EXCLUDED.quiet_end,
            timezone = EXCLUDED.timezone,
            updated_at = NOW()
         RETURNING user_id, push_enabled, messages_enabled, offers_enabled, product_updates_enabled,
            quiet_hours_enabled, quiet_start, quiet_end, timezone, updated_at`,
		prefs.UserID, prefs.PushEnabled, prefs.MessagesEnabled, prefs.OffersEnabled, prefs.ProductUpdates,
		prefs.QuietHoursEnabled, prefs.QuietStart, prefs.QuietEnd, prefs.Timezone).StructScan(&saved)
	return saved, err
}
