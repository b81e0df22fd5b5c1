package models

import "time"

// DeviceToken addresses one installed app instance at the push gateway.
type DeviceToken struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Token       string    `db:"token" json:"token"`
	EndpointARN string    `db:"endpoint_arn" json:"-"`
	Platform    string    `db:"platform" json:"platform"`
	Active      bool      `db:"active" json:"active"`
	LastSeenAt  time.Time `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Preferences holds a user's notification settings. A missing row means
// defaults: everything enabled, no quiet hours.
type Preferences struct {
	UserID            int64     `db:"user_id" json:"user_id"`
	PushEnabled       bool      `db:"push_enabled" json:"push_enabled"`
	MessagesEnabled   bool      `db:"messages_enabled" json:"messages_enabled"`
	OffersEnabled     bool      `db:"offers_enabled" json:"offers_enabled"`
	ProductUpdates    bool      `db:"product_updates_enabled" json:"product_updates_enabled"`
	QuietHoursEnabled bool      `db:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietStart        string    `db:"quiet_start" json:"quiet_start"`
	QuietEnd          string    `db:"quiet_end" json:"quiet_end"`
	Timezone          string    `db:"timezone" json:"timezone"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences returns the settings applied when a user has never
// saved any.
func DefaultPreferences(userID int64) Preferences {
	return Preferences{
		UserID:          userID,
		PushEnabled:     true,
		MessagesEnabled: true,
		OffersEnabled:   true,
		ProductUpdates:  true,
		Timezone:        "UTC",
	}
}
