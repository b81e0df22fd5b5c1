package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database migrations applied")
	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            user1_id BIGINT NOT NULL,
            user2_id BIGINT NOT NULL,
            listing_id BIGINT,
            last_content TEXT,
            last_sender_id BIGINT,
            last_type TEXT,
            last_sent_at TIMESTAMPTZ,
            user1_unread INT NOT NULL DEFAULT 0,
            user2_unread INT NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user1_id, user2_id),
            CHECK (user1_id < user2_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            receiver_id BIGINT NOT NULL,
            listing_id BIGINT,
            type TEXT NOT NULL DEFAULT 'text',
            content TEXT NOT NULL DEFAULT '',
            image_url TEXT,
            reply_to_id BIGINT,
            reply_preview TEXT,
            status TEXT NOT NULL DEFAULT 'sent',
            delivered_at TIMESTAMPTZ,
            read_at TIMESTAMPTZ,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_recent
            ON messages (conversation_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id BIGSERIAL PRIMARY KEY,
            recipient_id BIGINT NOT NULL,
            sender_id BIGINT,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL,
            data JSONB NOT NULL DEFAULT '{}',
            listing_id BIGINT,
            conversation_id BIGINT,
            message_id BIGINT,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ,
            delivered BOOLEAN NOT NULL DEFAULT FALSE,
            priority TEXT NOT NULL DEFAULT 'normal',
            expires_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_recent
            ON notifications (recipient_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_expiry
            ON notifications (expires_at);`,
		`CREATE TABLE IF NOT EXISTS device_tokens (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            token TEXT NOT NULL UNIQUE,
            endpoint_arn TEXT NOT NULL DEFAULT '',
            platform TEXT NOT NULL DEFAULT 'android',
            active BOOLEAN NOT NULL DEFAULT TRUE,
            last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_device_tokens_user
            ON device_tokens (user_id) WHERE active;`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
            user_id BIGINT PRIMARY KEY,
            push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            messages_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            offers_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            product_updates_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            quiet_hours_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            quiet_start TEXT NOT NULL DEFAULT '22:00',
            quiet_end TEXT NOT NULL DEFAULT '08:00',
            timezone TEXT NOT NULL DEFAULT 'UTC',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
