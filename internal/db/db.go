package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INT PRIMARY KEY,
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            type TEXT NOT NULL DEFAULT 'direct',
            direct_key TEXT UNIQUE,
            last_message_id INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`ALTER TABLE chats ADD COLUMN IF NOT EXISTS direct_key TEXT UNIQUE;`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            user_name TEXT NOT NULL DEFAULT '',
            profile_photo TEXT NOT NULL DEFAULT '',
            unread_count INT NOT NULL DEFAULT 0,
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS groups (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL UNIQUE REFERENCES chats(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            photo TEXT NOT NULL DEFAULT '',
            only_admin_can_message BOOLEAN NOT NULL DEFAULT FALSE,
            invite_token TEXT NOT NULL UNIQUE,
            member_count INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS group_admins (
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY (group_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            sender_name TEXT NOT NULL DEFAULT '',
            sender_photo TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL,
            media_type TEXT NOT NULL DEFAULT 'text',
            media_url TEXT NOT NULL DEFAULT '',
            media_metadata JSONB NOT NULL DEFAULT '{}',
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS message_receipts (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            read_at TIMESTAMPTZ,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id SERIAL PRIMARY KEY,
            user_id INT NOT NULL,
            type TEXT NOT NULL DEFAULT 'in_app',
            title TEXT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            data JSONB NOT NULL DEFAULT '{}',
            status TEXT NOT NULL DEFAULT 'pending',
            priority TEXT NOT NULL DEFAULT 'low',
            category TEXT NOT NULL DEFAULT '',
            scheduled_for TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            batch_id TEXT,
            delivered_at TIMESTAMPTZ,
            seen_at TIMESTAMPTZ,
            error TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications (status, scheduled_for);`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
            user_id INT PRIMARY KEY,
            enabled BOOLEAN NOT NULL DEFAULT TRUE,
            push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            push_token TEXT NOT NULL DEFAULT '',
            email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            email_address TEXT NOT NULL DEFAULT '',
            sms_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            phone_number TEXT NOT NULL DEFAULT '',
            in_app_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            categories JSONB NOT NULL DEFAULT '{}',
            quiet_hours_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            quiet_hours_start TEXT NOT NULL DEFAULT '',
            quiet_hours_end TEXT NOT NULL DEFAULT '',
            quiet_hours_tz TEXT NOT NULL DEFAULT 'UTC',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
