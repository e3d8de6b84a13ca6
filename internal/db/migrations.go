package db

import (
	"context"
	"fmt"
)

// RunMigrations applies the schema. Every statement is idempotent, so
// running it on every boot is safe.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			uuid UUID PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'employee',
			branch TEXT,
			team TEXT,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_uuid UUID NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
			role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			PRIMARY KEY (user_uuid, role_id)
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			icon_codepoint BIGINT,
			icon_color TEXT,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_by UUID REFERENCES users(uuid) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS channel_roles (
			channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			PRIMARY KEY (channel_id, role_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL DEFAULT '',
			image_url TEXT,
			sender_uuid UUID REFERENCES users(uuid) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel_created
			ON messages(channel_id, created_at, id)`,
		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_uuid UUID NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
			read_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (message_id, user_uuid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_reads_user
			ON message_reads(user_uuid)`,
		`CREATE TABLE IF NOT EXISTS webhooks (
			id BIGSERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			secret_token TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_uuid UUID NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
			token TEXT UNIQUE NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user
			ON refresh_tokens(user_uuid)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_active_name
			ON channels(lower(name)) WHERE is_active`,
	}

	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	db.logger.Info("migrations applied")
	return nil
}
