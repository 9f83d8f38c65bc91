package schema

import (
	"database/sql"
	"fmt"
	"strings"

	utils "barlive/pkg/utils"
)

// CreateLivestreamsTable creates the livestreams table
func CreateLivestreamsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS livestreams (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			host_account_id VARCHAR(64) NOT NULL,
			host_entity_account_id VARCHAR(64) NOT NULL,
			host_entity_id VARCHAR(64),
			host_entity_type VARCHAR(32),
			title VARCHAR(200) NOT NULL,
			description TEXT,
			pinned_comment TEXT,
			status VARCHAR(16) NOT NULL DEFAULT 'live',
			agora_channel_name VARCHAR(64) UNIQUE NOT NULL,
			agora_uid BIGINT NOT NULL,
			view_count INTEGER DEFAULT 0,
			recording_url VARCHAR(2048),
			scheduled_start_time TIMESTAMP WITH TIME ZONE,
			scheduled_settings TEXT,
			start_time TIMESTAMP WITH TIME ZONE,
			end_time TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		-- Create indexes for performance
		CREATE INDEX IF NOT EXISTS idx_livestreams_status ON livestreams(status);
		CREATE INDEX IF NOT EXISTS idx_livestreams_host_account_id ON livestreams(host_account_id);
		CREATE INDEX IF NOT EXISTS idx_livestreams_host_entity_account_id ON livestreams(host_entity_account_id);
		CREATE INDEX IF NOT EXISTS idx_livestreams_channel ON livestreams(agora_channel_name);
		CREATE INDEX IF NOT EXISTS idx_livestreams_scheduled_start ON livestreams(scheduled_start_time) WHERE status = 'scheduled';

		-- Add constraints
		ALTER TABLE livestreams ADD CONSTRAINT chk_livestream_status CHECK (status IN ('scheduled', 'live', 'ended'));
		ALTER TABLE livestreams ADD CONSTRAINT chk_livestream_channel_length CHECK (length(agora_channel_name) <= 64);
	`
	_, err := db.Exec(query)
	if err != nil {
		dbErrStr := err.Error()
		// Ignore errors about existing constraints, indexes, or tables
		if !(strings.Contains(dbErrStr, "already exists") || strings.Contains(dbErrStr, "duplicate key value") || strings.Contains(dbErrStr, "already defined")) {
			utils.Logger.Errorf("Failed to create livestreams table: %v", err)
			return fmt.Errorf("failed to create livestreams table: %w", err)
		}
	}
	utils.Logger.Info("Livestreams table created successfully")
	return nil
}

// CreateNotificationsTable creates the notifications table written by fan-out
func CreateNotificationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			type VARCHAR(32) NOT NULL,
			sender_entity_account_id VARCHAR(64) NOT NULL,
			receiver_entity_account_id VARCHAR(64) NOT NULL,
			content TEXT NOT NULL,
			link VARCHAR(2048),
			status VARCHAR(16) NOT NULL DEFAULT 'Unread',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_receiver ON notifications(receiver_entity_account_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
	`
	_, err := db.Exec(query)
	if err != nil {
		dbErrStr := err.Error()
		if !(strings.Contains(dbErrStr, "already exists") || strings.Contains(dbErrStr, "duplicate key value") || strings.Contains(dbErrStr, "already defined")) {
			utils.Logger.Errorf("Failed to create notifications table: %v", err)
			return fmt.Errorf("failed to create notifications table: %w", err)
		}
	}
	utils.Logger.Info("Notifications table created successfully")
	return nil
}

// CreateAccountTables creates the entity account and follower projection tables
// read by entity resolution and fan-out. The account service owns the writes.
func CreateAccountTables(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS entity_accounts (
			entity_account_id VARCHAR(64) PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL,
			entity_id VARCHAR(64),
			entity_type VARCHAR(32) NOT NULL DEFAULT 'Personal',
			display_name VARCHAR(200),
			avatar_url VARCHAR(2048),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_entity_accounts_account_id ON entity_accounts(account_id);

		CREATE TABLE IF NOT EXISTS followers (
			followed_entity_account_id VARCHAR(64) NOT NULL,
			follower_entity_account_id VARCHAR(64) NOT NULL,
			follower_account_id VARCHAR(64) NOT NULL,
			follower_entity_type VARCHAR(32),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (followed_entity_account_id, follower_entity_account_id)
		);

		CREATE INDEX IF NOT EXISTS idx_followers_followed ON followers(followed_entity_account_id);
	`
	_, err := db.Exec(query)
	if err != nil {
		dbErrStr := err.Error()
		if !(strings.Contains(dbErrStr, "already exists") || strings.Contains(dbErrStr, "duplicate key value") || strings.Contains(dbErrStr, "already defined")) {
			utils.Logger.Errorf("Failed to create account tables: %v", err)
			return fmt.Errorf("failed to create account tables: %w", err)
		}
	}
	utils.Logger.Info("Account tables created successfully")
	return nil
}

// CreateAllLivestreamTables creates every table this service reads or writes
func CreateAllLivestreamTables(db *sql.DB) error {
	if err := CreateAccountTables(db); err != nil {
		return err
	}
	if err := CreateLivestreamsTable(db); err != nil {
		return err
	}
	return CreateNotificationsTable(db)
}
