package database

import (
	"database/sql"
	"fmt"

	"salome-be/internal/config"

	_ "github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	cfg := config.GetConfig().Database

	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		avatar_url VARCHAR(500),
		is_admin BOOLEAN DEFAULT FALSE,
		status VARCHAR(20) DEFAULT 'active' CHECK (status IN ('active', 'suspended', 'deleted')),
		balance BIGINT DEFAULT 0,
		total_spent BIGINT DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	appsTable := `
	CREATE TABLE IF NOT EXISTS apps (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT DEFAULT '',
		category VARCHAR(100) DEFAULT '',
		icon_url VARCHAR(500) DEFAULT '',
		website_url VARCHAR(500) DEFAULT '',
		base_price BIGINT NOT NULL CHECK (base_price > 0),
		max_group_members INTEGER NOT NULL CHECK (max_group_members >= 2),
		admin_fee_percentage INTEGER DEFAULT 0 CHECK (admin_fee_percentage BETWEEN 0 AND 100),
		is_popular BOOLEAN DEFAULT FALSE,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_apps_is_active ON apps(is_active);
	CREATE INDEX IF NOT EXISTS idx_apps_category ON apps(category);`

	groupsTable := `
	CREATE TABLE IF NOT EXISTS groups (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		description TEXT,
		app_id VARCHAR(255) NOT NULL REFERENCES apps(id),
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		invite_code VARCHAR(10) UNIQUE NOT NULL,
		max_members INTEGER NOT NULL CHECK (max_members >= 2),
		price_per_member BIGINT NOT NULL,
		admin_fee BIGINT NOT NULL DEFAULT 0,
		total_price BIGINT NOT NULL DEFAULT 0,
		group_status VARCHAR(20) DEFAULT 'open' CHECK (group_status IN ('open', 'private', 'full', 'paid_group', 'closed')),
		is_public BOOLEAN DEFAULT TRUE,
		expires_at TIMESTAMP,
		all_paid_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_groups_invite_code ON groups(invite_code);
	CREATE INDEX IF NOT EXISTS idx_groups_app_id ON groups(app_id);
	CREATE INDEX IF NOT EXISTS idx_groups_group_status ON groups(group_status);`

	groupMembersTable := `
	CREATE TABLE IF NOT EXISTS group_members (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) DEFAULT 'member' CHECK (role IN ('owner', 'admin', 'member')),
		user_status VARCHAR(20) DEFAULT 'pending' CHECK (user_status IN ('pending', 'paid', 'active', 'removed')),
		payment_amount BIGINT DEFAULT 0,
		price_per_member BIGINT DEFAULT 0,
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		payment_deadline TIMESTAMP,
		paid_at TIMESTAMP,
		activated_at TIMESTAMP,
		removed_at TIMESTAMP,
		removed_reason TEXT,
		UNIQUE(group_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_group_members_group_id ON group_members(group_id);
	CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);`

	paymentsTable := `
	CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL,
		currency VARCHAR(3) DEFAULT 'IDR',
		status VARCHAR(20) DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'mismatch', 'cancelled', 'failed')),
		provider_order_id VARCHAR(255) UNIQUE NOT NULL,
		provider_transaction_id VARCHAR(255) UNIQUE,
		payment_url VARCHAR(500),
		payment_method VARCHAR(50),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_payments_group_user ON payments(group_id, user_id);`

	broadcastsTable := `
	CREATE TABLE IF NOT EXISTS broadcasts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		admin_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		target_type VARCHAR(20) NOT NULL CHECK (target_type IN ('all', 'selected')),
		target_group_ids TEXT[],
		priority INTEGER DEFAULT 1,
		status VARCHAR(20) DEFAULT 'draft' CHECK (status IN ('draft', 'scheduled', 'sent', 'cancelled')),
		start_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		end_date TIMESTAMP,
		sent_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	notificationsTable := `
	CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type VARCHAR(50) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);`

	accountCredentialsTable := `
	CREATE TABLE IF NOT EXISTS account_credentials (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		app_id VARCHAR(255) NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
		username VARCHAR(255),
		email VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT unique_user_app_credentials UNIQUE (user_id, app_id)
	);`

	tables := []string{
		usersTable,
		appsTable,
		groupsTable,
		groupMembersTable,
		paymentsTable,
		broadcastsTable,
		notificationsTable,
		accountCredentialsTable,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
