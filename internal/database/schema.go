package database

import (
	"database/sql"
	"log"
)

// Schema statements are idempotent so startup can run them unconditionally.
// credits has no CHECK constraint: non-negativity is enforced by the ledger
// service at transaction time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password TEXT NOT NULL,
		name VARCHAR(255) NOT NULL,
		bio TEXT,
		avatar VARCHAR(500),
		credits INTEGER NOT NULL DEFAULT 0,
		rating DOUBLE PRECISION,
		version INTEGER NOT NULL DEFAULT 1,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(100) NOT NULL,
		level VARCHAR(20) NOT NULL,
		skill_type VARCHAR(10) NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_skills_user_type ON skills (user_id, skill_type)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		matched_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		match_score DOUBLE PRECISION NOT NULL,
		common_skills JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_match_users UNIQUE (user_id, matched_user_id),
		CONSTRAINT ck_match_different_users CHECK (user_id <> matched_user_id),
		CONSTRAINT ck_match_score_range CHECK (match_score >= 0 AND match_score <= 100)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		participant_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		participant_name VARCHAR(255) NOT NULL,
		skill VARCHAR(100) NOT NULL,
		session_date VARCHAR(50) NOT NULL,
		session_time VARCHAR(10) NOT NULL,
		duration INTEGER NOT NULL,
		credits_amount INTEGER NOT NULL DEFAULT 0,
		session_type VARCHAR(10) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		rating DOUBLE PRECISION,
		feedback TEXT,
		rated_by UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ck_rating_range CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5))
	)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_user ON sessions (user_id)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_participant ON sessions (participant_id)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_status ON sessions (status)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_id UUID REFERENCES sessions(id) ON DELETE SET NULL,
		amount INTEGER NOT NULL,
		transaction_type VARCHAR(50) NOT NULL,
		description TEXT,
		balance_after INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_credit_transactions_user ON credit_transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		user1_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user2_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_conversation_users UNIQUE (user1_id, user2_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_messages_conversation ON messages (conversation_id, created_at)`,
}

// Migrate applies the bootstrap schema.
func Migrate(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	log.Println("Database schema up to date")
	return nil
}
