package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// Every statement is idempotent so Migrate can run on each start.
var migrations = []migration{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			last_daily_bonus_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"transactions", `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_type VARCHAR(50) NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
	`},
	{"game_history", `
		CREATE TABLE IF NOT EXISTS game_history (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_type VARCHAR(50) NOT NULL,
			bet_amount BIGINT NOT NULL,
			result VARCHAR(10) NOT NULL,
			winnings BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_game_history_user_time ON game_history(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_game_history_type_time ON game_history(game_type, created_at DESC);
	`},
	{"mines_sessions", `
		CREATE TABLE IF NOT EXISTS mines_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			bet_amount BIGINT NOT NULL,
			grid_size INT NOT NULL,
			mine_count INT NOT NULL,
			mines_layout INT[] NOT NULL,
			revealed_cells INT[] NOT NULL DEFAULT '{}',
			safe_revealed INT NOT NULL DEFAULT 0,
			state VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			payout BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_mines_sessions_user_active ON mines_sessions(user_id) WHERE is_active;
	`},
	{"crash_rounds", `
		CREATE TABLE IF NOT EXISTS crash_rounds (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			bet_amount BIGINT NOT NULL,
			crash_multiplier NUMERIC(8,2) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			state VARCHAR(20) NOT NULL DEFAULT 'running',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			cashed_out_at NUMERIC(8,2),
			payout BIGINT,
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_crash_rounds_user_active ON crash_rounds(user_id) WHERE is_active;
	`},
	{"task_config", `
		CREATE TABLE IF NOT EXISTS task_config (
			task_type VARCHAR(20) PRIMARY KEY,
			reward_amount BIGINT NOT NULL,
			cooldown_seconds INT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_by UUID
		);
		INSERT INTO task_config (task_type, reward_amount, cooldown_seconds) VALUES
			('math', 1000, 300),
			('trivia', 500, 300),
			('captcha', 750, 300),
			('typing', 1000, 600),
			('waiting', 500, 900)
		ON CONFLICT (task_type) DO NOTHING;
	`},
	{"task_completions", `
		CREATE TABLE IF NOT EXISTS task_completions (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			task_type VARCHAR(20) NOT NULL,
			reward_amount BIGINT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_task_completions_user_type ON task_completions(user_id, task_type, completed_at DESC);
	`},
	{"achievements", `
		CREATE TABLE IF NOT EXISTS achievements (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			achievement_type VARCHAR(50) NOT NULL,
			achievement_data JSONB NOT NULL DEFAULT '{}',
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, achievement_type)
		);
	`},
	{"daily_challenges", `
		CREATE TABLE IF NOT EXISTS daily_challenges (
			id UUID PRIMARY KEY,
			date DATE NOT NULL UNIQUE,
			game_type VARCHAR(50) NOT NULL,
			starting_balance BIGINT NOT NULL,
			prize_pool BIGINT NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"challenge_entries", `
		CREATE TABLE IF NOT EXISTS challenge_entries (
			id BIGSERIAL PRIMARY KEY,
			challenge_id UUID NOT NULL REFERENCES daily_challenges(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			final_balance BIGINT NOT NULL CHECK (final_balance >= 0),
			entries_count INT NOT NULL DEFAULT 1,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			UNIQUE (challenge_id, user_id)
		);
	`},
}

// Migrate creates the schema.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Int("count", len(migrations)).Msg("Running database migrations")
	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, m.name, err)
		}
		log.Debug().Str("migration", m.name).Msg("Migration applied")
	}
	log.Info().Msg("All migrations completed successfully")
	return nil
}
