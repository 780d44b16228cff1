package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order. Every statement is idempotent so Migrate
// can run on every start.
var migrations = []migration{
	{
		name: "users",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username VARCHAR(64) NOT NULL UNIQUE,
				role VARCHAR(16) NOT NULL CHECK (role IN ('admin', 'subadmin', 'player')),
				status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'blocked')),
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				owner_id BIGINT REFERENCES users(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_owner ON users(owner_id);
		`,
	},
	{
		name: "markets",
		sql: `
			CREATE TABLE IF NOT EXISTS markets (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(128) NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'open', 'closed')),
				result_status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (result_status IN ('pending', 'declared')),
				result_value CHAR(2),
				declared_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (result_status = 'pending' OR status = 'closed')
			);
			CREATE TABLE IF NOT EXISTS market_game_types (
				market_id BIGINT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
				game_type VARCHAR(16) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				odds NUMERIC(12, 4) NOT NULL CHECK (odds > 0),
				PRIMARY KEY (market_id, game_type)
			);
		`,
	},
	{
		name: "option_games",
		sql: `
			CREATE TABLE IF NOT EXISTS option_games (
				id BIGSERIAL PRIMARY KEY,
				team_a VARCHAR(128) NOT NULL,
				team_b VARCHAR(128) NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'open', 'closed')),
				result_status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (result_status IN ('pending', 'declared')),
				winning_team CHAR(1) CHECK (winning_team IN ('A', 'B')),
				odds NUMERIC(12, 4) NOT NULL CHECK (odds > 0),
				declared_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (result_status = 'pending' OR status = 'closed')
			);
		`,
	},
	{
		name: "wagers",
		sql: `
			CREATE TABLE IF NOT EXISTS wagers (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id),
				target_kind VARCHAR(16) NOT NULL CHECK (target_kind IN ('market', 'option')),
				target_id BIGINT NOT NULL,
				game_type VARCHAR(16) NOT NULL,
				selection VARCHAR(64) NOT NULL,
				amount BIGINT NOT NULL CHECK (amount > 0),
				odds NUMERIC(12, 4) NOT NULL,
				potential_winning BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'pending',
				settled_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_wagers_target ON wagers(target_kind, target_id, status);
			CREATE INDEX IF NOT EXISTS idx_wagers_user ON wagers(user_id, id DESC);
		`,
	},
	{
		name: "ledger_entries",
		sql: `
			CREATE TABLE IF NOT EXISTS ledger_entries (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id),
				kind VARCHAR(16) NOT NULL CHECK (kind IN ('deposit', 'withdrawal', 'bet', 'winning', 'adjustment')),
				amount BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				reference VARCHAR(128) NOT NULL DEFAULT '',
				initiated_by BIGINT,
				resolved_by BIGINT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				resolved_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_entries(user_id, id DESC);
			CREATE INDEX IF NOT EXISTS idx_ledger_pending ON ledger_entries(id) WHERE status = 'pending';
		`,
	},
	{
		name: "user_quarantine",
		sql: `
			ALTER TABLE users ADD COLUMN IF NOT EXISTS quarantined BOOLEAN NOT NULL DEFAULT FALSE;
			CREATE INDEX IF NOT EXISTS idx_users_quarantined ON users(id) WHERE quarantined;
		`,
	},
}

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
