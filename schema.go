package main

import (
	"context"
	"database/sql"
)

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			player_id TEXT PRIMARY KEY,
			coins BIGINT NOT NULL DEFAULT 0,
			energy INT NOT NULL DEFAULT 10000,
			max_energy INT NOT NULL DEFAULT 10000,
			energy_regen_rate INT NOT NULL DEFAULT 1,
			click_power INT NOT NULL DEFAULT 1,
			level INT NOT NULL DEFAULT 1,
			experience BIGINT NOT NULL DEFAULT 0,
			total_taps BIGINT NOT NULL DEFAULT 0,
			last_click_at TIMESTAMPTZ,
			last_energy_update TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_active_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT players_coins_non_negative CHECK (coins >= 0),
			CONSTRAINT players_energy_non_negative CHECK (energy >= 0)
		);

		CREATE TABLE IF NOT EXISTS player_boosts (
			id UUID PRIMARY KEY,
			player_id TEXT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
			boost_type TEXT NOT NULL,
			multiplier NUMERIC(10,2) NOT NULL,
			activated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT player_boosts_window CHECK (expires_at > activated_at)
		);

		CREATE INDEX IF NOT EXISTS player_boosts_active_idx
			ON player_boosts (player_id, expires_at);

		CREATE TABLE IF NOT EXISTS services (
			service_id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			cost_coins BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS player_services (
			player_id TEXT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
			service_id UUID NOT NULL REFERENCES services(service_id),
			level INT NOT NULL DEFAULT 0,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, service_id)
		);

		CREATE TABLE IF NOT EXISTS tasks (
			task_id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			period TEXT NOT NULL DEFAULT 'daily',
			task_type TEXT NOT NULL,
			requirement BIGINT NOT NULL,
			reward_coins BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS player_tasks (
			player_id TEXT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
			task_id UUID NOT NULL REFERENCES tasks(task_id),
			progress BIGINT NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (player_id, task_id)
		);

		CREATE TABLE IF NOT EXISTS click_violations (
			id BIGSERIAL PRIMARY KEY,
			player_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			clicks INT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS click_violations_player_idx
			ON click_violations (player_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS players_coins_idx
			ON players (coins DESC);

		CREATE TABLE IF NOT EXISTS global_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	// columns added after the first release
	_, err = db.ExecContext(ctx, `
		ALTER TABLE players
		ADD COLUMN IF NOT EXISTS click_power INT NOT NULL DEFAULT 1;

		ALTER TABLE players
		ADD COLUMN IF NOT EXISTS last_active_at TIMESTAMPTZ;
	`)
	return err
}
