package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type pgStore struct {
	db *sql.DB
}

func newPGStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

const playerColumns = `
	player_id, coins, energy, max_energy, energy_regen_rate, click_power,
	level, experience, total_taps, last_click_at, last_energy_update, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*PlayerEconomyState, error) {
	var p PlayerEconomyState
	var lastClick sql.NullTime
	if err := row.Scan(
		&p.PlayerID,
		&p.Coins,
		&p.Energy,
		&p.MaxEnergy,
		&p.RegenRate,
		&p.ClickPower,
		&p.Level,
		&p.Experience,
		&p.TotalTaps,
		&lastClick,
		&p.LastEnergyUpdate,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastClick.Valid {
		t := lastClick.Time
		p.LastClickAt = &t
	}
	return &p, nil
}

func (s *pgStore) LoadPlayer(ctx context.Context, playerID string) (*PlayerEconomyState, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE player_id = $1
	`, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, storeError("load player", err)
	}
	return p, nil
}

func (s *pgStore) EnsurePlayer(ctx context.Context, playerID string, now time.Time) (*PlayerEconomyState, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (player_id, last_energy_update, created_at, updated_at)
		VALUES ($1, $2, $2, $2)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID, now)
	if err != nil {
		return nil, storeError("create player", err)
	}
	return s.LoadPlayer(ctx, playerID)
}

// regenerated energy at $2, computed the same way as RegenerateEnergy
const regeneratedEnergy = `LEAST(
	max_energy::numeric,
	energy + FLOOR(GREATEST(0, EXTRACT(EPOCH FROM ($2::timestamptz - last_energy_update))) * energy_regen_rate)
)`

// The row lock taken by UPDATE makes concurrent batches see each other's
// debit, so the WHERE clause is evaluated against the latest energy. A batch
// stamped before the stored epoch regenerates nothing and leaves the epoch
// where it is.
var applyClickQuery = fmt.Sprintf(`
	UPDATE players
	SET coins = coins + $3,
		experience = experience + $4,
		total_taps = total_taps + $5,
		energy = (%[1]s - $6)::int,
		last_click_at = $2,
		last_energy_update = GREATEST(last_energy_update, $2::timestamptz),
		updated_at = $2
	WHERE player_id = $1
	  AND %[1]s >= $6
	RETURNING coins, energy, max_energy, energy_regen_rate, total_taps, experience, level, last_energy_update
`, regeneratedEnergy)

func (s *pgStore) ApplyClick(ctx context.Context, debit ClickDebit) (ClickOutcome, bool, error) {
	var out ClickOutcome
	err := s.db.QueryRowContext(ctx, applyClickQuery,
		debit.PlayerID,
		debit.At,
		debit.CoinsEarned,
		debit.ExperienceEarned,
		debit.Clicks,
		debit.EnergyNeeded,
	).Scan(&out.Coins, &out.Energy, &out.MaxEnergy, &out.RegenRate, &out.TotalTaps, &out.Experience, &out.Level, &out.EnergyAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ClickOutcome{}, false, nil
	}
	if err != nil {
		return ClickOutcome{}, false, storeError("apply click", err)
	}
	return out, true, nil
}

// RaiseLevel never lowers a level, so racing writers settle on the highest.
func (s *pgStore) RaiseLevel(ctx context.Context, playerID string, level int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE players
		SET level = $2
		WHERE player_id = $1 AND level < $2
	`, playerID, level)
	return storeError("raise level", err)
}

func (s *pgStore) DebitCoins(ctx context.Context, playerID string, amount int64) (int64, bool, error) {
	var remaining int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE players
		SET coins = coins - $2,
			updated_at = NOW()
		WHERE player_id = $1 AND coins >= $2
		RETURNING coins
	`, playerID, amount).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, storeError("debit coins", err)
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `
		SELECT coins FROM players WHERE player_id = $1
	`, playerID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrPlayerNotFound
	}
	if err != nil {
		return 0, false, storeError("debit coins", err)
	}
	return current, false, nil
}

func (s *pgStore) CreditCoins(ctx context.Context, playerID string, amount int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE players
		SET coins = coins + $2,
			updated_at = NOW()
		WHERE player_id = $1
		RETURNING coins
	`, playerID, amount).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPlayerNotFound
	}
	if err != nil {
		return 0, storeError("credit coins", err)
	}
	return total, nil
}

func (s *pgStore) ActiveBoosts(ctx context.Context, playerID string, now time.Time) ([]Boost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, boost_type, multiplier, activated_at, expires_at
		FROM player_boosts
		WHERE player_id = $1 AND expires_at > $2
		ORDER BY expires_at ASC
	`, playerID, now)
	if err != nil {
		return nil, storeError("list boosts", err)
	}
	defer rows.Close()

	var boosts []Boost
	for rows.Next() {
		var b Boost
		if err := rows.Scan(&b.ID, &b.PlayerID, &b.Type, &b.Multiplier, &b.ActivatedAt, &b.ExpiresAt); err != nil {
			return nil, storeError("list boosts", err)
		}
		boosts = append(boosts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list boosts", err)
	}
	return boosts, nil
}

// ActivateBoost serialises activations per player on the player row so two
// concurrent purchases of the same boost extend one row.
func (s *pgStore) ActivateBoost(ctx context.Context, a BoostActivation) (Boost, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Boost{}, storeError("activate boost", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `
		SELECT player_id FROM players WHERE player_id = $1 FOR UPDATE
	`, a.PlayerID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return Boost{}, ErrPlayerNotFound
	}
	if err != nil {
		return Boost{}, storeError("activate boost", err)
	}

	b := Boost{PlayerID: a.PlayerID, Type: a.Type, Multiplier: a.Multiplier}
	seconds := int64(a.Duration / time.Second)

	err = tx.QueryRowContext(ctx, `
		UPDATE player_boosts
		SET expires_at = expires_at + ($5::double precision * INTERVAL '1 second')
		WHERE id = (
			SELECT id FROM player_boosts
			WHERE player_id = $1 AND boost_type = $2 AND multiplier = $3 AND expires_at > $4
			ORDER BY expires_at DESC
			LIMIT 1
		)
		RETURNING id, activated_at, expires_at
	`, a.PlayerID, string(a.Type), a.Multiplier, a.At, seconds).Scan(&b.ID, &b.ActivatedAt, &b.ExpiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b.ID = uuid.New()
		b.ActivatedAt = a.At
		b.ExpiresAt = a.At.Add(a.Duration)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_boosts (id, player_id, boost_type, multiplier, activated_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, b.ID, a.PlayerID, string(a.Type), a.Multiplier, b.ActivatedAt, b.ExpiresAt); err != nil {
			return Boost{}, storeError("activate boost", err)
		}
	case err != nil:
		return Boost{}, storeError("activate boost", err)
	}

	if err := tx.Commit(); err != nil {
		return Boost{}, storeError("activate boost", err)
	}
	return b, nil
}
