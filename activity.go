package main

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisActivity stores the last-active marker as unix seconds under
// player:<id>:last_active_at.
type redisActivity struct {
	client *redis.Client
}

func newRedisActivity(client *redis.Client) *redisActivity {
	return &redisActivity{client: client}
}

func activityKey(playerID string) string {
	return "player:" + playerID + ":last_active_at"
}

func (a *redisActivity) LastActive(ctx context.Context, playerID string) (time.Time, bool, error) {
	raw, err := a.client.Get(ctx, activityKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storeError("read last active", err)
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// a corrupt marker counts as absent; the next touch rewrites it
		return time.Time{}, false, nil
	}
	return time.Unix(seconds, 0).UTC(), true, nil
}

func (a *redisActivity) Touch(ctx context.Context, playerID string, at time.Time) error {
	err := a.client.Set(ctx, activityKey(playerID), strconv.FormatInt(at.Unix(), 10), 0).Err()
	return storeError("touch last active", err)
}

// pgActivity keeps the marker on players.last_active_at when no Redis is
// configured.
type pgActivity struct {
	db *sql.DB
}

func (a *pgActivity) LastActive(ctx context.Context, playerID string) (time.Time, bool, error) {
	var last sql.NullTime
	err := a.db.QueryRowContext(ctx, `
		SELECT last_active_at FROM players WHERE player_id = $1
	`, playerID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storeError("read last active", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time.UTC(), true, nil
}

func (a *pgActivity) Touch(ctx context.Context, playerID string, at time.Time) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE players SET last_active_at = $2 WHERE player_id = $1
	`, playerID, at.Truncate(time.Second))
	return storeError("touch last active", err)
}
