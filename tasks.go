package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const maxTaskDelta = 100

// pgTaskProgress advances every active objective of a kind. Objective ids
// are cached per kind and reloaded on an interval.
type pgTaskProgress struct {
	db     *sql.DB
	clock  Clock
	logger *slog.Logger

	mu         sync.RWMutex
	objectives map[string][]uuid.UUID
}

func newPGTaskProgress(db *sql.DB, clock Clock, logger *slog.Logger) *pgTaskProgress {
	return &pgTaskProgress{
		db:         db,
		clock:      clock,
		logger:     logger,
		objectives: make(map[string][]uuid.UUID),
	}
}

func (t *pgTaskProgress) Refresh(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, `
		SELECT task_id, task_type
		FROM tasks
		WHERE is_active AND task_type = ANY($1)
	`, pq.Array([]string{ObjectiveTaps, ObjectiveEarnCoins}))
	if err != nil {
		return err
	}
	defer rows.Close()

	loaded := make(map[string][]uuid.UUID)
	for rows.Next() {
		var id uuid.UUID
		var kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return err
		}
		loaded[kind] = append(loaded[kind], id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.objectives = loaded
	t.mu.Unlock()
	return nil
}

func (t *pgTaskProgress) NotifyProgress(ctx context.Context, playerID string, kind string, amount int64) error {
	t.mu.RLock()
	ids := t.objectives[kind]
	t.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := t.updateProgress(ctx, playerID, id, amount); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (t *pgTaskProgress) updateProgress(ctx context.Context, playerID string, taskID uuid.UUID, delta int64) error {
	if delta <= 0 {
		return nil
	}
	if delta > maxTaskDelta {
		return fmt.Errorf("progress delta %d exceeds %d", delta, maxTaskDelta)
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO player_tasks (player_id, task_id, progress, completed, updated_at)
		SELECT $1, t.task_id, $3::bigint, $3::bigint >= t.requirement, $4
		FROM tasks t
		WHERE t.task_id = $2 AND t.is_active
		ON CONFLICT (player_id, task_id) DO UPDATE SET
			progress = player_tasks.progress + EXCLUDED.progress,
			completed = player_tasks.completed
				OR player_tasks.progress + EXCLUDED.progress >= (SELECT requirement FROM tasks WHERE task_id = $2),
			updated_at = EXCLUDED.updated_at
	`, playerID, taskID, delta, t.clock.Now())
	return err
}

type catalogTask struct {
	Name        string
	Period      string
	Kind        string
	Requirement int64
	RewardCoins int64
}

var taskCatalog = []catalogTask{
	{Name: "Tap 1000 times", Period: "daily", Kind: ObjectiveTaps, Requirement: 1000, RewardCoins: 500},
	{Name: "Earn 5000 coins", Period: "daily", Kind: ObjectiveEarnCoins, Requirement: 5000, RewardCoins: 1000},
	{Name: "Tap 10000 times", Period: "weekly", Kind: ObjectiveTaps, Requirement: 10000, RewardCoins: 5000},
}

func seedTaskCatalog(ctx context.Context, db *sql.DB) error {
	for _, task := range taskCatalog {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO tasks (task_id, name, period, task_type, requirement, reward_coins)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name) DO NOTHING
		`, uuid.New(), task.Name, task.Period, task.Kind, task.Requirement, task.RewardCoins); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTaskProgress) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				t.logger.Warn("task objective reload failed", "error", err)
			}
		}
	}
}
