package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const startupAdvisoryLockID int64 = 824173921

// acquireStartupLock takes a session-level advisory lock on a dedicated
// connection. The holder keeps the connection open for its lifetime.
func acquireStartupLock(ctx context.Context, db *sql.DB) (*sql.Conn, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, startupAdvisoryLockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

// seedCatalogs inserts the service and task rows the economy depends on.
// Inserts are idempotent, so a leader restart is harmless.
func seedCatalogs(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := seedServiceCatalog(ctx, db); err != nil {
		return fmt.Errorf("seeding services: %w", err)
	}
	if err := seedTaskCatalog(ctx, db); err != nil {
		return fmt.Errorf("seeding tasks: %w", err)
	}
	logger.Info("catalogs seeded", "services", len(serviceCatalog), "tasks", len(taskCatalog))
	return nil
}
