package main

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"
)

const maxViolationsListed = 200

// ClickViolation is one click batch rejected by the anti-cheat checks.
type ClickViolation struct {
	PlayerID  string    `json:"playerId"`
	Reason    string    `json:"reason"`
	Clicks    int       `json:"clicks"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// ViolationLog keeps flagged batches for offline review.
type ViolationLog interface {
	RecordViolation(ctx context.Context, v ClickViolation) error
}

type violationReader interface {
	RecentViolations(ctx context.Context, playerID string, limit int) ([]ClickViolation, error)
}

type pgViolationLog struct {
	db *sql.DB
}

func (l *pgViolationLog) RecordViolation(ctx context.Context, v ClickViolation) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO click_violations (player_id, reason, clicks, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.PlayerID, v.Reason, v.Clicks, v.Detail, v.CreatedAt)
	return err
}

func (l *pgViolationLog) RecentViolations(ctx context.Context, playerID string, limit int) ([]ClickViolation, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT player_id, reason, clicks, detail, created_at
		FROM click_violations
		WHERE ($1 = '' OR player_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ClickViolation{}
	for rows.Next() {
		var v ClickViolation
		if err := rows.Scan(&v.PlayerID, &v.Reason, &v.Clicks, &v.Detail, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = v.CreatedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

type discardViolations struct{}

func (discardViolations) RecordViolation(context.Context, ClickViolation) error {
	return nil
}

func (s *server) violationsHandler(w http.ResponseWriter, r *http.Request) {
	if s.violations == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{OK: false, Error: "not_found"})
		return
	}
	query := r.URL.Query()
	playerID := strings.TrimSpace(query.Get("playerId"))
	if playerID != "" {
		if err := checkPlayerID(playerID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	limit := parsePositiveInt(query.Get("limit"), 50)
	if limit > maxViolationsListed {
		limit = maxViolationsListed
	}

	violations, err := s.violations.RecentViolations(r.Context(), playerID, limit)
	if err != nil {
		s.writeError(w, r, storeError("list violations", err))
		return
	}
	writeJSON(w, http.StatusOK, violations)
}
