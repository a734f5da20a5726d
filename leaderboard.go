package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	PlayerID  string `json:"playerId"`
	Coins     int64  `json:"coins"`
	TotalTaps int64  `json:"totalTaps"`
	Level     int    `json:"level"`
}

type LeaderboardResponse struct {
	Sort     string             `json:"sort"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Total    int                `json:"total"`
	Results  []LeaderboardEntry `json:"results"`
}

type leaderboardFilters struct {
	Sort     string
	Page     int
	PageSize int
}

type leaderboardReader interface {
	Leaderboard(ctx context.Context, filters leaderboardFilters) (LeaderboardResponse, error)
}

func (s *server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	if s.board == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{OK: false, Error: "not_found"})
		return
	}
	page, err := s.board.Leaderboard(r.Context(), parseLeaderboardFilters(r))
	if err != nil {
		s.writeError(w, r, storeError("leaderboard", err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseLeaderboardFilters(r *http.Request) leaderboardFilters {
	query := r.URL.Query()
	pageSize := parsePositiveInt(query.Get("pageSize"), 50)
	if pageSize > 200 {
		pageSize = 200
	}
	sortKey, _ := leaderboardOrderBy(strings.TrimSpace(query.Get("sort")))
	return leaderboardFilters{
		Sort:     sortKey,
		Page:     parsePositiveInt(query.Get("page"), 1),
		PageSize: pageSize,
	}
}

// leaderboardOrderBy maps a sort key to its ORDER BY clause. Unknown keys
// fall back to coins.
func leaderboardOrderBy(sortKey string) (string, string) {
	switch sortKey {
	case "taps":
		return "taps", "total_taps DESC, coins DESC, created_at ASC, player_id ASC"
	case "level":
		return "level", "level DESC, experience DESC, created_at ASC, player_id ASC"
	default:
		return "coins", "coins DESC, total_taps DESC, created_at ASC, player_id ASC"
	}
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func (s *pgStore) Leaderboard(ctx context.Context, filters leaderboardFilters) (LeaderboardResponse, error) {
	sortKey, orderBy := leaderboardOrderBy(filters.Sort)
	resp := LeaderboardResponse{
		Sort:     sortKey,
		Page:     filters.Page,
		PageSize: filters.PageSize,
		Results:  []LeaderboardEntry{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&resp.Total); err != nil {
		return LeaderboardResponse{}, err
	}

	offset := (filters.Page - 1) * filters.PageSize
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			ROW_NUMBER() OVER (ORDER BY %s) AS rank,
			player_id,
			coins,
			total_taps,
			level
		FROM players
		ORDER BY %s
		LIMIT $1 OFFSET $2
	`, orderBy, orderBy), filters.PageSize, offset)
	if err != nil {
		return LeaderboardResponse{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Rank, &entry.PlayerID, &entry.Coins, &entry.TotalTaps, &entry.Level); err != nil {
			return LeaderboardResponse{}, err
		}
		resp.Results = append(resp.Results, entry)
	}
	return resp, rows.Err()
}
