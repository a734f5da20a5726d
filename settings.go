package main

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// LoadEconomySettings overlays tunables stored in global_settings onto cfg.
// Unknown keys and unparsable values are ignored.
func LoadEconomySettings(ctx context.Context, db *sql.DB, cfg *EconomyConfig) error {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value
		FROM global_settings
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		applySetting(cfg, key, value)
	}
	return rows.Err()
}

func applySetting(target *EconomyConfig, key string, value string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "max_clicks_per_window":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			target.MaxClicksPerWindow = v
		}
	case "rate_window_ms":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			target.RateWindow = time.Duration(v) * time.Millisecond
		}
	case "energy_cap_per_click":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			target.EnergyCapPerClick = v
		}
	case "min_click_interval_ms":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 {
			target.MinClickInterval = time.Duration(v) * time.Millisecond
		}
	case "energy_sync_interval_seconds":
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			target.EnergySyncInterval = time.Duration(v) * time.Second
		}
	case "max_offline_seconds":
		if v, err := strconv.Atoi(value); err == nil && v >= 0 {
			target.MaxOffline = time.Duration(v) * time.Second
		}
	case "assistant_multiplier":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 1 {
			target.AssistantMultiplier = v
		}
	case "serve_empty_boost_cache":
		if v, err := parseBool(value); err == nil {
			target.ServeEmptyBoostCache = v
		}
	}
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
