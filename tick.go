package main

import (
	"context"
	"log/slog"
	"time"
)

// startJanitor periodically drops per-player state that has been idle for
// longer than idleFor, keeping the process-local caches bounded.
func startJanitor(ctx context.Context, engine *Engine, interval, idleFor time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limits, energy, boosts, credits := engine.sweep(idleFor)
				if limits+energy+boosts+credits > 0 {
					logger.Debug("janitor sweep", "rate_windows", limits, "energy_entries", energy, "boost_entries", boosts, "credit_clocks", credits)
				}
			}
		}
	}()
}
