package main

import (
	"slices"
	"time"
)

// ClickValidator checks that a submitted batch is plausible. It reports the
// first violation and never adjusts the batch.
type ClickValidator struct {
	clock           Clock
	maxClicks       int
	futureTolerance time.Duration
	maxAge          time.Duration
	minInterval     time.Duration
}

func NewClickValidator(clock Clock, cfg EconomyConfig) *ClickValidator {
	return &ClickValidator{
		clock:           clock,
		maxClicks:       cfg.MaxClicksPerWindow,
		futureTolerance: cfg.TimestampFutureTolerance,
		maxAge:          cfg.TimestampMaxAge,
		minInterval:     cfg.MinClickInterval,
	}
}

// Validate checks clickCount and the optional client timestamps, given in
// unix milliseconds.
func (v *ClickValidator) Validate(clickCount int, timestamps []int64) error {
	if clickCount < 1 || clickCount > v.maxClicks {
		return invalidInput(ReasonInvalidCount, "click count must be between 1 and %d", v.maxClicks)
	}
	if len(timestamps) == 0 {
		return nil
	}
	if len(timestamps) != clickCount {
		return invalidInput(ReasonCountMismatch, "got %d timestamps for %d clicks", len(timestamps), clickCount)
	}

	now := v.clock.Now().UnixMilli()
	latest := now + v.futureTolerance.Milliseconds()
	earliest := now - v.maxAge.Milliseconds()
	for _, ts := range timestamps {
		if ts > latest || ts < earliest {
			return antiCheat(ReasonInvalidTimestamp, "timestamp %d outside accepted range", ts)
		}
	}

	if clickCount > 1 {
		sorted := slices.Clone(timestamps)
		slices.Sort(sorted)
		avg := float64(sorted[len(sorted)-1]-sorted[0]) / float64(len(sorted)-1)
		if avg < float64(v.minInterval.Milliseconds()) {
			return antiCheat(ReasonTooFast, "average click interval %.1fms below %dms", avg, v.minInterval.Milliseconds())
		}
	}
	return nil
}
