package main

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	minBoostMultiplier = decimal.NewFromInt(1)
	maxBoostMultiplier = decimal.NewFromInt(3)
)

type ActiveBoost struct {
	Type             BoostType `json:"type"`
	Multiplier       float64   `json:"multiplier"`
	EndsAt           time.Time `json:"endsAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

type boostStore interface {
	ActiveBoosts(ctx context.Context, playerID string, now time.Time) ([]Boost, error)
	ActivateBoost(ctx context.Context, activation BoostActivation) (Boost, error)
}

// BoostLedger resolves a player's active boosts with a short-lived cache.
// Only the strongest active boost applies; boosts never multiply together.
type BoostLedger struct {
	store      boostStore
	cache      PlayerCache[[]ActiveBoost]
	clock      Clock
	emptyTTL   time.Duration
	serveEmpty bool
}

func NewBoostLedger(store boostStore, clock Clock, cfg EconomyConfig) *BoostLedger {
	return &BoostLedger{
		store:      store,
		cache:      newMemoryCache[[]ActiveBoost](clock),
		clock:      clock,
		emptyTTL:   cfg.EmptyBoostCacheTTL,
		serveEmpty: cfg.ServeEmptyBoostCache,
	}
}

func (b *BoostLedger) ActiveBoosts(ctx context.Context, playerID string) ([]ActiveBoost, error) {
	now := b.clock.Now()
	if cached, ok := b.cache.Get(playerID); ok && (len(cached) > 0 || b.serveEmpty) {
		return withRemaining(cached, now), nil
	}

	rows, err := b.store.ActiveBoosts(ctx, playerID, now)
	if err != nil {
		return nil, err
	}

	active := make([]ActiveBoost, 0, len(rows))
	var soonest time.Time
	for _, row := range rows {
		if !row.ExpiresAt.After(now) {
			continue
		}
		active = append(active, ActiveBoost{
			Type:       row.Type,
			Multiplier: row.Multiplier.InexactFloat64(),
			EndsAt:     row.ExpiresAt,
		})
		if soonest.IsZero() || row.ExpiresAt.Before(soonest) {
			soonest = row.ExpiresAt
		}
	}

	ttl := b.emptyTTL
	if len(active) > 0 {
		ttl = soonest.Sub(now)
	}
	b.cache.Set(playerID, active, ttl)
	return withRemaining(active, now), nil
}

func withRemaining(boosts []ActiveBoost, now time.Time) []ActiveBoost {
	out := make([]ActiveBoost, 0, len(boosts))
	for _, boost := range boosts {
		if !boost.EndsAt.After(now) {
			continue
		}
		boost.RemainingSeconds = int64(math.Ceil(boost.EndsAt.Sub(now).Seconds()))
		out = append(out, boost)
	}
	return out
}

// EffectiveMultiplier is the strongest active multiplier, or 1.
func EffectiveMultiplier(boosts []ActiveBoost) float64 {
	best := 1.0
	for _, boost := range boosts {
		if boost.Multiplier > best {
			best = boost.Multiplier
		}
	}
	return best
}

func (b *BoostLedger) CurrentMultiplier(ctx context.Context, playerID string) (float64, error) {
	boosts, err := b.ActiveBoosts(ctx, playerID)
	if err != nil {
		return 1, err
	}
	return EffectiveMultiplier(boosts), nil
}

// Activate grants a boost. An active boost with the same type and
// multiplier is extended by duration instead of stacking a second row.
func (b *BoostLedger) Activate(ctx context.Context, playerID string, boostType BoostType, multiplier float64, durationSeconds int64) (ActiveBoost, error) {
	if err := checkPlayerID(playerID); err != nil {
		return ActiveBoost{}, err
	}
	if !boostType.Valid() {
		return ActiveBoost{}, invalidInput("invalid_boost_type", "unknown boost type %q", boostType)
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return ActiveBoost{}, invalidInput("invalid_multiplier", "multiplier must be a number")
	}
	m := decimal.NewFromFloat(multiplier).Round(2)
	if m.LessThan(minBoostMultiplier) || m.GreaterThan(maxBoostMultiplier) {
		return ActiveBoost{}, invalidInput("invalid_multiplier", "multiplier must be between %s and %s", minBoostMultiplier, maxBoostMultiplier)
	}
	if durationSeconds < 1 {
		return ActiveBoost{}, invalidInput("invalid_duration", "duration must be at least one second")
	}

	now := b.clock.Now()
	boost, err := b.store.ActivateBoost(ctx, BoostActivation{
		PlayerID:   playerID,
		Type:       boostType,
		Multiplier: m,
		Duration:   time.Duration(durationSeconds) * time.Second,
		At:         now,
	})
	b.Invalidate(playerID)
	if err != nil {
		return ActiveBoost{}, err
	}

	return ActiveBoost{
		Type:             boost.Type,
		Multiplier:       boost.Multiplier.InexactFloat64(),
		EndsAt:           boost.ExpiresAt,
		RemainingSeconds: int64(math.Ceil(boost.ExpiresAt.Sub(now).Seconds())),
	}, nil
}

func (b *BoostLedger) Invalidate(playerID string) {
	b.cache.Invalidate(playerID)
}

func (b *BoostLedger) Purge(idleFor time.Duration) int {
	return b.cache.Purge(idleFor)
}
