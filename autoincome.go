package main

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

const maxAutoIncomeLevel = 5

// coins per hour added by each auto-clicker level
var autoIncomeThroughput = [maxAutoIncomeLevel + 1]int64{0, 1000, 1500, 2500, 4000, 6000}

type Ownership interface {
	AutoIncomeLevel(ctx context.Context, playerID string) (int, error)
	HasPassiveBoostUpgrade(ctx context.Context, playerID string) (bool, error)
}

// ActivityStore holds the last-active marker that bounds offline earnings.
type ActivityStore interface {
	LastActive(ctx context.Context, playerID string) (time.Time, bool, error)
	Touch(ctx context.Context, playerID string, at time.Time) error
}

type coinCreditor interface {
	CreditCoins(ctx context.Context, playerID string, amount int64) (int64, error)
}

type AutoIncomeCredit struct {
	Coins  int64 `json:"coins"`
	Earned int64 `json:"earned"`
}

type AutoIncome struct {
	store      coinCreditor
	ownership  Ownership
	activity   ActivityStore
	clock      Clock
	maxOffline time.Duration
	assistant  float64
	interval   time.Duration
	locks      *KeyedMutex
	logger     *slog.Logger

	mu          sync.Mutex
	lastCredits map[string]time.Time
}

func NewAutoIncome(store coinCreditor, ownership Ownership, activity ActivityStore, clock Clock, cfg EconomyConfig, logger *slog.Logger) *AutoIncome {
	return &AutoIncome{
		store:       store,
		ownership:   ownership,
		activity:    activity,
		clock:       clock,
		maxOffline:  cfg.MaxOffline,
		assistant:   cfg.AssistantMultiplier,
		interval:    cfg.AutoIncomeInterval,
		locks:       NewKeyedMutex(),
		logger:      logger,
		lastCredits: make(map[string]time.Time),
	}
}

func ThroughputForLevel(level int) int64 {
	if level < 1 || level > maxAutoIncomeLevel {
		return 0
	}
	return autoIncomeThroughput[level]
}

// CumulativeThroughput sums the per-level rates for levels 1 through level.
func CumulativeThroughput(level int) int64 {
	if level > maxAutoIncomeLevel {
		level = maxAutoIncomeLevel
	}
	var total int64
	for l := 1; l <= level; l++ {
		total += autoIncomeThroughput[l]
	}
	return total
}

func (a *AutoIncome) OfflineSeconds(ctx context.Context, playerID string) (int64, error) {
	last, ok, err := a.activity.LastActive(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	seconds := a.clock.Now().Unix() - last.Unix()
	if seconds < 0 {
		return 0, nil
	}
	if limit := int64(a.maxOffline / time.Second); seconds > limit {
		return limit, nil
	}
	return seconds, nil
}

// ComputeEarnings prices the current offline span. It has no side effects.
func (a *AutoIncome) ComputeEarnings(ctx context.Context, playerID string, coinsPerHour int64) (int64, error) {
	if coinsPerHour <= 0 {
		return 0, nil
	}
	offline, err := a.OfflineSeconds(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if offline == 0 {
		return 0, nil
	}

	multiplier := 1.0
	upgraded, err := a.ownership.HasPassiveBoostUpgrade(ctx, playerID)
	if err != nil {
		a.logger.Warn("passive boost lookup failed", "player_id", playerID, "error", err)
	} else if upgraded {
		multiplier = a.assistant
	}

	return int64(math.Floor(float64(coinsPerHour) / 3600 * float64(offline) * multiplier)), nil
}

func (a *AutoIncome) ApplyEarnings(ctx context.Context, playerID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, nil
	}
	return a.store.CreditCoins(ctx, playerID, amount)
}

func (a *AutoIncome) level(ctx context.Context, playerID string) (int, error) {
	level, err := a.ownership.AutoIncomeLevel(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if level < 0 {
		return 0, nil
	}
	if level > maxAutoIncomeLevel {
		return maxAutoIncomeLevel, nil
	}
	return level, nil
}

// CollectOffline credits the earnings accrued since the last-active marker
// and moves the marker to now so the same span is never paid twice. It also
// moves the connected credit clock, so a tick right after a collection only
// pays the seconds since the collection.
func (a *AutoIncome) CollectOffline(ctx context.Context, playerID string) (int64, error) {
	unlock := a.locks.Lock(playerID)
	defer unlock()

	level, err := a.level(ctx, playerID)
	if err != nil || level == 0 {
		return 0, err
	}
	earned, err := a.ComputeEarnings(ctx, playerID, CumulativeThroughput(level))
	if err != nil || earned <= 0 {
		return 0, err
	}
	if _, err := a.ApplyEarnings(ctx, playerID, earned); err != nil {
		return 0, err
	}
	now := a.clock.Now()
	a.markPaid(playerID, now)
	if err := a.activity.Touch(ctx, playerID, now); err != nil {
		a.logger.Warn("last-active reset failed after offline credit", "player_id", playerID, "error", err)
	}
	a.logger.Info("offline earnings applied", "player_id", playerID, "level", level, "earned", earned)
	return earned, nil
}

// CreditConnected pays auto-income for the time since this player was last
// paid by either path, capped at one interval. Several connections for the
// same player share that clock, so time is never paid twice.
func (a *AutoIncome) CreditConnected(ctx context.Context, playerID string) (AutoIncomeCredit, bool, error) {
	unlock := a.locks.Lock(playerID)
	defer unlock()

	level, err := a.level(ctx, playerID)
	if err != nil || level == 0 {
		return AutoIncomeCredit{}, false, err
	}

	now := a.clock.Now()
	span := a.interval
	a.mu.Lock()
	last, seen := a.lastCredits[playerID]
	a.mu.Unlock()
	if seen {
		span = now.Sub(last)
		if span < a.interval/2 {
			return AutoIncomeCredit{}, false, nil
		}
		if span > a.interval-a.interval/10 {
			span = a.interval
		}
	}

	earned := int64(math.Floor(float64(CumulativeThroughput(level)) / 3600 * span.Seconds()))
	if earned <= 0 {
		return AutoIncomeCredit{}, false, nil
	}
	total, err := a.store.CreditCoins(ctx, playerID, earned)
	if err != nil {
		return AutoIncomeCredit{}, false, err
	}

	a.markPaid(playerID, now)
	if err := a.activity.Touch(ctx, playerID, now); err != nil {
		a.logger.Warn("last-active touch failed after connected credit", "player_id", playerID, "error", err)
	}
	return AutoIncomeCredit{Coins: total, Earned: earned}, true, nil
}

// Disconnect forgets the connected credit clock once no connection remains.
func (a *AutoIncome) Disconnect(playerID string) {
	a.mu.Lock()
	delete(a.lastCredits, playerID)
	a.mu.Unlock()
}

// markPaid records the instant auto-income has been paid through. Callers
// hold the player's lock.
func (a *AutoIncome) markPaid(playerID string, at time.Time) {
	a.mu.Lock()
	a.lastCredits[playerID] = at
	a.mu.Unlock()
}

// Forget drops credit clocks not advanced for idleFor. Players who only poll
// state never disconnect, so their entries are reclaimed here.
func (a *AutoIncome) Forget(idleFor time.Duration) int {
	cutoff := a.clock.Now().Add(-idleFor)

	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for id, last := range a.lastCredits {
		if last.Before(cutoff) {
			delete(a.lastCredits, id)
			removed++
		}
	}
	return removed
}
