package main

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the economy surface used by the HTTP handlers, the socket
// gateway and the purchase collaborator.
type Engine struct {
	store      EconomyStore
	energy     *EnergyCache
	limiter    *ClickRateLimiter
	boosts     *BoostLedger
	clicks     *ClickProcessor
	autoIncome *AutoIncome
	ownership  Ownership
	flags      FeatureFlags
	clock      Clock
	cfg        EconomyConfig
	logger     *slog.Logger
}

type EngineDeps struct {
	Store      EconomyStore
	Ownership  Ownership
	Activity   ActivityStore
	Progress   ProgressPublisher
	Violations ViolationLog
	Clock      Clock
	Flags      FeatureFlags
	Logger     *slog.Logger
}

func NewEngine(cfg EconomyConfig, deps EngineDeps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	violations := deps.Violations
	if violations == nil {
		violations = discardViolations{}
	}

	energy := NewEnergyCache(deps.Store, clock, cfg.EnergySyncInterval, logger)
	limiter := NewClickRateLimiter(clock, cfg.RateWindow, cfg.MaxClicksPerWindow)
	boosts := NewBoostLedger(deps.Store, clock, cfg)

	return &Engine{
		store:   deps.Store,
		energy:  energy,
		limiter: limiter,
		boosts:  boosts,
		clicks: &ClickProcessor{
			store:      deps.Store,
			energy:     energy,
			limiter:    limiter,
			validator:  NewClickValidator(clock, cfg),
			boosts:     boosts,
			activity:   deps.Activity,
			events:     deps.Progress,
			violations: violations,
			clock:      clock,
			energyCap:  cfg.EnergyCapPerClick,
			logger:     logger,
		},
		autoIncome: NewAutoIncome(deps.Store, deps.Ownership, deps.Activity, clock, cfg, logger),
		ownership:  deps.Ownership,
		flags:      deps.Flags,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

func (e *Engine) ProcessClickBatch(ctx context.Context, req ClickRequest) (ClickResult, error) {
	return e.clicks.Process(ctx, req)
}

// ReadCachedEnergy never touches the store; a miss means no recent activity.
func (e *Engine) ReadCachedEnergy(playerID string) (EnergyReading, bool) {
	return e.energy.Read(playerID)
}

func (e *Engine) ActiveBoosts(ctx context.Context, playerID string) ([]ActiveBoost, error) {
	if err := checkPlayerID(playerID); err != nil {
		return nil, err
	}
	return e.boosts.ActiveBoosts(ctx, playerID)
}

func (e *Engine) CurrentMultiplier(ctx context.Context, playerID string) (float64, error) {
	return e.boosts.CurrentMultiplier(ctx, playerID)
}

func (e *Engine) ActivateBoost(ctx context.Context, playerID string, boostType BoostType, multiplier float64, durationSeconds int64) (ActiveBoost, error) {
	boost, err := e.boosts.Activate(ctx, playerID, boostType, multiplier, durationSeconds)
	if err != nil {
		return ActiveBoost{}, err
	}
	e.logger.Info("boost activated", "player_id", playerID, "type", boostType, "multiplier", boost.Multiplier, "ends_at", boost.EndsAt)
	return boost, nil
}

// DeductCoins debits amount only when the balance covers it.
func (e *Engine) DeductCoins(ctx context.Context, playerID string, amount int64) (int64, error) {
	if err := checkCoinAmount(playerID, amount); err != nil {
		return 0, err
	}
	remaining, ok, err := e.store.DebitCoins(ctx, playerID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return remaining, &EconomyError{
			Kind:      KindInsufficientFunds,
			Message:   "not enough coins",
			Required:  amount,
			Available: remaining,
		}
	}
	return remaining, nil
}

func (e *Engine) AddCoins(ctx context.Context, playerID string, amount int64) (int64, error) {
	if err := checkCoinAmount(playerID, amount); err != nil {
		return 0, err
	}
	return e.store.CreditCoins(ctx, playerID, amount)
}

// CreditConnected pays connected auto-income; ok is false when nothing was
// credited.
func (e *Engine) CreditConnected(ctx context.Context, playerID string) (AutoIncomeCredit, bool, error) {
	if !e.flags.AutoIncome {
		return AutoIncomeCredit{}, false, nil
	}
	return e.autoIncome.CreditConnected(ctx, playerID)
}

func (e *Engine) Disconnect(playerID string) {
	e.autoIncome.Disconnect(playerID)
}

type GameState struct {
	PlayerID            string        `json:"playerId"`
	Coins               int64         `json:"coins"`
	Energy              int64         `json:"energy"`
	MaxEnergy           int64         `json:"maxEnergy"`
	EnergyRegenRate     int64         `json:"energyRegenRate"`
	ClickPower          int64         `json:"clickPower"`
	Level               int           `json:"level"`
	Experience          int64         `json:"experience"`
	NextLevelExperience int64         `json:"nextLevelExperience"`
	TotalTaps           int64         `json:"totalTaps"`
	AutoIncomeLevel     int           `json:"autoIncomeLevel"`
	AutoIncomePerHour   int64         `json:"autoIncomePerHour"`
	OfflineEarnings     int64         `json:"offlineEarnings"`
	ActiveBoosts        []ActiveBoost `json:"activeBoosts"`
	CurrentMultiplier   float64       `json:"currentMultiplier"`
	ServerTime          time.Time     `json:"serverTime"`
}

// GameState loads the player's economy snapshot, creating the record on first
// contact and collecting any offline auto-income first.
func (e *Engine) GameState(ctx context.Context, playerID string) (GameState, error) {
	if err := checkPlayerID(playerID); err != nil {
		return GameState{}, err
	}

	state, err := e.store.EnsurePlayer(ctx, playerID, e.clock.Now())
	if err != nil {
		return GameState{}, err
	}

	var offline int64
	if e.flags.AutoIncome && e.flags.OfflineEarnings {
		earned, err := e.autoIncome.CollectOffline(ctx, playerID)
		if err != nil {
			e.logger.Warn("offline earnings failed", "player_id", playerID, "error", err)
		} else if earned > 0 {
			offline = earned
			if fresh, err := e.store.LoadPlayer(ctx, playerID); err == nil {
				state = fresh
			}
		}
	}

	now := e.clock.Now()
	if e.energy.NeedsSync(playerID) {
		e.energy.refreshFrom(state, now)
	}
	energy, ok := e.energy.Get(playerID)
	if !ok {
		energy = RegenerateEnergy(state.Energy, state.MaxEnergy, state.RegenRate, state.LastEnergyUpdate, now)
	}

	boosts, err := e.boosts.ActiveBoosts(ctx, playerID)
	if err != nil {
		return GameState{}, err
	}

	autoLevel, err := e.ownership.AutoIncomeLevel(ctx, playerID)
	if err != nil {
		e.logger.Warn("auto-income level lookup failed", "player_id", playerID, "error", err)
		autoLevel = 0
	}

	level := CalculateLevel(state.Experience)
	if level < state.Level {
		level = state.Level
	}

	return GameState{
		PlayerID:            state.PlayerID,
		Coins:               state.Coins,
		Energy:              energy,
		MaxEnergy:           state.MaxEnergy,
		EnergyRegenRate:     state.RegenRate,
		ClickPower:          state.ClickPower,
		Level:               level,
		Experience:          state.Experience,
		NextLevelExperience: ExperienceToReach(level + 1),
		TotalTaps:           state.TotalTaps,
		AutoIncomeLevel:     autoLevel,
		AutoIncomePerHour:   CumulativeThroughput(autoLevel),
		OfflineEarnings:     offline,
		ActiveBoosts:        boosts,
		CurrentMultiplier:   EffectiveMultiplier(boosts),
		ServerTime:          now,
	}, nil
}

// sweep drops idle per-player state; it runs on the janitor interval.
func (e *Engine) sweep(idleFor time.Duration) (limits, energy, boosts, credits int) {
	return e.limiter.Forget(idleFor), e.energy.Evict(idleFor), e.boosts.Purge(idleFor), e.autoIncome.Forget(idleFor)
}
