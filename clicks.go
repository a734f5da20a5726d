package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
)

type ClickRequest struct {
	PlayerID      string  `json:"-"`
	Clicks        int     `json:"clicks"`
	Timestamps    []int64 `json:"timestamps,omitempty"`
	CoinsPerClick int64   `json:"coinsPerClick,omitempty"`
}

type ClickResult struct {
	Success           bool    `json:"success"`
	Coins             int64   `json:"coins"`
	Energy            int64   `json:"energy"`
	TotalTaps         int64   `json:"total_taps"`
	Earned            int64   `json:"earned"`
	CurrentMultiplier float64 `json:"currentMultiplier"`
}

type clickPlan struct {
	EnergyNeeded int64
	CoinsEarned  int64
}

// planClick prices a batch. Energy per click is capped so boosts raise
// earnings without draining energy faster than the cap.
func planClick(clicks int, coinsPerClick int64, multiplier, energyCap float64) clickPlan {
	energyPerClick := math.Min(float64(coinsPerClick)*multiplier, energyCap)
	// trim float noise such as 3*1.1 = 3.3000000000000003 before rounding
	needed := math.Ceil(float64(clicks)*energyPerClick - 1e-9)
	earned := math.Floor(float64(clicks)*float64(coinsPerClick)*multiplier + 1e-9)
	return clickPlan{
		EnergyNeeded: int64(needed),
		CoinsEarned:  int64(earned),
	}
}

// ClickProcessor turns a click batch into one conditional store write.
// Nothing is written unless every check before the debit passes.
type ClickProcessor struct {
	store      EconomyStore
	energy     *EnergyCache
	limiter    *ClickRateLimiter
	validator  *ClickValidator
	boosts     *BoostLedger
	activity   ActivityStore
	events     ProgressPublisher
	violations ViolationLog
	clock      Clock
	energyCap  float64
	logger     *slog.Logger
}

func (p *ClickProcessor) Process(ctx context.Context, req ClickRequest) (ClickResult, error) {
	if err := checkPlayerID(req.PlayerID); err != nil {
		return ClickResult{}, err
	}
	coinsPerClick := req.CoinsPerClick
	if coinsPerClick == 0 {
		coinsPerClick = 1
	}
	if coinsPerClick < 1 {
		return ClickResult{}, invalidInput("invalid_coins_per_click", "coinsPerClick must be at least 1")
	}

	if !p.limiter.Allow(req.PlayerID) {
		p.logger.Debug("click batch rate limited", "player_id", req.PlayerID, "clicks", req.Clicks)
		return ClickResult{}, &EconomyError{Kind: KindRateLimited, Message: "too many click batches"}
	}

	if err := p.validator.Validate(req.Clicks, req.Timestamps); err != nil {
		if errors.Is(err, ErrAntiCheat) {
			p.logger.Warn("click batch rejected", "player_id", req.PlayerID, "clicks", req.Clicks, "error", err, "flagged", true)
			p.flag(ctx, req, err)
		}
		return ClickResult{}, err
	}

	now := p.clock.Now()
	state, err := p.store.LoadPlayer(ctx, req.PlayerID)
	if err != nil {
		return ClickResult{}, err
	}
	currentEnergy := RegenerateEnergy(state.Energy, state.MaxEnergy, state.RegenRate, state.LastEnergyUpdate, now)
	if p.energy.NeedsSync(req.PlayerID) {
		p.energy.refreshFrom(state, now)
	}

	boosts, err := p.boosts.ActiveBoosts(ctx, req.PlayerID)
	if err != nil {
		return ClickResult{}, err
	}
	multiplier := EffectiveMultiplier(boosts)
	plan := planClick(req.Clicks, coinsPerClick, multiplier, p.energyCap)

	outcome, ok, err := p.store.ApplyClick(ctx, ClickDebit{
		PlayerID:         req.PlayerID,
		Clicks:           int64(req.Clicks),
		CoinsEarned:      plan.CoinsEarned,
		ExperienceEarned: plan.CoinsEarned,
		EnergyNeeded:     plan.EnergyNeeded,
		At:               now,
	})
	if err != nil {
		return ClickResult{}, err
	}
	if !ok {
		return ClickResult{}, &EconomyError{
			Kind:      KindInsufficientEnergy,
			Message:   "not enough energy",
			Required:  plan.EnergyNeeded,
			Available: currentEnergy,
		}
	}

	p.energy.setAt(req.PlayerID, outcome.Energy, outcome.MaxEnergy, outcome.RegenRate, outcome.EnergyAt)

	if err := p.activity.Touch(ctx, req.PlayerID, now); err != nil {
		p.logger.Warn("last-active touch failed", "player_id", req.PlayerID, "error", err)
	}

	if level := CalculateLevel(outcome.Experience); level != outcome.Level {
		if err := p.store.RaiseLevel(ctx, req.PlayerID, level); err != nil {
			p.logger.Warn("level update failed", "player_id", req.PlayerID, "level", level, "error", err)
		}
	}

	p.events.Publish(ProgressEvent{PlayerID: req.PlayerID, Kind: ObjectiveTaps, Amount: int64(req.Clicks)})
	p.events.Publish(ProgressEvent{PlayerID: req.PlayerID, Kind: ObjectiveEarnCoins, Amount: plan.CoinsEarned})

	return ClickResult{
		Success:           true,
		Coins:             outcome.Coins,
		Energy:            outcome.Energy,
		TotalTaps:         outcome.TotalTaps,
		Earned:            plan.CoinsEarned,
		CurrentMultiplier: multiplier,
	}, nil
}

func (p *ClickProcessor) flag(ctx context.Context, req ClickRequest, err error) {
	v := ClickViolation{
		PlayerID:  req.PlayerID,
		Clicks:    req.Clicks,
		Detail:    err.Error(),
		CreatedAt: p.clock.Now(),
	}
	var econ *EconomyError
	if errors.As(err, &econ) {
		v.Reason = econ.Reason
	}
	if recErr := p.violations.RecordViolation(ctx, v); recErr != nil {
		p.logger.Warn("violation record failed", "player_id", req.PlayerID, "error", recErr)
	}
}
