package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlayerEconomyState struct {
	PlayerID         string
	Coins            int64
	Energy           int64
	MaxEnergy        int64
	RegenRate        int64
	ClickPower       int64
	Level            int
	Experience       int64
	TotalTaps        int64
	LastClickAt      *time.Time
	LastEnergyUpdate time.Time
	CreatedAt        time.Time
}

// ClickDebit is one conditional write for an accepted click batch. The
// store regenerates energy up to At and applies the debit only when the
// regenerated value covers EnergyNeeded.
type ClickDebit struct {
	PlayerID         string
	Clicks           int64
	CoinsEarned      int64
	ExperienceEarned int64
	EnergyNeeded     int64
	At               time.Time
}

type ClickOutcome struct {
	Coins      int64
	Energy     int64
	MaxEnergy  int64
	RegenRate  int64
	TotalTaps  int64
	Experience int64
	Level      int
	// EnergyAt is the stored regeneration epoch after the write.
	EnergyAt time.Time
}

type BoostType string

const (
	BoostCoinsMultiplier BoostType = "coins_multiplier"
	BoostClickMultiplier BoostType = "click_multiplier"
)

func (t BoostType) Valid() bool {
	return t == BoostCoinsMultiplier || t == BoostClickMultiplier
}

type Boost struct {
	ID          uuid.UUID
	PlayerID    string
	Type        BoostType
	Multiplier  decimal.Decimal
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

type BoostActivation struct {
	PlayerID   string
	Type       BoostType
	Multiplier decimal.Decimal
	Duration   time.Duration
	At         time.Time
}

// EconomyStore is the authoritative player economy record. Debits are
// conditional on the balance at write time; credits are increments.
type EconomyStore interface {
	LoadPlayer(ctx context.Context, playerID string) (*PlayerEconomyState, error)
	EnsurePlayer(ctx context.Context, playerID string, now time.Time) (*PlayerEconomyState, error)
	ApplyClick(ctx context.Context, debit ClickDebit) (ClickOutcome, bool, error)
	RaiseLevel(ctx context.Context, playerID string, level int) error
	DebitCoins(ctx context.Context, playerID string, amount int64) (int64, bool, error)
	CreditCoins(ctx context.Context, playerID string, amount int64) (int64, error)
	ActiveBoosts(ctx context.Context, playerID string, now time.Time) ([]Boost, error)
	ActivateBoost(ctx context.Context, activation BoostActivation) (Boost, error)
}
