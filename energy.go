package main

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"
)

// RegenerateEnergy returns the energy a player holds at now given the stored
// value written at lastUpdate. The result is clamped to [0, maxEnergy].
func RegenerateEnergy(stored, maxEnergy, regenRate int64, lastUpdate, now time.Time) int64 {
	if maxEnergy < 0 {
		maxEnergy = 0
	}
	if stored < 0 {
		stored = 0
	}
	if stored >= maxEnergy {
		return maxEnergy
	}
	if regenRate <= 0 {
		return stored
	}

	elapsed := now.Sub(lastUpdate)
	if elapsed <= 0 {
		return stored
	}

	recovered := math.Floor(elapsed.Seconds() * float64(regenRate))
	if recovered >= float64(maxEnergy-stored) {
		return maxEnergy
	}
	return stored + int64(recovered)
}

type energySnapshot struct {
	Energy       int64
	MaxEnergy    int64
	RegenRate    int64
	LastUpdateAt time.Time
	LastSyncAt   time.Time
}

type EnergyReading struct {
	Energy    int64 `json:"energy"`
	MaxEnergy int64 `json:"maxEnergy"`
}

type playerLoader interface {
	LoadPlayer(ctx context.Context, playerID string) (*PlayerEconomyState, error)
}

// EnergyCache keeps the last written energy per player and regenerates it on
// read. Entries are process local; other instances only observe writes after
// their own next sync.
type EnergyCache struct {
	entries      PlayerCache[energySnapshot]
	store        playerLoader
	clock        Clock
	syncInterval time.Duration
	group        singleflight.Group
	logger       *slog.Logger
}

func NewEnergyCache(store playerLoader, clock Clock, syncInterval time.Duration, logger *slog.Logger) *EnergyCache {
	return &EnergyCache{
		entries:      newMemoryCache[energySnapshot](clock),
		store:        store,
		clock:        clock,
		syncInterval: syncInterval,
		logger:       logger,
	}
}

func (c *EnergyCache) Get(playerID string) (int64, bool) {
	reading, ok := c.Read(playerID)
	return reading.Energy, ok
}

func (c *EnergyCache) Read(playerID string) (EnergyReading, bool) {
	snap, ok := c.entries.Get(playerID)
	if !ok {
		return EnergyReading{}, false
	}
	return EnergyReading{
		Energy:    RegenerateEnergy(snap.Energy, snap.MaxEnergy, snap.RegenRate, snap.LastUpdateAt, c.clock.Now()),
		MaxEnergy: snap.MaxEnergy,
	}, true
}

func (c *EnergyCache) Set(playerID string, energy, maxEnergy, regenRate int64) {
	c.setAt(playerID, energy, maxEnergy, regenRate, c.clock.Now())
}

func (c *EnergyCache) setAt(playerID string, energy, maxEnergy, regenRate int64, at time.Time) {
	c.entries.Set(playerID, energySnapshot{
		Energy:       energy,
		MaxEnergy:    maxEnergy,
		RegenRate:    regenRate,
		LastUpdateAt: at,
		LastSyncAt:   at,
	}, 0)
}

func (c *EnergyCache) NeedsSync(playerID string) bool {
	snap, ok := c.entries.Get(playerID)
	if !ok {
		return true
	}
	return c.clock.Now().Sub(snap.LastSyncAt) > c.syncInterval
}

// refreshFrom stores the regenerated energy of a row that was just read.
func (c *EnergyCache) refreshFrom(state *PlayerEconomyState, now time.Time) int64 {
	current := RegenerateEnergy(state.Energy, state.MaxEnergy, state.RegenRate, state.LastEnergyUpdate, now)
	c.setAt(state.PlayerID, current, state.MaxEnergy, state.RegenRate, now)
	return current
}

// SyncFromStore rereads the authoritative row. Concurrent syncs for one
// player share a single store read. On failure the previous entry is kept.
func (c *EnergyCache) SyncFromStore(ctx context.Context, playerID string) error {
	_, err, _ := c.group.Do(playerID, func() (any, error) {
		state, err := c.store.LoadPlayer(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return c.refreshFrom(state, c.clock.Now()), nil
	})
	if err != nil {
		c.logger.Warn("energy sync failed; keeping last known value", "player_id", playerID, "error", err)
	}
	return err
}

func (c *EnergyCache) Invalidate(playerID string) {
	c.entries.Invalidate(playerID)
}

func (c *EnergyCache) Evict(idleFor time.Duration) int {
	return c.entries.Purge(idleFor)
}
