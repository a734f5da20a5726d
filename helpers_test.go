package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory EconomyStore. A single mutex stands in for the
// row lock the Postgres store relies on.
type memStore struct {
	mu          sync.Mutex
	players     map[string]*PlayerEconomyState
	boosts      []Boost
	loads       int
	boostLoads  int
	loadErr     error
	boostErr    error
	raiseLevels []int
}

func newMemStore() *memStore {
	return &memStore{players: make(map[string]*PlayerEconomyState)}
}

func (s *memStore) addPlayer(id string, energy, maxEnergy, regen int64, at time.Time) *PlayerEconomyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &PlayerEconomyState{
		PlayerID:         id,
		Energy:           energy,
		MaxEnergy:        maxEnergy,
		RegenRate:        regen,
		ClickPower:       1,
		Level:            1,
		LastEnergyUpdate: at,
		CreatedAt:        at,
	}
	s.players[id] = p
	return p
}

func (s *memStore) player(id string) PlayerEconomyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.players[id]
}

func (s *memStore) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

func (s *memStore) LoadPlayer(ctx context.Context, playerID string) (*PlayerEconomyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) EnsurePlayer(ctx context.Context, playerID string, now time.Time) (*PlayerEconomyState, error) {
	s.mu.Lock()
	if _, ok := s.players[playerID]; !ok {
		s.players[playerID] = &PlayerEconomyState{
			PlayerID:         playerID,
			Energy:           10000,
			MaxEnergy:        10000,
			RegenRate:        1,
			ClickPower:       1,
			Level:            1,
			LastEnergyUpdate: now,
			CreatedAt:        now,
		}
	}
	s.mu.Unlock()
	return s.LoadPlayer(ctx, playerID)
}

func (s *memStore) ApplyClick(ctx context.Context, d ClickDebit) (ClickOutcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[d.PlayerID]
	if !ok {
		return ClickOutcome{}, false, nil
	}
	current := RegenerateEnergy(p.Energy, p.MaxEnergy, p.RegenRate, p.LastEnergyUpdate, d.At)
	if current < d.EnergyNeeded {
		return ClickOutcome{}, false, nil
	}
	p.Coins += d.CoinsEarned
	p.Experience += d.ExperienceEarned
	p.TotalTaps += d.Clicks
	p.Energy = current - d.EnergyNeeded
	at := d.At
	p.LastClickAt = &at
	if d.At.After(p.LastEnergyUpdate) {
		p.LastEnergyUpdate = d.At
	}
	return ClickOutcome{
		Coins:      p.Coins,
		Energy:     p.Energy,
		MaxEnergy:  p.MaxEnergy,
		RegenRate:  p.RegenRate,
		TotalTaps:  p.TotalTaps,
		Experience: p.Experience,
		Level:      p.Level,
		EnergyAt:   p.LastEnergyUpdate,
	}, true, nil
}

func (s *memStore) RaiseLevel(ctx context.Context, playerID string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raiseLevels = append(s.raiseLevels, level)
	if p, ok := s.players[playerID]; ok && p.Level < level {
		p.Level = level
	}
	return nil
}

func (s *memStore) DebitCoins(ctx context.Context, playerID string, amount int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return 0, false, ErrPlayerNotFound
	}
	if p.Coins < amount {
		return p.Coins, false, nil
	}
	p.Coins -= amount
	return p.Coins, true, nil
}

func (s *memStore) CreditCoins(ctx context.Context, playerID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return 0, ErrPlayerNotFound
	}
	p.Coins += amount
	return p.Coins, nil
}

func (s *memStore) ActiveBoosts(ctx context.Context, playerID string, now time.Time) ([]Boost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boostLoads++
	if s.boostErr != nil {
		return nil, s.boostErr
	}
	var out []Boost
	for _, b := range s.boosts {
		if b.PlayerID == playerID && b.ExpiresAt.After(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ActivateBoost(ctx context.Context, a BoostActivation) (Boost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[a.PlayerID]; !ok {
		return Boost{}, ErrPlayerNotFound
	}
	latest := -1
	for i, b := range s.boosts {
		if b.PlayerID != a.PlayerID || b.Type != a.Type || !b.Multiplier.Equal(a.Multiplier) || !b.ExpiresAt.After(a.At) {
			continue
		}
		if latest == -1 || b.ExpiresAt.After(s.boosts[latest].ExpiresAt) {
			latest = i
		}
	}
	if latest >= 0 {
		s.boosts[latest].ExpiresAt = s.boosts[latest].ExpiresAt.Add(a.Duration)
		return s.boosts[latest], nil
	}
	b := Boost{
		ID:          uuid.New(),
		PlayerID:    a.PlayerID,
		Type:        a.Type,
		Multiplier:  a.Multiplier,
		ActivatedAt: a.At,
		ExpiresAt:   a.At.Add(a.Duration),
	}
	s.boosts = append(s.boosts, b)
	return b, nil
}

func (s *memStore) boostRows(playerID string) []Boost {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Boost
	for _, b := range s.boosts {
		if b.PlayerID == playerID {
			out = append(out, b)
		}
	}
	return out
}

type memActivity struct {
	mu       sync.Mutex
	markers  map[string]time.Time
	touchErr error
}

func newMemActivity() *memActivity {
	return &memActivity{markers: make(map[string]time.Time)}
}

func (a *memActivity) LastActive(ctx context.Context, playerID string) (time.Time, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.markers[playerID]
	return t, ok, nil
}

func (a *memActivity) Touch(ctx context.Context, playerID string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.touchErr != nil {
		return a.touchErr
	}
	a.markers[playerID] = at.Truncate(time.Second)
	return nil
}

func (a *memActivity) set(playerID string, at time.Time) {
	a.mu.Lock()
	a.markers[playerID] = at
	a.mu.Unlock()
}

type memOwnership struct {
	mu        sync.Mutex
	levels    map[string]int
	assistant map[string]bool
	err       error
}

func newMemOwnership() *memOwnership {
	return &memOwnership{levels: make(map[string]int), assistant: make(map[string]bool)}
}

func (o *memOwnership) AutoIncomeLevel(ctx context.Context, playerID string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return 0, o.err
	}
	return o.levels[playerID], nil
}

func (o *memOwnership) HasPassiveBoostUpgrade(ctx context.Context, playerID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return false, o.err
	}
	return o.assistant[playerID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *recordingPublisher) Publish(ev ProgressEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) snapshot() []ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProgressEvent(nil), p.events...)
}

type memViolations struct {
	mu      sync.Mutex
	records []ClickViolation
}

func (m *memViolations) RecordViolation(ctx context.Context, v ClickViolation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, v)
	return nil
}

func (m *memViolations) RecentViolations(ctx context.Context, playerID string, limit int) ([]ClickViolation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ClickViolation{}
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if playerID == "" || m.records[i].PlayerID == playerID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

type testEnv struct {
	clock      *manualClock
	store      *memStore
	activity   *memActivity
	ownership  *memOwnership
	events     *recordingPublisher
	violations *memViolations
	engine     *Engine
}

func newTestEnv(t *testing.T, mutate ...func(*EconomyConfig)) *testEnv {
	t.Helper()
	cfg := DefaultEconomyConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	env := &testEnv{
		clock:      newManualClock(),
		store:      newMemStore(),
		activity:   newMemActivity(),
		ownership:  newMemOwnership(),
		events:     &recordingPublisher{},
		violations: &memViolations{},
	}
	env.engine = NewEngine(cfg, EngineDeps{
		Store:      env.store,
		Ownership:  env.ownership,
		Activity:   env.activity,
		Progress:   env.events,
		Violations: env.violations,
		Clock:      env.clock,
		Flags:      FeatureFlags{AutoIncome: true, OfflineEarnings: true, TaskProgress: true},
		Logger:     discardLogger(),
	})
	return env
}

var errBoom = errors.New("boom")
