package main

import (
	"sync"
	"time"
)

// ClickRateLimiter admits at most limit click batches per player inside a
// sliding window. State is process local.
type ClickRateLimiter struct {
	mu     sync.Mutex
	clock  Clock
	window time.Duration
	limit  int
	events map[string][]time.Time
}

func NewClickRateLimiter(clock Clock, window time.Duration, limit int) *ClickRateLimiter {
	return &ClickRateLimiter{
		clock:  clock,
		window: window,
		limit:  limit,
		events: make(map[string][]time.Time),
	}
}

func (l *ClickRateLimiter) Allow(playerID string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	events := prune(l.events[playerID], now.Add(-l.window))
	if len(events) >= l.limit {
		l.events[playerID] = events
		return false
	}
	l.events[playerID] = append(events, now)
	return true
}

// Forget drops players with no admitted batch in the last idleFor.
func (l *ClickRateLimiter) Forget(idleFor time.Duration) int {
	if idleFor < l.window {
		idleFor = l.window
	}
	cutoff := l.clock.Now().Add(-idleFor)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, events := range l.events {
		if len(events) == 0 || !events[len(events)-1].After(cutoff) {
			delete(l.events, id)
			removed++
		}
	}
	return removed
}

func (l *ClickRateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// prune removes timestamps at or before cutoff. Timestamps are appended in
// order so the first kept index splits the slice.
func prune(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}
