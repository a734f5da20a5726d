package main

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// PlayerCache is a per-player keyed cache. A ttl of zero keeps the entry
// until it is overwritten, invalidated or purged.
type PlayerCache[V any] interface {
	Get(playerID string) (V, bool)
	Set(playerID string, value V, ttl time.Duration)
	Invalidate(playerID string)
	Purge(idleFor time.Duration) int
}

type cacheItem[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

type memoryCache[V any] struct {
	mu    sync.RWMutex
	clock Clock
	items map[string]cacheItem[V]
}

func newMemoryCache[V any](clock Clock) *memoryCache[V] {
	return &memoryCache[V]{
		clock: clock,
		items: make(map[string]cacheItem[V]),
	}
}

func (c *memoryCache[V]) Get(playerID string) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[playerID]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !item.expiresAt.IsZero() && !c.clock.Now().Before(item.expiresAt) {
		return zero, false
	}
	return item.value, true
}

func (c *memoryCache[V]) Set(playerID string, value V, ttl time.Duration) {
	now := c.clock.Now()
	item := cacheItem[V]{value: value, storedAt: now}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	c.items[playerID] = item
	c.mu.Unlock()
}

func (c *memoryCache[V]) Invalidate(playerID string) {
	c.mu.Lock()
	delete(c.items, playerID)
	c.mu.Unlock()
}

// Purge drops expired entries and entries not written for idleFor.
func (c *memoryCache[V]) Purge(idleFor time.Duration) int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, item := range c.items {
		expired := !item.expiresAt.IsZero() && !now.Before(item.expiresAt)
		idle := idleFor > 0 && now.Sub(item.storedAt) > idleFor
		if expired || idle {
			delete(c.items, id)
			removed++
		}
	}
	return removed
}

func (c *memoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// KeyedMutex serialises work per key. Lock entries are reference counted
// and released when the last holder unlocks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
