package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	ObjectiveTaps      = "taps"
	ObjectiveEarnCoins = "earn_coins"
)

// TaskProgress receives objective progress produced by accepted clicks.
type TaskProgress interface {
	NotifyProgress(ctx context.Context, playerID string, kind string, amount int64) error
}

type ProgressEvent struct {
	PlayerID string
	Kind     string
	Amount   int64
}

type ProgressPublisher interface {
	Publish(ev ProgressEvent) bool
}

// EventQueue delivers progress events to a TaskProgress sink off the click
// path. Delivery is best effort: a full queue drops the event and sink
// failures are logged. Events for one player are delivered one at a time.
type EventQueue struct {
	events  chan ProgressEvent
	sink    TaskProgress
	locks   *KeyedMutex
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewEventQueue(sink TaskProgress, size int, timeout time.Duration, logger *slog.Logger) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{
		events:  make(chan ProgressEvent, size),
		sink:    sink,
		locks:   NewKeyedMutex(),
		timeout: timeout,
		logger:  logger,
	}
}

func (q *EventQueue) Publish(ev ProgressEvent) bool {
	if ev.Amount <= 0 {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.events <- ev:
		return true
	default:
		q.logger.Warn("progress queue full; dropping event", "player_id", ev.PlayerID, "kind", ev.Kind, "amount", ev.Amount)
		return false
	}
}

func (q *EventQueue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for ev := range q.events {
				q.deliver(ev)
			}
		}()
	}
}

func (q *EventQueue) deliver(ev ProgressEvent) {
	unlock := q.locks.Lock(ev.PlayerID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.sink.NotifyProgress(ctx, ev.PlayerID, ev.Kind, ev.Amount); err != nil {
		q.logger.Warn("task progress update failed", "player_id", ev.PlayerID, "kind", ev.Kind, "amount", ev.Amount, "error", err)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (q *EventQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.events)
	q.mu.Unlock()

	q.wg.Wait()
}

type discardProgress struct{}

func (discardProgress) NotifyProgress(context.Context, string, string, int64) error {
	return nil
}
