package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	calls  []ProgressEvent
	failOn string
	block  chan struct{}
}

func (s *recordingSink) NotifyProgress(ctx context.Context, playerID string, kind string, amount int64) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ProgressEvent{PlayerID: playerID, Kind: kind, Amount: amount})
	if kind == s.failOn {
		return errBoom
	}
	return nil
}

func (s *recordingSink) delivered() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressEvent(nil), s.calls...)
}

func TestEventQueue_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	q := NewEventQueue(sink, 16, time.Second, discardLogger())
	q.Start(2)

	for i := 1; i <= 5; i++ {
		if !q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveTaps, Amount: int64(i)}) {
			t.Fatalf("Publish(%d) = false", i)
		}
	}
	q.Close()

	got := sink.delivered()
	if len(got) != 5 {
		t.Fatalf("delivered %d events, want 5", len(got))
	}
	var total int64
	for _, ev := range got {
		total += ev.Amount
	}
	if total != 15 {
		t.Errorf("delivered amount = %d, want 15", total)
	}
}

func TestEventQueue_SinkFailureDoesNotStopDelivery(t *testing.T) {
	sink := &recordingSink{failOn: ObjectiveTaps}
	q := NewEventQueue(sink, 16, time.Second, discardLogger())
	q.Start(1)

	q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveTaps, Amount: 3})
	q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveEarnCoins, Amount: 3})
	q.Close()

	if got := len(sink.delivered()); got != 2 {
		t.Errorf("delivered %d events, want 2", got)
	}
}

func TestEventQueue_RejectsEmptyAndClosed(t *testing.T) {
	q := NewEventQueue(&recordingSink{}, 4, time.Second, discardLogger())
	q.Start(1)

	if q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveEarnCoins, Amount: 0}) {
		t.Error("zero amount accepted")
	}
	q.Close()
	if q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveTaps, Amount: 1}) {
		t.Error("event accepted after Close")
	}
	q.Close()
}

func TestEventQueue_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	q := NewEventQueue(sink, 1, time.Second, discardLogger())

	if !q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveTaps, Amount: 1}) {
		t.Fatal("first event rejected")
	}
	if q.Publish(ProgressEvent{PlayerID: "p1", Kind: ObjectiveTaps, Amount: 1}) {
		t.Error("event accepted into a full queue")
	}

	q.Start(1)
	close(sink.block)
	q.Close()
	if got := len(sink.delivered()); got != 1 {
		t.Errorf("delivered %d events, want 1", got)
	}
}
