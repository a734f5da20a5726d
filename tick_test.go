package main

import (
	"context"
	"testing"
	"time"
)

func TestEngineSweep_DropsIdlePlayers(t *testing.T) {
	env := newTestEnv(t)
	env.store.addPlayer("p1", 100, 100, 1, env.clock.Now())

	if _, err := env.engine.ProcessClickBatch(context.Background(), ClickRequest{PlayerID: "p1", Clicks: 1}); err != nil {
		t.Fatalf("ProcessClickBatch() error = %v", err)
	}

	if limits, energy, _, _ := env.engine.sweep(time.Hour); limits != 0 || energy != 0 {
		t.Errorf("fresh sweep removed limits=%d energy=%d, want 0", limits, energy)
	}

	env.clock.Advance(2 * time.Hour)
	limits, energy, _, _ := env.engine.sweep(time.Hour)
	if limits != 1 || energy != 1 {
		t.Errorf("idle sweep removed limits=%d energy=%d, want 1 and 1", limits, energy)
	}
	if _, ok := env.engine.ReadCachedEnergy("p1"); ok {
		t.Error("energy entry survived the sweep")
	}
}
