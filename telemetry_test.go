package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestViolationsHandler(t *testing.T) {
	env := newTestEnv(t)
	env.store.addPlayer("p1", 1000, 1000, 1, env.clock.Now())
	now := env.clock.Now().UnixMilli()
	env.engine.ProcessClickBatch(context.Background(), ClickRequest{
		PlayerID:   "p1",
		Clicks:     2,
		Timestamps: []int64{now + 5000, now},
	})

	s := &server{engine: env.engine, violations: env.violations, logger: discardLogger(), maxBody: 1 << 20}
	h := newRouter(s, NewIdentity(testJWTSecret), NewGateway(env.engine, nil, discardLogger()), testServiceKey)

	if rec := doRequest(t, h, http.MethodGet, "/economy/violations", "", bearer(playerToken(t, "p1"))); rec.Code != http.StatusUnauthorized {
		t.Fatalf("violations with a player token = %d, want 401", rec.Code)
	}

	rec := doRequest(t, h, http.MethodGet, "/economy/violations?playerId=p1", "", serviceHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /economy/violations = %d: %s", rec.Code, rec.Body.String())
	}
	var got []ClickViolation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Reason != ReasonInvalidTimestamp || got[0].PlayerID != "p1" {
		t.Errorf("violations = %+v", got)
	}

	if rec := doRequest(t, h, http.MethodGet, "/economy/violations?playerId=bad%20id", "", serviceHeader()); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid player filter = %d, want 400", rec.Code)
	}
}
