package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestEconomyError_Is(t *testing.T) {
	tooFast := antiCheat(ReasonTooFast, "average click interval 10ms below 50ms")

	if !errors.Is(tooFast, ErrAntiCheat) {
		t.Error("reasoned error should match its kind sentinel")
	}
	if !errors.Is(tooFast, ErrTooFast) {
		t.Error("reasoned error should match its reason sentinel")
	}
	if errors.Is(tooFast, ErrInvalidTimestamp) {
		t.Error("too_fast matched invalid_timestamp")
	}
	if errors.Is(tooFast, ErrInvalidInput) {
		t.Error("anti_cheat matched invalid_input")
	}

	wrapped := fmt.Errorf("processing batch: %w", tooFast)
	if !errors.Is(wrapped, ErrTooFast) {
		t.Error("wrapped error lost its reason")
	}
}

func TestStoreError(t *testing.T) {
	if storeError("load player", nil) != nil {
		t.Error("storeError(nil) should be nil")
	}

	err := storeError("load player", sql.ErrConnDone)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("storeError() = %v, want store unavailable", err)
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Error("storeError() dropped the cause")
	}

	if got := storeError("load player", ErrPlayerNotFound); got != ErrPlayerNotFound {
		t.Errorf("storeError() rewrapped a domain error: %v", got)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidCount, http.StatusBadRequest},
		{ErrInsufficientEnergy, http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrTooFast, http.StatusForbidden},
		{ErrPlayerNotFound, http.StatusNotFound},
		{storeError("x", errBoom), http.StatusServiceUnavailable},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEconomyError_Message(t *testing.T) {
	err := &EconomyError{Kind: KindAntiCheat, Reason: ReasonTooFast}
	if got := err.Error(); got != "anti_cheat: too_fast" {
		t.Errorf("Error() = %q", got)
	}
	err = &EconomyError{Kind: KindStoreUnavailable, Message: "load player", Err: errBoom}
	if got := err.Error(); got != "load player: boom" {
		t.Errorf("Error() = %q", got)
	}
}
