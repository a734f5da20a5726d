package main

import (
	"errors"
	"strings"
	"testing"
)

func TestIsValidPlayerID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"p1", true},
		{"6f1c2e1a-93c4-4d3b-9a57-0c2f8e7d1b10", true},
		{"bot_07", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{strings.Repeat("a", maxPlayerIDLength), true},
		{strings.Repeat("a", maxPlayerIDLength+1), false},
	}
	for _, tt := range tests {
		if got := isValidPlayerID(tt.id); got != tt.want {
			t.Errorf("isValidPlayerID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestCheckCoinAmount(t *testing.T) {
	if err := checkCoinAmount("p1", 5); err != nil {
		t.Errorf("checkCoinAmount(p1, 5) = %v", err)
	}

	var econ *EconomyError
	err := checkCoinAmount("p1", 0)
	if !errors.As(err, &econ) || econ.Reason != "invalid_amount" {
		t.Errorf("zero amount error = %v, want invalid_amount", err)
	}
	err = checkCoinAmount("bad id", 5)
	if !errors.As(err, &econ) || econ.Reason != "invalid_player" {
		t.Errorf("bad id error = %v, want invalid_player", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad id error is not ErrInvalidInput: %v", err)
	}
}

func TestEnvFlag(t *testing.T) {
	t.Setenv("FLAG_ON", "On")
	t.Setenv("FLAG_OFF", "0")
	t.Setenv("FLAG_JUNK", "sometimes")

	if !envFlag("FLAG_ON", false) {
		t.Error("FLAG_ON = false")
	}
	if envFlag("FLAG_OFF", true) {
		t.Error("FLAG_OFF = true")
	}
	if !envFlag("FLAG_JUNK", true) || envFlag("FLAG_UNSET", false) {
		t.Error("unparseable or unset flags should keep the fallback")
	}
}
