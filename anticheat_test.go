package main

import (
	"errors"
	"testing"
	"time"
)

func spaced(start int64, count int, stepMs int64) []int64 {
	out := make([]int64, count)
	for i := range out {
		out[i] = start + int64(i)*stepMs
	}
	return out
}

func TestClickValidator_Validate(t *testing.T) {
	clock := newManualClock()
	v := NewClickValidator(clock, DefaultEconomyConfig())
	now := clock.Now().UnixMilli()

	tests := []struct {
		name       string
		clicks     int
		timestamps []int64
		want       error
	}{
		{"single_click_no_timestamps", 1, nil, nil},
		{"max_clicks_no_timestamps", 10, nil, nil},
		{"zero_clicks", 0, nil, ErrInvalidCount},
		{"negative_clicks", -3, nil, ErrInvalidCount},
		{"over_max_clicks", 11, nil, ErrInvalidCount},
		{"count_mismatch", 3, spaced(now-1000, 2, 200), ErrCountMismatch},
		{"timestamp_too_far_in_future", 1, []int64{now + 1001}, ErrInvalidTimestamp},
		{"timestamp_within_future_tolerance", 1, []int64{now + 1000}, nil},
		{"timestamp_too_old", 1, []int64{now - 10001}, ErrInvalidTimestamp},
		{"timestamp_at_max_age", 1, []int64{now - 10000}, nil},
		{"clicks_10ms_apart", 5, spaced(now-40, 5, 10), ErrTooFast},
		{"clicks_200ms_apart", 5, spaced(now-800, 5, 200), nil},
		{"clicks_exactly_at_min_interval", 3, spaced(now-100, 3, 50), nil},
		{"unsorted_but_well_paced", 3, []int64{now - 200, now, now - 400}, nil},
		{"single_click_has_no_interval", 1, []int64{now}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.clicks, tt.timestamps)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClickValidator_ErrorKinds(t *testing.T) {
	clock := newManualClock()
	v := NewClickValidator(clock, DefaultEconomyConfig())
	now := clock.Now().UnixMilli()

	if err := v.Validate(0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalid count should be invalid input, got %v", err)
	}
	if err := v.Validate(5, spaced(now-40, 5, 10)); !errors.Is(err, ErrAntiCheat) {
		t.Errorf("too fast should be an anti-cheat violation, got %v", err)
	}
	if err := v.Validate(1, []int64{now + int64(time.Hour/time.Millisecond)}); !errors.Is(err, ErrAntiCheat) {
		t.Errorf("future timestamp should be an anti-cheat violation, got %v", err)
	}
}
