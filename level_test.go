package main

import "testing"

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		experience int64
		want       int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{474, 3},
		{475, 4},
		{-10, 1},
	}
	for _, tt := range tests {
		if got := CalculateLevel(tt.experience); got != tt.want {
			t.Errorf("CalculateLevel(%d) = %d, want %d", tt.experience, got, tt.want)
		}
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for xp := int64(1); xp <= 50000; xp += 7 {
		got := CalculateLevel(xp)
		if got < prev {
			t.Fatalf("level dropped from %d to %d at experience %d", prev, got, xp)
		}
		prev = got
	}
}

func TestCalculateLevel_LargeExperience(t *testing.T) {
	if got := CalculateLevel(1 << 62); got < 50 {
		t.Errorf("CalculateLevel(2^62) = %d, want a high level", got)
	}
}

func TestExperienceToReach(t *testing.T) {
	for level := 1; level <= 20; level++ {
		start := ExperienceToReach(level)
		if got := CalculateLevel(start); got != level {
			t.Errorf("CalculateLevel(ExperienceToReach(%d)) = %d", level, got)
		}
		if level > 1 {
			if got := CalculateLevel(start - 1); got != level-1 {
				t.Errorf("CalculateLevel(ExperienceToReach(%d)-1) = %d, want %d", level, got, level-1)
			}
		}
	}
}
