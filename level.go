package main

import "math"

const (
	levelBaseExperience = 100
	levelGrowth         = 1.5
)

// experienceForLevel is the experience needed to advance out of level.
func experienceForLevel(level int) float64 {
	return math.Floor(levelBaseExperience * math.Pow(levelGrowth, float64(level-1)))
}

// CalculateLevel maps total experience to a level. Level 1 is free; each
// further level costs floor(100 * 1.5^(L-1)) on top of the previous ones.
func CalculateLevel(totalExperience int64) int {
	level := 1
	used := 0.0
	total := float64(totalExperience)
	for {
		next := used + experienceForLevel(level)
		if next > total {
			return level
		}
		used = next
		level++
	}
}

// ExperienceToReach returns the cumulative experience at which level starts.
func ExperienceToReach(level int) int64 {
	var total int64
	for l := 1; l < level; l++ {
		total += int64(experienceForLevel(l))
	}
	return total
}
