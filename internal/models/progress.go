package models

import "slices"

// Progress tracks which case levels a player may open and which they have solved.
type Progress struct {
	Unlocked  []int
	Completed []int
}

// IsUnlocked reports whether level is playable. The first level is always playable.
func (p Progress) IsUnlocked(level int) bool {
	return level == 1 || slices.Contains(p.Unlocked, level)
}

// IsCompleted reports whether the player has solved level.
func (p Progress) IsCompleted(level int) bool {
	return slices.Contains(p.Completed, level)
}
