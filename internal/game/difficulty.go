package game

// DifficultyFor maps a user's accumulated world points to a question
// difficulty tier. Total over all integers; negative totals land on Easy.
func (r Rules) DifficultyFor(points int) string {
	switch {
	case points <= r.DifficultyLowThreshold:
		return DifficultyEasy
	case points <= r.DifficultyHighThreshold:
		return DifficultyNormal
	default:
		return DifficultyHard
	}
}
