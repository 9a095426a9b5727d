package combat

// Critical hit odds.
const (
	CritChance     = 1.0 / 24
	HighCritChance = 1.0 / 8
)

// IsCrit reports whether roll (in [0,1]) lands a critical hit.
func IsCrit(highCrit bool, roll float64) bool {
	p := CritChance
	if highCrit {
		p = HighCritChance
	}
	return roll < p
}

// RandomFactor maps roll in [0,1] onto the damage spread [0.85, 1.0].
func RandomFactor(roll float64) float64 {
	return 0.85 + 0.15*roll
}

// HitCount maps roll onto the variable multi-hit distribution
// {2: 3/8, 3: 3/8, 4: 1/8, 5: 1/8}.
func HitCount(roll float64) int {
	switch {
	case roll < 3.0/8:
		return 2
	case roll < 6.0/8:
		return 3
	case roll < 7.0/8:
		return 4
	default:
		return 5
	}
}

// Hits reports whether an accuracy check passes. A move misses only when the
// roll exceeds its accuracy.
func Hits(accuracy, roll float64) bool {
	return roll <= accuracy
}
