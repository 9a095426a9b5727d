package combat

import "math"

// Damage multipliers shared by resolvers.
const (
	CritMultiplier       = 1.5
	STABMultiplier       = 1.5
	AdaptiveSTAB         = 2.0
	ScreenMultiplier     = 0.5
	LifeOrbMultiplier    = 1.3
	KnockOffMultiplier   = 1.5
	TechnicianMultiplier = 1.5
	TechnicianMaxPower   = 60
)

// DamageInput collects every factor of one hit.
//
// Modifier is the product of item and ability multipliers; zero is read as 1.
type DamageInput struct {
	Level    int
	Power    int
	Attack   int
	Defense  int
	STAB     float64
	TypeMult float64
	Crit     bool
	// Screened is true when a screen covers this hit and nothing bypasses it.
	// Ignored on critical hits.
	Screened bool
	Random   float64
	Modifier float64
}

// BaseDamage computes floor(floor((2L/5+2)·P·A/D)/50)+2.
//
// Precondition: defense >= 1 (values below are treated as 1).
func BaseDamage(level, power, attack, defense int) float64 {
	if defense < 1 {
		defense = 1
	}
	inner := math.Floor((2*float64(level)/5 + 2) * float64(power) * float64(attack) / float64(defense))
	return math.Floor(inner/50) + 2
}

// Damage applies every multiplier in in to the base damage.
//
// Postcondition: returns 0 iff TypeMult == 0; otherwise returns >= 1.
func Damage(in DamageInput) int {
	if in.TypeMult == 0 {
		return 0
	}
	mod := in.Random
	if in.STAB > 0 {
		mod *= in.STAB
	}
	mod *= in.TypeMult
	if in.Crit {
		mod *= CritMultiplier
	} else if in.Screened {
		mod *= ScreenMultiplier
	}
	if in.Modifier > 0 {
		mod *= in.Modifier
	}
	dmg := int(math.Floor(BaseDamage(in.Level, in.Power, in.Attack, in.Defense) * mod))
	if dmg < 1 {
		return 1
	}
	return dmg
}

// FractionOf returns max(1, floor(total·frac)); used for drain, recoil and
// residual chip damage.
func FractionOf(total int, frac float64) int {
	v := int(math.Floor(float64(total) * frac))
	if v < 1 {
		return 1
	}
	return v
}
