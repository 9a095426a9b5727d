package moves

import "github.com/cory-johannsen/duel/internal/game/combat"

// EffectKind enumerates the closed set of status-move effects.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectStatChange
	EffectInflictStatus
	EffectSubstitute
	EffectProtect
	EffectFieldTimer
	EffectPerishSong
	EffectHeal
	EffectHazard
	EffectTaunt
	EffectEncore
	EffectDisable
)

var effectKindNames = map[EffectKind]string{
	EffectNone:          "none",
	EffectStatChange:    "stat-change",
	EffectInflictStatus: "inflict-status",
	EffectSubstitute:    "substitute",
	EffectProtect:       "protect",
	EffectFieldTimer:    "field-timer",
	EffectPerishSong:    "perish-song",
	EffectHeal:          "heal",
	EffectHazard:        "hazard",
	EffectTaunt:         "taunt",
	EffectEncore:        "encore",
	EffectDisable:       "disable",
}

// String returns the content-file key of k.
func (k EffectKind) String() string {
	if n, ok := effectKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Effect is a resolved status-move effect. The set of implementations is
// closed: only types in this package satisfy it.
type Effect interface {
	Kind() EffectKind
	sealed()
}

// Target selects which side a stat change applies to.
type Target int

const (
	TargetSelf Target = iota
	TargetFoe
)

// Timer names a five-turn side condition.
type Timer int

const (
	TimerReflect Timer = iota + 1
	TimerLightScreen
	TimerSafeguard
	TimerMist
)

// Hazard names an entry hazard.
type Hazard int

const (
	HazardStealthRock Hazard = iota + 1
	HazardSpikes
	HazardToxicSpikes
	HazardStickyWeb
)

// Durations and caps of side conditions.
const (
	FieldTimerTurns = 5
	PerishTurns     = 3
	MaxSpikes       = 3
	MaxToxicSpikes  = 2
)

type NoEffect struct{}

type StatChange struct {
	Target Target
	Stat   combat.Stat
	Stages int
}

type InflictStatus struct {
	Status combat.Status
}

type Substitute struct{}

type Protect struct{}

type FieldTimer struct {
	Timer Timer
}

type PerishSong struct{}

// Heal restores Fraction of the user's max HP.
type Heal struct {
	Fraction float64
}

type SetHazard struct {
	Hazard Hazard
}

type Taunt struct{ Turns int }

// Encore locks the target into its last used move.
type Encore struct{ Turns int }

// Disable blocks the target's last used move.
type Disable struct{ Turns int }

func (NoEffect) Kind() EffectKind      { return EffectNone }
func (StatChange) Kind() EffectKind    { return EffectStatChange }
func (InflictStatus) Kind() EffectKind { return EffectInflictStatus }
func (Substitute) Kind() EffectKind    { return EffectSubstitute }
func (Protect) Kind() EffectKind       { return EffectProtect }
func (FieldTimer) Kind() EffectKind    { return EffectFieldTimer }
func (PerishSong) Kind() EffectKind    { return EffectPerishSong }
func (Heal) Kind() EffectKind          { return EffectHeal }
func (SetHazard) Kind() EffectKind     { return EffectHazard }
func (Taunt) Kind() EffectKind         { return EffectTaunt }
func (Encore) Kind() EffectKind        { return EffectEncore }
func (Disable) Kind() EffectKind       { return EffectDisable }

func (NoEffect) sealed()      {}
func (StatChange) sealed()    {}
func (InflictStatus) sealed() {}
func (Substitute) sealed()    {}
func (Protect) sealed()       {}
func (FieldTimer) sealed()    {}
func (PerishSong) sealed()    {}
func (Heal) sealed()          {}
func (SetHazard) sealed()     {}
func (Taunt) sealed()         {}
func (Encore) sealed()        {}
func (Disable) sealed()       {}

// TargetsFoe reports whether e acts on the opposing combatant, which is what
// substitutes and safeguard can block.
func TargetsFoe(e Effect) bool {
	switch v := e.(type) {
	case StatChange:
		return v.Target == TargetFoe
	case InflictStatus, Taunt, Encore, Disable:
		return true
	}
	return false
}
