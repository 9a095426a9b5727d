package combat

import "math"

// MinStage and MaxStage bound every stat stage.
const (
	MinStage = -6
	MaxStage = 6
)

// Stat names a stage-modifiable statistic.
type Stat int

const (
	StatUnknown Stat = iota
	Atk
	Def
	SpA
	SpD
	Spe
	Acc
	Eva
)

var statNames = map[Stat]string{
	Atk: "atk", Def: "def", SpA: "spa", SpD: "spd", Spe: "spe", Acc: "acc", Eva: "eva",
}

var statLabels = map[Stat]string{
	Atk: "Attack", Def: "Defense", SpA: "Sp. Atk", SpD: "Sp. Def", Spe: "Speed", Acc: "accuracy", Eva: "evasiveness",
}

// String returns the short key used in content files ("atk", "spe", ...).
func (s Stat) String() string {
	if n, ok := statNames[s]; ok {
		return n
	}
	return "unknown"
}

// Label returns the display name used in battle logs.
func (s Stat) Label() string {
	if n, ok := statLabels[s]; ok {
		return n
	}
	return "stat"
}

// ParseStat resolves a short stat key. Returns StatUnknown for anything else.
func ParseStat(key string) Stat {
	for s, n := range statNames {
		if n == key {
			return s
		}
	}
	return StatUnknown
}

// Stages holds the per-side stat stages of the active combatant.
//
// Invariant: every field is within [MinStage, MaxStage].
type Stages struct {
	Atk int `json:"atk"`
	Def int `json:"def"`
	SpA int `json:"spa"`
	SpD int `json:"spd"`
	Spe int `json:"spe"`
	Acc int `json:"acc"`
	Eva int `json:"eva"`
}

func (s *Stages) slot(stat Stat) *int {
	switch stat {
	case Atk:
		return &s.Atk
	case Def:
		return &s.Def
	case SpA:
		return &s.SpA
	case SpD:
		return &s.SpD
	case Spe:
		return &s.Spe
	case Acc:
		return &s.Acc
	case Eva:
		return &s.Eva
	}
	return nil
}

// Get returns the current stage of stat, 0 for unknown stats.
func (s Stages) Get(stat Stat) int {
	if p := s.slot(stat); p != nil {
		return *p
	}
	return 0
}

// Add applies delta to stat, clamping to [MinStage, MaxStage], and returns
// the change actually applied.
//
// Postcondition: the stage is within bounds; |applied| <= |delta|.
func (s *Stages) Add(stat Stat, delta int) int {
	p := s.slot(stat)
	if p == nil {
		return 0
	}
	before := *p
	*p = ClampStage(before + delta)
	return *p - before
}

// ClampStage clamps stage into [MinStage, MaxStage].
func ClampStage(stage int) int {
	if stage < MinStage {
		return MinStage
	}
	if stage > MaxStage {
		return MaxStage
	}
	return stage
}

// StageMultiplier returns (2+s)/2 for s >= 0 and 2/(2-s) for s < 0.
func StageMultiplier(stage int) float64 {
	stage = ClampStage(stage)
	if stage >= 0 {
		return float64(2+stage) / 2
	}
	return 2 / float64(2-stage)
}

// ApplyStage scales raw by the stage multiplier.
//
// Postcondition: result >= 1.
func ApplyStage(raw, stage int) int {
	v := int(math.Floor(float64(raw) * StageMultiplier(stage)))
	if v < 1 {
		return 1
	}
	return v
}
