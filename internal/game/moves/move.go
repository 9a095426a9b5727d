// Package moves loads the move catalog and compiles each definition into a
// Move whose status effect is a member of a closed Effect union.
package moves

import "github.com/cory-johannsen/duel/internal/game/combat"

// Category is the damage class of a move.
type Category string

const (
	Physical Category = "physical"
	Special  Category = "special"
	Status   Category = "status"
)

// Secondary is a chance to inflict a status after a damaging hit.
type Secondary struct {
	Status combat.Status
	Chance float64
}

// Move is a compiled, immutable move definition.
type Move struct {
	ID       string
	Name     string
	Type     combat.Type
	Category Category
	Power    int
	// Accuracy is ignored when AlwaysHits is set.
	Accuracy   float64
	AlwaysHits bool
	Priority   int
	PP         int

	// Hits is the fixed hit count (>= 1) unless VariableHits is set.
	Hits         int
	VariableHits bool

	HighCrit      bool
	Recharge      bool
	BypassProtect bool
	Sound         bool
	Contact       bool
	// Interrupt moves strike a switching target before it leaves.
	Interrupt bool
	KnockOff  bool
	// Typeless moves skip type effectiveness and STAB.
	Typeless bool

	Drain      float64
	Recoil     float64
	MissRecoil float64
	Secondary  *Secondary

	Effect Effect
}

// IsStatus reports whether m is a status-category move.
func (m *Move) IsStatus() bool { return m.Category == Status }

// StruggleID is the reserved id of the fallback move.
const StruggleID = "struggle"

// Struggle is used when a combatant has no legal move left. It never misses,
// ignores type matchups and costs the user a quarter of its max HP.
var Struggle = &Move{
	ID:         StruggleID,
	Name:       "Struggle",
	Type:       combat.Normal,
	Category:   Physical,
	Power:      50,
	AlwaysHits: true,
	Hits:       1,
	Contact:    true,
	Typeless:   true,
	Effect:     NoEffect{},
}
