// Package battle is the shared, pure rules library of the engine. It owns the
// battle data model and every step of turn resolution: action ordering, the
// effect resolvers, end-of-turn residuals and terminal detection. Nothing in
// this package performs I/O; callers pass a snapshot in and persist the
// returned state themselves.
package battle

import (
	"time"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// Phase is the coarse state of a battle.
type Phase string

const (
	PhaseChoosing  Phase = "choosing"
	PhaseResolving Phase = "resolving"
	PhaseReplacing Phase = "replacing"
	PhaseEnded     Phase = "ended"
)

// EndReason explains why a battle ended.
type EndReason string

const (
	ReasonNone     EndReason = ""
	ReasonKnockout EndReason = "knockout"
	ReasonDoubleKO EndReason = "doubleKO"
	ReasonForfeit  EndReason = "forfeit"
)

// Battle-wide constants written into every new Meta.
const (
	FormatSingles = "singles"
	RuleSetGen9   = "gen9-no-weather"
	MaxTeamSize   = 6
	MaxMoves      = 4
)

// SideIndex addresses one of the two sides.
type SideIndex int

const (
	SideA SideIndex = 0
	SideB SideIndex = 1
)

// Other returns the opposing side.
func (i SideIndex) Other() SideIndex { return 1 - i }

// Tag returns the short label used in logs.
func (i SideIndex) Tag() string {
	if i == SideA {
		return "P1"
	}
	return "P2"
}

// Stats are the fixed battle stats of a creature.
type Stats struct {
	HP  int `json:"hp"`
	Atk int `json:"atk"`
	Def int `json:"def"`
	SpA int `json:"spa"`
	SpD int `json:"spd"`
	Spe int `json:"spe"`
}

// MoveSlot is one known move and its remaining PP.
type MoveSlot struct {
	ID string `json:"id"`
	PP int    `json:"pp"`
}

// Creature is one team member.
//
// Invariant: 0 <= HP <= Stats.HP; Fainted implies HP == 0.
type Creature struct {
	Species string        `json:"species"`
	Level   int           `json:"level"`
	Types   []combat.Type `json:"types"`
	Stats   Stats         `json:"stats"`
	Item    string        `json:"item"`
	Ability string        `json:"ability"`
	Status  combat.Status `json:"status"`
	HP      int           `json:"hp"`
	Fainted bool          `json:"fainted"`
	Moves   []MoveSlot    `json:"moves"`
}

// MaxHP returns the creature's maximum HP.
func (c *Creature) MaxHP() int { return c.Stats.HP }

// Alive reports whether the creature can still battle.
func (c *Creature) Alive() bool { return !c.Fainted && c.HP > 0 }

// ApplyDamage reduces HP by amount, flooring at zero, and marks the creature
// fainted when HP reaches zero. Returns the HP actually removed.
//
// Precondition: amount >= 0.
// Postcondition: 0 <= HP <= MaxHP; HP == 0 implies Fainted.
func (c *Creature) ApplyDamage(amount int) int {
	if amount <= 0 || c.Fainted {
		return 0
	}
	if amount > c.HP {
		amount = c.HP
	}
	c.HP -= amount
	if c.HP == 0 {
		c.Fainted = true
	}
	return amount
}

// Heal raises HP by amount, capped at MaxHP. Fainted creatures cannot be
// healed. Returns the HP actually restored.
//
// Postcondition: 0 <= HP <= MaxHP.
func (c *Creature) Heal(amount int) int {
	if amount <= 0 || c.Fainted {
		return 0
	}
	if room := c.MaxHP() - c.HP; amount > room {
		amount = room
	}
	c.HP += amount
	return amount
}

// Slot returns the move slot for id, or nil.
func (c *Creature) Slot(id string) *MoveSlot {
	for i := range c.Moves {
		if c.Moves[i].ID == id {
			return &c.Moves[i]
		}
	}
	return nil
}

// Side is one player's half of the battle. Team[0] is the active creature.
type Side struct {
	Player     string        `json:"player"`
	Team       []Creature    `json:"team"`
	Boosts     combat.Stages `json:"boosts"`
	Volatiles  Volatiles     `json:"volatiles"`
	ChoiceLock string        `json:"choiceLock"`
	LastMove   string        `json:"lastMove"`
}

// Active returns the creature currently on the field.
func (s *Side) Active() *Creature { return &s.Team[0] }

// FirstHealthyBench returns the index of the first living bench member, or -1.
func (s *Side) FirstHealthyBench() int {
	for i := 1; i < len(s.Team); i++ {
		if s.Team[i].Alive() {
			return i
		}
	}
	return -1
}

// HasHealthyBench reports whether any bench member can still battle.
func (s *Side) HasHealthyBench() bool { return s.FirstHealthyBench() >= 0 }

// resetOnSwitch clears everything that does not survive leaving the field.
func (s *Side) resetOnSwitch() {
	s.Boosts = combat.Stages{}
	s.Volatiles = Volatiles{}
	s.ChoiceLock = ""
	s.LastMove = ""
}

// Hazards are the entry hazards laid on one side.
type Hazards struct {
	StealthRock bool `json:"stealthRock"`
	Spikes      int  `json:"spikes"`
	ToxicSpikes int  `json:"toxicSpikes"`
	StickyWeb   bool `json:"stickyWeb"`
}

// SideField is the field state attached to one side.
type SideField struct {
	Hazards     Hazards `json:"hazards"`
	Reflect     int     `json:"reflect"`
	LightScreen int     `json:"lightScreen"`
	Safeguard   int     `json:"safeguard"`
	Mist        int     `json:"mist"`
}

// Field is the shared field state. Weather and terrain are not modelled.
type Field struct {
	Sides [2]SideField `json:"sides"`
}

// Meta is the authoritative bookkeeping of a battle.
//
// Invariant: Turn and Version never decrease.
type Meta struct {
	Format       string     `json:"format"`
	RuleSet      string     `json:"ruleSet"`
	Players      [2]string  `json:"players"`
	Phase        Phase      `json:"phase"`
	Turn         int        `json:"turn"`
	Version      int        `json:"version"`
	DeadlineAt   time.Time  `json:"deadlineAt"`
	RNG          dice.State `json:"rng"`
	Winner       string     `json:"winner"`
	EndReason    EndReason  `json:"endReason"`
	NeedsReplace [2]bool    `json:"needsReplace"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SideOf returns the side index of player, or false.
func (m *Meta) SideOf(player string) (SideIndex, bool) {
	for i, p := range m.Players {
		if p == player {
			return SideIndex(i), true
		}
	}
	return 0, false
}

// State is a complete battle snapshot.
type State struct {
	ID    string  `json:"id"`
	Meta  Meta    `json:"meta"`
	Sides [2]Side `json:"sides"`
	Field Field   `json:"field"`
}

// Side returns a pointer to side i.
func (s *State) Side(i SideIndex) *Side { return &s.Sides[i] }

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := *s
	for i := range out.Sides {
		team := make([]Creature, len(s.Sides[i].Team))
		for j, c := range s.Sides[i].Team {
			c.Types = append([]combat.Type(nil), c.Types...)
			c.Moves = append([]MoveSlot(nil), c.Moves...)
			team[j] = c
		}
		out.Sides[i].Team = team
	}
	return &out
}
