package battle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// ErrInvalidRoster is returned when a submitted team fails validation.
var ErrInvalidRoster = errors.New("invalid roster")

// Member is one creature of a submitted roster.
type Member struct {
	Species string        `json:"species" yaml:"species"`
	Level   int           `json:"level" yaml:"level"`
	Types   []combat.Type `json:"types" yaml:"types"`
	Stats   Stats         `json:"stats" yaml:"stats"`
	Item    string        `json:"item" yaml:"item"`
	Ability string        `json:"ability" yaml:"ability"`
	Moves   []string      `json:"moves" yaml:"moves"`
}

// Roster is a player's team in lead-first order.
type Roster struct {
	Player  string   `json:"player" yaml:"player"`
	Members []Member `json:"members" yaml:"members"`
}

// validate checks r against the catalog in env and returns every problem.
func (r Roster) validate(env Env) error {
	var errs []error
	if strings.TrimSpace(r.Player) == "" {
		errs = append(errs, errors.New("player must not be empty"))
	}
	if n := len(r.Members); n < 1 || n > MaxTeamSize {
		errs = append(errs, fmt.Errorf("team size %d outside 1..%d", n, MaxTeamSize))
	}
	for j, m := range r.Members {
		if strings.TrimSpace(m.Species) == "" {
			errs = append(errs, fmt.Errorf("member %d: species must not be empty", j))
		}
		if m.Level < 1 || m.Level > 100 {
			errs = append(errs, fmt.Errorf("member %d: level %d outside 1..100", j, m.Level))
		}
		if n := len(m.Types); n < 1 || n > 2 {
			errs = append(errs, fmt.Errorf("member %d: needs one or two types", j))
		}
		for _, t := range m.Types {
			if !t.Valid() {
				errs = append(errs, fmt.Errorf("member %d: unknown type %q", j, t))
			}
		}
		s := m.Stats
		if s.HP < 1 || s.Atk < 1 || s.Def < 1 || s.SpA < 1 || s.SpD < 1 || s.Spe < 1 {
			errs = append(errs, fmt.Errorf("member %d: stats must be positive", j))
		}
		if n := len(m.Moves); n < 1 || n > MaxMoves {
			errs = append(errs, fmt.Errorf("member %d: move count %d outside 1..%d", j, n, MaxMoves))
		}
		seen := make(map[string]bool, len(m.Moves))
		for _, id := range m.Moves {
			if seen[id] {
				errs = append(errs, fmt.Errorf("member %d: duplicate move %q", j, id))
			}
			seen[id] = true
			if env.Catalog == nil {
				continue
			}
			if _, ok := env.Catalog.Lookup(id); !ok {
				errs = append(errs, fmt.Errorf("member %d: unknown move %q", j, id))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w for %q: %w", ErrInvalidRoster, r.Player, errors.Join(errs...))
	}
	return nil
}

func (m Member) creature(env Env) Creature {
	c := Creature{
		Species: m.Species,
		Level:   m.Level,
		Types:   append([]combat.Type(nil), m.Types...),
		Stats:   m.Stats,
		Item:    normalize(m.Item),
		Ability: normalize(m.Ability),
		HP:      m.Stats.HP,
		Moves:   make([]MoveSlot, 0, len(m.Moves)),
	}
	for _, id := range m.Moves {
		pp := 0
		if env.Catalog != nil {
			if mv, ok := env.Catalog.Lookup(id); ok {
				pp = mv.PP
			}
		}
		c.Moves = append(c.Moves, MoveSlot{ID: id, PP: pp})
	}
	return c
}

// NewBattle validates both rosters and builds the opening state. Leads'
// entry abilities run before the first turn.
//
// Precondition: rng carries a seed from a process-level random source.
// Postcondition: the state is in choosing at turn 1, version 1.
func NewBattle(id string, rosters [2]Roster, rng dice.State, env Env) (*Result, error) {
	var errs []error
	for _, r := range rosters {
		if err := r.validate(env); err != nil {
			errs = append(errs, err)
		}
	}
	if rosters[SideA].Player != "" && rosters[SideA].Player == rosters[SideB].Player {
		errs = append(errs, fmt.Errorf("%w: a player cannot battle themselves", ErrInvalidRoster))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	st := &State{
		ID: id,
		Meta: Meta{
			Format:     FormatSingles,
			RuleSet:    RuleSetGen9,
			Phase:      PhaseChoosing,
			Turn:       1,
			Version:    1,
			DeadlineAt: env.Now.Add(env.Rules.turnDuration()),
			RNG:        rng,
			CreatedAt:  env.Now,
		},
	}
	for i, r := range rosters {
		st.Meta.Players[i] = r.Player
		side := Side{Player: r.Player, Team: make([]Creature, len(r.Members))}
		for j, m := range r.Members {
			side.Team[j] = m.creature(env)
		}
		st.Sides[i] = side
	}

	c := newContext(st, env)
	c.logf("%s sent out %s!", SideA.Tag(), c.active(SideA).Species)
	c.logf("%s sent out %s!", SideB.Tag(), c.active(SideB).Species)
	c.entryAbility(SideA)
	c.entryAbility(SideB)
	c.summary = "The battle began."
	return c.result()
}
