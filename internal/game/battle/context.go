package battle

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

// Rules carries the configurable parts of the rule set.
type Rules struct {
	// InfiltratorBypassesSafeguard lets an Infiltrator attacker ignore the
	// target side's Safeguard.
	InfiltratorBypassesSafeguard bool
	// TurnDuration is the decision window granted at the start of each turn.
	TurnDuration time.Duration
}

// DefaultTurnDuration is used when Rules.TurnDuration is zero.
const DefaultTurnDuration = 45 * time.Second

func (r Rules) turnDuration() time.Duration {
	if r.TurnDuration <= 0 {
		return DefaultTurnDuration
	}
	return r.TurnDuration
}

// Env is everything a resolution needs besides the snapshot.
type Env struct {
	Catalog moves.Catalog
	Rules   Rules
	// Now stamps the next decision deadline.
	Now time.Time
	// Stream overrides the snapshot's own RNG. When nil, draws come from
	// (and advance) the resolved state's Meta.RNG.
	Stream dice.Stream
	// StreamFor, when set and Stream is nil, wraps the resolved state's RNG,
	// e.g. to log every draw.
	StreamFor func(*dice.State) dice.Stream
}

// Context is the mutable working set of one resolution. It is never shared
// between goroutines.
type Context struct {
	st      *State
	catalog moves.Catalog
	rng     dice.Stream
	rules   Rules
	logs    []string
	summary string
}

func newContext(st *State, env Env) *Context {
	rng := env.Stream
	switch {
	case rng != nil:
	case env.StreamFor != nil:
		rng = env.StreamFor(&st.Meta.RNG)
	default:
		rng = &st.Meta.RNG
	}
	return &Context{st: st, catalog: env.Catalog, rng: rng, rules: env.Rules}
}

func (c *Context) side(i SideIndex) *Side       { return c.st.Side(i) }
func (c *Context) field(i SideIndex) *SideField { return &c.st.Field.Sides[i] }
func (c *Context) active(i SideIndex) *Creature { return c.st.Side(i).Active() }

func (c *Context) draw() float64 { return c.rng.Float() }

func (c *Context) logf(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// name renders the active creature of side i for logs.
func (c *Context) name(i SideIndex) string {
	return fmt.Sprintf("%s's %s", i.Tag(), c.active(i).Species)
}

// lookup resolves a move id through the injected catalog.
func (c *Context) lookup(id string) (*moves.Move, bool) {
	if id == moves.StruggleID {
		return moves.Struggle, true
	}
	if c.catalog == nil {
		return nil, false
	}
	return c.catalog.Lookup(id)
}

// hurt removes up to amount HP from side i's active and announces a faint.
func (c *Context) hurt(i SideIndex, amount int) int {
	mon := c.active(i)
	dealt := mon.ApplyDamage(amount)
	if dealt > 0 && mon.Fainted {
		c.logf("%s fainted!", c.name(i))
	}
	return dealt
}

// safeguarded reports whether side target's Safeguard stops a status or stat
// drop caused by side source.
func (c *Context) safeguarded(target, source SideIndex) bool {
	if c.field(target).Safeguard <= 0 {
		return false
	}
	if c.rules.InfiltratorBypassesSafeguard && c.active(source).Ability == AbilityInfiltrator {
		return false
	}
	return true
}

// halted reports whether an active combatant is down, which stops the queue.
func (c *Context) halted() bool {
	return !c.active(SideA).Alive() || !c.active(SideB).Alive()
}
