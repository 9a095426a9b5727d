package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// VersionMismatch is the error recorded when a choice was made against a
// stale version.
const VersionMismatch = "clientVersion-mismatch"

// ErrMissingChoice is returned when a turn is resolved without both choices.
var ErrMissingChoice = errors.New("both choices are required")

// Result is the outcome of one pure resolution.
type Result struct {
	State   *State   `json:"state"`
	Logs    []string `json:"logs"`
	Summary string   `json:"summary"`
	Hash    string   `json:"hash"`
	// Conflict is set when a stale choice aborted the turn. State is then
	// the snapshot returned to choosing, unchanged otherwise.
	Conflict bool `json:"conflict"`
}

// ResolveTurn runs one full turn against snapshot and returns the new state.
// snapshot is never modified.
//
// Precondition: snapshot is in choosing or resolving.
// Postcondition: on success the returned state is in choosing, replacing or
// ended; a version conflict leaves turn, version and RNG untouched.
func ResolveTurn(snapshot *State, choices [2]*Choice, env Env) (*Result, error) {
	if snapshot == nil {
		return nil, errors.New("nil snapshot")
	}
	if choices[SideA] == nil || choices[SideB] == nil {
		return nil, ErrMissingChoice
	}
	st := snapshot.Clone()
	if st.Meta.Phase == PhaseChoosing {
		if err := transition(st, EventResolve); err != nil {
			return nil, err
		}
	}
	if st.Meta.Phase != PhaseResolving {
		return nil, fmt.Errorf("%w: resolve from %s", ErrIllegalTransition, st.Meta.Phase)
	}

	c := newContext(st, env)

	if forfeit(c, choices) {
		if err := transition(st, EventEnd); err != nil {
			return nil, err
		}
		return c.result()
	}

	for _, ch := range choices {
		if ch.ObservedVersion != st.Meta.Version {
			if err := transition(st, EventConflict); err != nil {
				return nil, err
			}
			c.logs = []string{VersionMismatch}
			res, err := c.result()
			if err != nil {
				return nil, err
			}
			res.Conflict = true
			return res, nil
		}
	}

	for _, step := range c.order(choices) {
		if c.halted() {
			break
		}
		c.run(step)
	}

	c.endOfTurn()
	if err := c.settle(env); err != nil {
		return nil, err
	}
	return c.result()
}

// forfeit ends the battle when either player gave up. Both forfeiting is a
// draw.
func forfeit(c *Context, choices [2]*Choice) bool {
	a := choices[SideA].Action == ActionForfeit
	b := choices[SideB].Action == ActionForfeit
	if !a && !b {
		return false
	}
	m := &c.st.Meta
	switch {
	case a && b:
		c.logf("Both players forfeited.")
		m.Winner = ""
	case a:
		c.logf("%s forfeited.", m.Players[SideA])
		m.Winner = m.Players[SideB]
	default:
		c.logf("%s forfeited.", m.Players[SideB])
		m.Winner = m.Players[SideA]
	}
	m.EndReason = ReasonForfeit
	m.NeedsReplace = [2]bool{}
	m.Version++
	c.summary = "The battle ended by forfeit."
	return true
}

// endOfTurn applies residuals in order: poison, burn, recharge, protect,
// timers, then the perish countdown.
func (c *Context) endOfTurn() {
	sides := []SideIndex{SideA, SideB}

	for _, i := range sides {
		if mon := c.active(i); mon.Alive() && mon.Status == combat.Poisoned {
			c.logf("%s is hurt by poison!", c.name(i))
			c.hurt(i, combat.FractionOf(mon.MaxHP(), 1.0/8))
		}
	}
	for _, i := range sides {
		if mon := c.active(i); mon.Alive() && mon.Status == combat.Burned {
			c.logf("%s is hurt by its burn!", c.name(i))
			c.hurt(i, combat.FractionOf(mon.MaxHP(), 1.0/16))
		}
	}
	for _, i := range sides {
		v := &c.side(i).Volatiles
		switch v.Recharge {
		case RechargePending:
			v.Recharge = RechargeDue
		case RechargeDue:
			v.Recharge = RechargeNone
		}
	}
	for _, i := range sides {
		v := &c.side(i).Volatiles
		v.Protection = v.Protection.endOfTurn()
	}
	for _, i := range sides {
		c.tickTimers(i)
	}
	for _, i := range sides {
		v := &c.side(i).Volatiles
		if v.Perish <= 0 || !c.active(i).Alive() {
			continue
		}
		v.Perish--
		c.logf("%s's perish count fell to %d.", c.name(i), v.Perish)
		if v.Perish == 0 {
			c.hurt(i, c.active(i).HP)
		}
	}
}

func (c *Context) tickTimers(i SideIndex) {
	f := c.field(i)
	timers := []struct {
		turns *int
		name  string
	}{
		{&f.Reflect, "Reflect"},
		{&f.LightScreen, "Light Screen"},
		{&f.Safeguard, "Safeguard"},
		{&f.Mist, "Mist"},
	}
	for _, t := range timers {
		if *t.turns <= 0 {
			continue
		}
		*t.turns--
		if *t.turns == 0 {
			c.logf("%s's %s wore off!", i.Tag(), t.name)
		}
	}

	v := &c.side(i).Volatiles
	if v.Taunt > 0 {
		v.Taunt--
		if v.Taunt == 0 {
			c.logf("%s's taunt wore off!", c.name(i))
		}
	}
	if v.Encore.tick() {
		c.logf("%s's encore ended!", c.name(i))
	}
	if v.Disable.tick() {
		c.logf("%s is no longer disabled!", c.name(i))
	}
}

// settle performs the terminal check and moves the battle to its next phase.
func (c *Context) settle(env Env) error {
	m := &c.st.Meta
	down := [2]bool{}
	out := [2]bool{}
	for _, i := range []SideIndex{SideA, SideB} {
		down[i] = !c.active(i).Alive()
		out[i] = down[i] && !c.side(i).HasHealthyBench()
	}

	m.Version++
	m.NeedsReplace = [2]bool{}
	switch {
	case out[SideA] && out[SideB]:
		m.Winner = ""
		m.EndReason = ReasonDoubleKO
		c.logf("Both sides are out of usable creatures. The battle is a draw!")
		c.summary = "The battle ended in a draw."
		return transition(c.st, EventEnd)
	case out[SideA] || out[SideB]:
		win := SideA
		if out[SideA] {
			win = SideB
		}
		m.Winner = m.Players[win]
		m.EndReason = ReasonKnockout
		c.logf("%s won the battle!", m.Players[win])
		return transition(c.st, EventEnd)
	case down[SideA] || down[SideB]:
		m.NeedsReplace = down
		return transition(c.st, EventReplace)
	}
	m.Turn++
	m.DeadlineAt = env.Now.Add(env.Rules.turnDuration())
	return transition(c.st, EventAdvance)
}

func (c *Context) result() (*Result, error) {
	h, err := Hash(c.st)
	if err != nil {
		return nil, err
	}
	return &Result{State: c.st, Logs: c.logs, Summary: c.summary, Hash: h}, nil
}
