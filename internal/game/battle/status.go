package battle

import (
	"math"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

// statusImmunity lists the types that can never hold a given status.
var statusImmunity = map[combat.Status][]combat.Type{
	combat.Poisoned:  {combat.Poison, combat.Steel},
	combat.Burned:    {combat.Fire},
	combat.Paralysis: {combat.Electric},
	combat.Frozen:    {combat.Ice},
}

// applyStatusMove dispatches the compiled effect of a status move used by
// side i.
func (c *Context) applyStatusMove(i SideIndex, m *moves.Move) {
	o := i.Other()
	foe := c.side(o)

	if moves.TargetsFoe(m.Effect) {
		if foe.Volatiles.Protection.Active() && !m.BypassProtect {
			c.logf("%s protected itself!", c.name(o))
			return
		}
		if foe.Volatiles.Substitute > 0 && !m.Sound && c.active(i).Ability != AbilityInfiltrator {
			c.logf("But it failed!")
			return
		}
	}

	switch e := m.Effect.(type) {
	case moves.StatChange:
		c.statChange(i, e)
	case moves.InflictStatus:
		c.inflictStatus(i, m, e.Status)
	case moves.Substitute:
		c.makeSubstitute(i)
	case moves.Protect:
		c.protect(i)
	case moves.FieldTimer:
		c.setFieldTimer(i, e.Timer)
	case moves.PerishSong:
		c.perishSong(i)
	case moves.Heal:
		c.healSelf(i, e.Fraction)
	case moves.SetHazard:
		c.setHazard(o, e.Hazard)
	case moves.Taunt:
		if foe.Volatiles.Taunt > 0 {
			c.logf("But it failed!")
			return
		}
		foe.Volatiles.Taunt = e.Turns
		c.logf("%s fell for the taunt!", c.name(o))
	case moves.Encore:
		last := foe.LastMove
		if last == "" || last == moves.StruggleID || foe.Volatiles.Encore.Active() {
			c.logf("But it failed!")
			return
		}
		foe.Volatiles.Encore = MoveLock{Move: last, Turns: e.Turns}
		c.logf("%s received an encore!", c.name(o))
	case moves.Disable:
		last := foe.LastMove
		if last == "" || last == moves.StruggleID || foe.Volatiles.Disable.Active() {
			c.logf("But it failed!")
			return
		}
		foe.Volatiles.Disable = MoveLock{Move: last, Turns: e.Turns}
		c.logf("%s's %s was disabled!", c.name(o), c.moveName(last))
	case moves.NoEffect, nil:
		c.logf("But nothing happened!")
	}
}

func (c *Context) moveName(id string) string {
	if m, ok := c.lookup(id); ok {
		return m.Name
	}
	return id
}

func (c *Context) statChange(i SideIndex, e moves.StatChange) {
	target := i
	if e.Target == moves.TargetFoe {
		target = i.Other()
	}
	if e.Stages >= 0 {
		c.raiseStat(target, e.Stat, e.Stages)
		return
	}
	c.lowerStat(target, e.Stat, -e.Stages, i)
}

func (c *Context) inflictStatus(i SideIndex, m *moves.Move, status combat.Status) {
	o := i.Other()
	mon := c.active(o)
	if combat.Effectiveness(m.Type, mon.Types) == 0 {
		c.logf("It doesn't affect %s...", c.name(o))
		return
	}
	if mon.Status != combat.StatusNone {
		c.logf("But it failed!")
		return
	}
	for _, t := range statusImmunity[status] {
		if combat.HasType(mon.Types, t) {
			c.logf("It doesn't affect %s...", c.name(o))
			return
		}
	}
	if c.safeguarded(o, i) {
		c.logf("Safeguard protected %s!", c.name(o))
		return
	}
	mon.Status = status
	c.logf("%s was %s!", c.name(o), status.Verb())
}

// makeSubstitute spends a quarter of max HP on a decoy. The user must keep
// at least 1 HP.
func (c *Context) makeSubstitute(i SideIndex) {
	s := c.side(i)
	mon := s.Active()
	if s.Volatiles.Substitute > 0 {
		c.logf("%s already has a substitute!", c.name(i))
		return
	}
	cost := mon.MaxHP() / 4
	if cost < 1 || mon.HP <= cost {
		c.logf("But it does not have enough HP left to make a substitute!")
		return
	}
	mon.ApplyDamage(cost)
	s.Volatiles.Substitute = cost
	c.logf("%s put in a substitute!", c.name(i))
}

// protect raises a shield with probability 3^-chain. A failure resets the
// chain.
func (c *Context) protect(i SideIndex) {
	v := &c.side(i).Volatiles
	chain := v.Protection.Chain()
	if chain > 0 && c.draw() >= math.Pow(3, -float64(chain)) {
		v.Protection = ProtectInactive(0)
		c.logf("But it failed!")
		return
	}
	v.Protection = ProtectActive(chain + 1)
	c.logf("%s protected itself!", c.name(i))
}

func (c *Context) setFieldTimer(i SideIndex, t moves.Timer) {
	f := c.field(i)
	var slot *int
	var label string
	switch t {
	case moves.TimerReflect:
		slot, label = &f.Reflect, "Reflect raised %s's team's Defense!"
	case moves.TimerLightScreen:
		slot, label = &f.LightScreen, "Light Screen raised %s's team's Special Defense!"
	case moves.TimerSafeguard:
		slot, label = &f.Safeguard, "%s's team became cloaked in a mystical veil!"
	case moves.TimerMist:
		slot, label = &f.Mist, "%s's team became shrouded in mist!"
	default:
		c.logf("But nothing happened!")
		return
	}
	if *slot > 0 {
		c.logf("But it failed!")
		return
	}
	*slot = moves.FieldTimerTurns
	c.logf(label, i.Tag())
}

// perishSong starts the countdown on both actives. Soundproof holders and
// combatants already counting are unaffected.
func (c *Context) perishSong(i SideIndex) {
	c.logf("All creatures hearing the song will faint in three turns!")
	for _, s := range []SideIndex{i, i.Other()} {
		v := &c.side(s).Volatiles
		if v.Perish > 0 {
			continue
		}
		if c.active(s).Ability == AbilitySoundproof {
			c.logf("%s's Soundproof blocks the song!", c.name(s))
			continue
		}
		v.Perish = moves.PerishTurns
	}
}

func (c *Context) healSelf(i SideIndex, fraction float64) {
	mon := c.active(i)
	if mon.HP >= mon.MaxHP() {
		c.logf("%s's HP is full!", c.name(i))
		return
	}
	healed := mon.Heal(combat.FractionOf(mon.MaxHP(), fraction))
	c.logf("%s restored %d HP!", c.name(i), healed)
}

// setHazard lays a hazard on side target.
func (c *Context) setHazard(target SideIndex, h moves.Hazard) {
	hz := &c.field(target).Hazards
	switch h {
	case moves.HazardStealthRock:
		if hz.StealthRock {
			c.logf("But it failed!")
			return
		}
		hz.StealthRock = true
		c.logf("Pointed stones float in the air around %s's team!", target.Tag())
	case moves.HazardSpikes:
		if hz.Spikes >= moves.MaxSpikes {
			c.logf("But it failed!")
			return
		}
		hz.Spikes++
		c.logf("Spikes were scattered around %s's team!", target.Tag())
	case moves.HazardToxicSpikes:
		if hz.ToxicSpikes >= moves.MaxToxicSpikes {
			c.logf("But it failed!")
			return
		}
		hz.ToxicSpikes++
		c.logf("Poison spikes were scattered around %s's team!", target.Tag())
	case moves.HazardStickyWeb:
		if hz.StickyWeb {
			c.logf("But it failed!")
			return
		}
		hz.StickyWeb = true
		c.logf("A sticky web spreads out around %s's team!", target.Tag())
	default:
		c.logf("But nothing happened!")
	}
}
