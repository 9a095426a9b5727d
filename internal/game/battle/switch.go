package battle

import (
	"math"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

// spikesFraction maps layer count to the fraction of max HP lost on entry.
var spikesFraction = map[int]float64{1: 1.0 / 8, 2: 1.0 / 6, 3: 1.0 / 4}

// switchIn brings bench member to onto the field for side i. Forced marks a
// replacement for a fainted active. Returns false when to is not a living
// bench member.
func (c *Context) switchIn(i SideIndex, to int, forced bool) bool {
	s := c.side(i)
	if to <= 0 || to >= len(s.Team) || !s.Team[to].Alive() {
		return false
	}
	out := s.Active().Species
	s.Team[0], s.Team[to] = s.Team[to], s.Team[0]
	s.resetOnSwitch()

	if forced {
		c.logf("%s sent out %s!", i.Tag(), s.Active().Species)
	} else {
		c.logf("%s withdrew %s and sent out %s!", i.Tag(), out, s.Active().Species)
	}
	c.summary = c.name(i) + " switched in."

	c.applyHazards(i)
	if s.Active().Alive() {
		c.entryAbility(i)
	}
	return true
}

func (c *Context) applyHazards(i SideIndex) {
	f := c.field(i)
	mon := c.active(i)

	if f.Hazards.StealthRock {
		if eff := combat.Effectiveness(combat.Rock, mon.Types); eff > 0 {
			dmg := int(math.Floor(float64(mon.MaxHP()) * eff / 8))
			if dmg < 1 {
				dmg = 1
			}
			c.logf("Pointed stones dug into %s!", c.name(i))
			c.hurt(i, dmg)
		}
	}

	if !mon.Alive() || !grounded(mon) {
		return
	}

	if layers := f.Hazards.Spikes; layers > 0 {
		if layers > 3 {
			layers = 3
		}
		c.logf("%s is hurt by the spikes!", c.name(i))
		c.hurt(i, combat.FractionOf(mon.MaxHP(), spikesFraction[layers]))
		if !mon.Alive() {
			return
		}
	}

	if f.Hazards.ToxicSpikes > 0 {
		switch {
		case combat.HasType(mon.Types, combat.Poison):
			f.Hazards.ToxicSpikes = 0
			c.logf("%s absorbed the toxic spikes!", c.name(i))
		case combat.HasType(mon.Types, combat.Steel), mon.Status != combat.StatusNone:
		case f.Safeguard > 0:
			c.logf("Safeguard protected %s from the toxic spikes!", c.name(i))
		default:
			mon.Status = combat.Poisoned
			c.logf("%s was poisoned!", c.name(i))
		}
	}

	if f.Hazards.StickyWeb {
		v := &c.side(i).Volatiles
		if v.SpeedStage > -1 {
			v.SpeedStage = -1
			c.logf("%s was caught in a sticky web!", c.name(i))
		}
	}
}

// entryAbility triggers switch-in abilities of side i's active.
func (c *Context) entryAbility(i SideIndex) {
	o := i.Other()
	if c.active(i).Ability != AbilityIntimidate || !c.active(o).Alive() {
		return
	}
	c.logf("%s's Intimidate cuts %s's Attack!", c.name(i), c.name(o))
	c.lowerStat(o, combat.Atk, 1, i)
}

// lowerStat drops target's stat by amount on behalf of source, honouring
// Mist, blocking abilities and reflective raises.
func (c *Context) lowerStat(target SideIndex, stat combat.Stat, amount int, source SideIndex) {
	mon := c.active(target)
	if source != target {
		if c.field(target).Mist > 0 {
			c.logf("%s is protected by the mist!", c.name(target))
			return
		}
		if blocksStatDrop(mon.Ability, stat) {
			c.logf("%s's %s prevents its %s from being lowered!", c.name(target), moves.DisplayName(mon.Ability), stat.Label())
			return
		}
	}

	applied := c.side(target).Boosts.Add(stat, -amount)
	switch {
	case applied == 0:
		c.logf("%s's %s won't go any lower!", c.name(target), stat.Label())
		return
	case applied <= -2:
		c.logf("%s's %s harshly fell!", c.name(target), stat.Label())
	default:
		c.logf("%s's %s fell!", c.name(target), stat.Label())
	}

	if source == target {
		return
	}
	switch mon.Ability {
	case AbilityDefiant:
		c.logf("%s's Defiant kicks in!", c.name(target))
		c.raiseStat(target, combat.Atk, 2)
	case AbilityCompetitive:
		c.logf("%s's Competitive kicks in!", c.name(target))
		c.raiseStat(target, combat.SpA, 2)
	}
}

func (c *Context) raiseStat(target SideIndex, stat combat.Stat, amount int) {
	applied := c.side(target).Boosts.Add(stat, amount)
	switch {
	case applied == 0:
		c.logf("%s's %s won't go any higher!", c.name(target), stat.Label())
	case applied >= 2:
		c.logf("%s's %s rose sharply!", c.name(target), stat.Label())
	default:
		c.logf("%s's %s rose!", c.name(target), stat.Label())
	}
}
