package battle

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

// canUse is the legality gate for side i using move m.
func (c *Context) canUse(i SideIndex, m *moves.Move) bool {
	s := c.side(i)
	if s.Volatiles.Recharge == RechargeDue {
		return false
	}
	slot := s.Active().Slot(m.ID)
	if slot == nil || slot.PP <= 0 {
		return false
	}
	if s.ChoiceLock != "" && s.ChoiceLock != m.ID {
		return false
	}
	if d := s.Volatiles.Disable; d.Active() && d.Move == m.ID {
		return false
	}
	if e := s.Volatiles.Encore; e.Active() && e.Move != m.ID {
		return false
	}
	if s.Volatiles.Taunt > 0 && m.IsStatus() {
		return false
	}
	return true
}

// hasUsableMove reports whether side i has any legal move at all.
func (c *Context) hasUsableMove(i SideIndex) bool {
	for _, slot := range c.active(i).Moves {
		if m, ok := c.lookup(slot.ID); ok && c.canUse(i, m) {
			return true
		}
	}
	return false
}

// useMove resolves side i's move action. powerMul scales base power; it is
// 2 for an interrupt strike and 1 otherwise.
func (c *Context) useMove(i SideIndex, moveID string, powerMul float64) {
	s := c.side(i)
	mon := s.Active()
	if !mon.Alive() {
		return
	}
	if s.Volatiles.Recharge == RechargeDue {
		c.logf("%s must recharge!", c.name(i))
		return
	}

	m, ok := c.lookup(moveID)
	if !ok {
		c.logf("%s tried to use %s, but the move failed!", c.name(i), moveID)
		return
	}
	if m.ID != moves.StruggleID && !c.canUse(i, m) {
		if c.hasUsableMove(i) {
			c.logf("%s couldn't use %s!", c.name(i), m.Name)
			return
		}
		c.logf("%s has no moves left!", c.name(i))
		m = moves.Struggle
	}
	struggling := m.ID == moves.StruggleID

	if !struggling {
		if slot := mon.Slot(m.ID); slot != nil && slot.PP > 0 {
			slot.PP--
		}
		s.LastMove = m.ID
		if isChoiceItem(mon.Item) && s.ChoiceLock == "" {
			s.ChoiceLock = m.ID
		}
	}

	o := i.Other()
	foe := c.side(o)

	if m.Sound && c.active(o).Ability == AbilitySoundproof && m.Effect.Kind() != moves.EffectPerishSong {
		c.logf("%s's Soundproof blocks %s!", c.name(o), m.Name)
		return
	}

	if foe.Volatiles.Protection.Active() && !m.IsStatus() {
		if !m.BypassProtect {
			c.logf("%s used %s!", c.name(i), m.Name)
			c.logf("%s protected itself!", c.name(o))
			return
		}
		foe.Volatiles.Protection = ProtectInactive(0)
		c.logf("%s's protection was pierced!", c.name(o))
	}

	if !m.AlwaysHits {
		if !combat.Hits(m.Accuracy, c.draw()) {
			c.logf("%s used %s but it missed!", c.name(i), m.Name)
			if m.MissRecoil > 0 {
				crash := int(math.Floor(float64(mon.MaxHP()) * m.MissRecoil))
				if crash > 0 {
					c.logf("%s kept going and crashed!", c.name(i))
					c.hurt(i, crash)
				}
			}
			return
		}
	}

	c.logf("%s used %s!", c.name(i), m.Name)

	if m.IsStatus() {
		c.applyStatusMove(i, m)
		c.summary = fmt.Sprintf("%s used %s.", c.name(i), m.Name)
	} else {
		c.applyDamagingMove(i, m, powerMul)
	}

	if struggling && mon.Alive() {
		c.logf("%s is damaged by recoil!", c.name(i))
		c.hurt(i, combat.FractionOf(mon.MaxHP(), 0.25))
	}

	if m.Recharge {
		s.Volatiles.Recharge = RechargePending
	}
}

func (c *Context) applyDamagingMove(i SideIndex, m *moves.Move, powerMul float64) {
	o := i.Other()
	am, dm := c.active(i), c.active(o)
	def := c.side(o)

	typeMult := 1.0
	if !m.Typeless {
		typeMult = combat.Effectiveness(m.Type, dm.Types)
		if am.Ability == AbilityTintedLens && typeMult > 0 && typeMult < 1 {
			typeMult *= 2
		}
	}
	if typeMult == 0 {
		c.logf("It doesn't affect %s...", c.name(o))
		c.summary = fmt.Sprintf("%s used %s with no effect.", c.name(i), m.Name)
		return
	}

	hits := m.Hits
	if m.VariableHits {
		if am.Ability == AbilitySkillLink {
			hits = 5
		} else {
			hits = combat.HitCount(c.draw())
		}
	}
	if hits < 1 {
		hits = 1
	}

	bypassSub := m.Sound || am.Ability == AbilityInfiltrator
	// total is what landed; computed is the uncapped sum drain and recoil
	// scale on.
	total, computed, landed := 0, 0, 0
	direct := false

	for h := 1; h <= hits; h++ {
		if !dm.Alive() {
			break
		}
		crit := combat.IsCrit(m.HighCrit, c.draw())
		rand := combat.RandomFactor(c.draw())
		dmg := c.computeDamage(i, m, crit, rand, typeMult, powerMul)
		if crit {
			c.logf("A critical hit!")
		}

		if sub := def.Volatiles.Substitute; sub > 0 && !bypassSub {
			dealt := dmg
			if dealt > sub {
				dealt = sub
			}
			def.Volatiles.Substitute = sub - dealt
			total += dealt
			c.logf("The substitute took %d damage for %s!", dealt, c.name(o))
			if def.Volatiles.Substitute == 0 {
				c.logf("%s's substitute faded!", c.name(o))
			}
		} else {
			direct = true
			if hits > 1 {
				c.logf("Hit %d dealt %d damage.", h, dmg)
			}
			total += c.hurt(o, dmg)
		}
		computed += dmg
		landed++
	}

	switch {
	case typeMult > 1:
		c.logf("It's super effective!")
	case typeMult < 1:
		c.logf("It's not very effective...")
	}
	if landed > 1 {
		c.logf("Hit %d time(s)!", landed)
	}

	if computed > 0 {
		c.onHit(i, m, computed, direct)
	}

	c.summary = fmt.Sprintf("%s used %s for %d total damage.", c.name(i), m.Name, total)
	if landed > 1 {
		c.summary = fmt.Sprintf("%s used %s for %d total damage (%d hits).", c.name(i), m.Name, total, landed)
	}
}

// computeDamage computes one hit from side i against the opposing active.
func (c *Context) computeDamage(i SideIndex, m *moves.Move, crit bool, rand, typeMult, powerMul float64) int {
	o := i.Other()
	am, dm := c.active(i), c.active(o)
	ab, db := c.side(i).Boosts, c.side(o).Boosts

	var atk, def int
	var screened bool
	mod := 1.0
	if m.Category == moves.Physical {
		atk = combat.ApplyStage(am.Stats.Atk, ab.Atk)
		def = combat.ApplyStage(dm.Stats.Def, db.Def)
		screened = c.field(o).Reflect > 0
		if am.Item == ItemChoiceBand {
			mod *= choiceBoost
		}
	} else {
		atk = combat.ApplyStage(am.Stats.SpA, ab.SpA)
		def = combat.ApplyStage(dm.Stats.SpD, db.SpD)
		screened = c.field(o).LightScreen > 0
		if am.Item == ItemChoiceSpecs {
			mod *= choiceBoost
		}
	}
	if am.Ability == AbilityInfiltrator {
		screened = false
	}

	power := m.Power
	if powerMul > 0 && powerMul != 1 {
		power = int(float64(power) * powerMul)
	}

	stab := 1.0
	if !m.Typeless && combat.HasType(am.Types, m.Type) {
		stab = combat.STABMultiplier
		if am.Ability == AbilityAdaptability {
			stab = combat.AdaptiveSTAB
		}
	}

	if am.Ability == AbilityTechnician && m.Power <= combat.TechnicianMaxPower {
		mod *= combat.TechnicianMultiplier
	}
	if am.Item == ItemLifeOrb {
		mod *= combat.LifeOrbMultiplier
	}
	if m.KnockOff && dm.Item != "" {
		mod *= combat.KnockOffMultiplier
	}

	return combat.Damage(combat.DamageInput{
		Level:    am.Level,
		Power:    power,
		Attack:   atk,
		Defense:  def,
		STAB:     stab,
		TypeMult: typeMult,
		Crit:     crit,
		Screened: screened,
		Random:   rand,
		Modifier: mod,
	})
}

// onHit applies everything that follows a damaging move whose hits computed
// total damage before substitute or HP caps. direct is false when every hit
// landed on a substitute.
func (c *Context) onHit(i SideIndex, m *moves.Move, total int, direct bool) {
	o := i.Other()
	am, dm := c.active(i), c.active(o)

	if m.Drain > 0 && direct && am.Alive() {
		if healed := am.Heal(combat.FractionOf(total, m.Drain)); healed > 0 {
			c.logf("%s had its energy drained!", c.name(o))
		}
	}

	if m.Recoil > 0 && am.Alive() {
		c.logf("%s is damaged by recoil!", c.name(i))
		c.hurt(i, combat.FractionOf(total, m.Recoil))
	}

	if sec := m.Secondary; sec != nil && direct && dm.Alive() && dm.Status == combat.StatusNone {
		if c.draw() < sec.Chance {
			if c.safeguarded(o, i) {
				c.logf("Safeguard protected %s!", c.name(o))
			} else {
				dm.Status = sec.Status
				c.logf("%s was %s!", c.name(o), sec.Status.Verb())
			}
		}
	}

	if am.Item == ItemLifeOrb && am.Alive() {
		c.logf("%s lost some of its HP!", c.name(i))
		c.hurt(i, combat.FractionOf(am.MaxHP(), 0.1))
	}

	if m.Contact && am.Alive() {
		sources := 0
		if dm.Ability == AbilityRoughSkin {
			sources++
			c.logf("%s is hurt by %s's Rough Skin!", c.name(i), c.name(o))
		}
		if dm.Item == ItemRockyHelmet {
			sources++
			c.logf("%s is hurt by %s's Rocky Helmet!", c.name(i), c.name(o))
		}
		if sources > 0 {
			c.hurt(i, combat.FractionOf(am.MaxHP(), float64(sources)/6))
		}
	}

	if m.KnockOff && dm.Item != "" {
		c.logf("%s lost its %s!", c.name(o), moves.DisplayName(dm.Item))
		dm.Item = ""
	}
}
