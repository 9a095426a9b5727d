package battle

import (
	"strings"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// Abilities and held items with engine behaviour. Roster values are
// normalised to lower case on battle creation.
const (
	AbilityIntimidate    = "intimidate"
	AbilityClearBody     = "clear body"
	AbilityWhiteSmoke    = "white smoke"
	AbilityFullMetalBody = "full metal body"
	AbilityHyperCutter   = "hyper cutter"
	AbilityDefiant       = "defiant"
	AbilityCompetitive   = "competitive"
	AbilityInfiltrator   = "infiltrator"
	AbilitySoundproof    = "soundproof"
	AbilitySkillLink     = "skill link"
	AbilityTechnician    = "technician"
	AbilityTintedLens    = "tinted lens"
	AbilityAdaptability  = "adaptability"
	AbilityRoughSkin     = "rough skin"
	AbilityLevitate      = "levitate"

	ItemLifeOrb     = "life orb"
	ItemRockyHelmet = "rocky helmet"
	ItemChoiceBand  = "choice band"
	ItemChoiceSpecs = "choice specs"
	ItemChoiceScarf = "choice scarf"
)

const choiceBoost = 1.5

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isChoiceItem(item string) bool {
	switch item {
	case ItemChoiceBand, ItemChoiceSpecs, ItemChoiceScarf:
		return true
	}
	return false
}

// blocksStatDrop reports whether ability prevents an opponent lowering stat.
func blocksStatDrop(ability string, stat combat.Stat) bool {
	switch ability {
	case AbilityClearBody, AbilityWhiteSmoke, AbilityFullMetalBody:
		return true
	case AbilityHyperCutter:
		return stat == combat.Atk
	}
	return false
}

// grounded reports whether c is affected by ground-level hazards.
func grounded(c *Creature) bool {
	return !combat.HasType(c.Types, combat.Flying) && c.Ability != AbilityLevitate
}
