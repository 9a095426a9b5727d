package moves

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// MoveDef is the on-disk form of a move, loaded from YAML.
type MoveDef struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Type         string        `yaml:"type"`
	Category     string        `yaml:"category"`
	Power        int           `yaml:"power"`
	Accuracy     *float64      `yaml:"accuracy"` // omitted or null = never misses
	Priority     int           `yaml:"priority"`
	PP           int           `yaml:"pp"`
	Hits         int           `yaml:"hits"`
	VariableHits bool          `yaml:"variable_hits"` // 2-5 hits
	Flags        []string      `yaml:"flags"`
	Drain        float64       `yaml:"drain"`
	Recoil       float64       `yaml:"recoil"`
	MissRecoil   float64       `yaml:"miss_recoil"`
	Secondary    *SecondaryDef `yaml:"secondary"`
	Effect       *EffectDef    `yaml:"effect"`
}

// SecondaryDef is the YAML form of Secondary.
type SecondaryDef struct {
	Status string  `yaml:"status"`
	Chance float64 `yaml:"chance"`
}

// EffectDef is the YAML form of an Effect. Which fields are read depends on Kind.
type EffectDef struct {
	Kind     string  `yaml:"kind"`
	Target   string  `yaml:"target"`
	Stat     string  `yaml:"stat"`
	Stages   int     `yaml:"stages"`
	Status   string  `yaml:"status"`
	Timer    string  `yaml:"timer"`
	Hazard   string  `yaml:"hazard"`
	Fraction float64 `yaml:"fraction"`
	Turns    int     `yaml:"turns"`
}

const defaultPP = 10

// DisplayName turns a kebab-case id, ability or item into a title-cased
// name. A Caser holds state, so each call builds its own.
func DisplayName(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "-", " "))
}

// Compile validates def and converts it into a Move.
//
// Precondition: def must be non-nil.
// Postcondition: Returns a Move with a non-nil Effect, or an error naming
// every invalid field.
func Compile(def *MoveDef) (*Move, error) {
	var errs []error
	if def.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if def.ID == StruggleID {
		errs = append(errs, fmt.Errorf("id %q is reserved", StruggleID))
	}
	t := combat.Type(def.Type)
	if !t.Valid() {
		errs = append(errs, fmt.Errorf("unknown type %q", def.Type))
	}
	cat := Category(def.Category)
	switch cat {
	case Physical, Special, Status:
	default:
		errs = append(errs, fmt.Errorf("category must be physical, special or status, got %q", def.Category))
	}
	if def.Power < 0 {
		errs = append(errs, fmt.Errorf("power must be >= 0, got %d", def.Power))
	}
	if cat != Status && cat != "" && def.Power == 0 {
		errs = append(errs, errors.New("damaging moves need a power"))
	}
	if def.Accuracy != nil && (*def.Accuracy <= 0 || *def.Accuracy > 1) {
		errs = append(errs, fmt.Errorf("accuracy must be in (0, 1], got %v", *def.Accuracy))
	}
	if def.PP < 0 {
		errs = append(errs, fmt.Errorf("pp must be >= 0, got %d", def.PP))
	}
	if def.Hits < 0 || def.Hits > 10 {
		errs = append(errs, fmt.Errorf("hits must be in [0, 10], got %d", def.Hits))
	}
	for name, frac := range map[string]float64{"drain": def.Drain, "recoil": def.Recoil, "miss_recoil": def.MissRecoil} {
		if frac < 0 || frac > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", name, frac))
		}
	}

	m := &Move{
		ID:           def.ID,
		Name:         def.Name,
		Type:         t,
		Category:     cat,
		Power:        def.Power,
		AlwaysHits:   def.Accuracy == nil,
		Priority:     def.Priority,
		PP:           def.PP,
		Hits:         def.Hits,
		VariableHits: def.VariableHits,
		Drain:        def.Drain,
		Recoil:       def.Recoil,
		MissRecoil:   def.MissRecoil,
		Effect:       NoEffect{},
	}
	if m.Name == "" {
		m.Name = DisplayName(def.ID)
	}
	if def.Accuracy != nil {
		m.Accuracy = *def.Accuracy
	}
	if m.PP == 0 {
		m.PP = defaultPP
	}
	if m.Hits == 0 {
		m.Hits = 1
	}

	for _, f := range def.Flags {
		switch f {
		case "contact":
			m.Contact = true
		case "sound":
			m.Sound = true
		case "high_crit":
			m.HighCrit = true
		case "recharge":
			m.Recharge = true
		case "bypass_protect":
			m.BypassProtect = true
		case "interrupt":
			m.Interrupt = true
		case "knock_off":
			m.KnockOff = true
		default:
			errs = append(errs, fmt.Errorf("unknown flag %q", f))
		}
	}

	if def.Secondary != nil {
		st := combat.Status(def.Secondary.Status)
		if st == combat.StatusNone || !st.Valid() {
			errs = append(errs, fmt.Errorf("secondary status %q is not a status", def.Secondary.Status))
		}
		if def.Secondary.Chance <= 0 || def.Secondary.Chance > 1 {
			errs = append(errs, fmt.Errorf("secondary chance must be in (0, 1], got %v", def.Secondary.Chance))
		}
		m.Secondary = &Secondary{Status: st, Chance: def.Secondary.Chance}
	}

	if def.Effect != nil {
		if cat != Status {
			errs = append(errs, errors.New("effect is only valid on status moves"))
		} else if eff, err := compileEffect(def.Effect); err != nil {
			errs = append(errs, err)
		} else {
			m.Effect = eff
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("move %q: %w", def.ID, errors.Join(errs...))
	}
	return m, nil
}

func compileEffect(d *EffectDef) (Effect, error) {
	switch d.Kind {
	case "", "none":
		return NoEffect{}, nil
	case "stat-change":
		stat := combat.ParseStat(d.Stat)
		if stat == combat.StatUnknown {
			return nil, fmt.Errorf("stat-change: unknown stat %q", d.Stat)
		}
		if d.Stages == 0 {
			return nil, errors.New("stat-change: stages must be non-zero")
		}
		var target Target
		switch d.Target {
		case "", "self":
			target = TargetSelf
		case "foe":
			target = TargetFoe
		default:
			return nil, fmt.Errorf("stat-change: target must be self or foe, got %q", d.Target)
		}
		return StatChange{Target: target, Stat: stat, Stages: d.Stages}, nil
	case "inflict-status":
		st := combat.Status(d.Status)
		if st == combat.StatusNone || !st.Valid() {
			return nil, fmt.Errorf("inflict-status: unknown status %q", d.Status)
		}
		return InflictStatus{Status: st}, nil
	case "substitute":
		return Substitute{}, nil
	case "protect":
		return Protect{}, nil
	case "field-timer":
		timers := map[string]Timer{
			"reflect":      TimerReflect,
			"light-screen": TimerLightScreen,
			"safeguard":    TimerSafeguard,
			"mist":         TimerMist,
		}
		tm, ok := timers[d.Timer]
		if !ok {
			return nil, fmt.Errorf("field-timer: unknown timer %q", d.Timer)
		}
		return FieldTimer{Timer: tm}, nil
	case "perish-song":
		return PerishSong{}, nil
	case "heal":
		frac := d.Fraction
		if frac == 0 {
			frac = 0.5
		}
		if frac < 0 || frac > 1 {
			return nil, fmt.Errorf("heal: fraction must be in (0, 1], got %v", d.Fraction)
		}
		return Heal{Fraction: frac}, nil
	case "hazard":
		hazards := map[string]Hazard{
			"stealth-rock": HazardStealthRock,
			"spikes":       HazardSpikes,
			"toxic-spikes": HazardToxicSpikes,
			"sticky-web":   HazardStickyWeb,
		}
		hz, ok := hazards[d.Hazard]
		if !ok {
			return nil, fmt.Errorf("hazard: unknown hazard %q", d.Hazard)
		}
		return SetHazard{Hazard: hz}, nil
	case "taunt":
		return Taunt{Turns: turnsOr(d.Turns, 3)}, nil
	case "encore":
		return Encore{Turns: turnsOr(d.Turns, 3)}, nil
	case "disable":
		return Disable{Turns: turnsOr(d.Turns, 4)}, nil
	}
	return nil, fmt.Errorf("unknown effect kind %q", d.Kind)
}

func turnsOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
