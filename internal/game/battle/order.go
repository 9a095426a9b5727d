package battle

import (
	"sort"
	"time"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

// Action is the kind of choice a player submits for a turn.
type Action string

const (
	ActionMove    Action = "move"
	ActionSwitch  Action = "switch"
	ActionForfeit Action = "forfeit"
)

// Choice is one player's submission for a turn.
type Choice struct {
	Action Action `json:"action"`
	MoveID string `json:"moveId,omitempty"`
	Target string `json:"target,omitempty"`
	// SwitchTo is the requested bench index. Regular switches ignore it and
	// bring in the first living bench member.
	SwitchTo        *int      `json:"switchToIndex,omitempty"`
	ObservedVersion int       `json:"observedVersion"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

type stepKind int

const (
	stepInterrupt stepKind = iota
	stepSwitch
	stepMove
)

// step is one queued action of a turn.
type step struct {
	kind     stepKind
	side     SideIndex
	moveID   string
	priority int
	speed    int
	at       time.Time
}

// effectiveSpeed is the ordering speed of side i's active: paralysis halves
// the base stat, then boosts, then the speed-stage volatile, then a scarf.
func (c *Context) effectiveSpeed(i SideIndex) int {
	s := c.side(i)
	mon := s.Active()
	spe := mon.Stats.Spe
	if mon.Status == combat.Paralysis {
		spe /= 2
	}
	spe = combat.ApplyStage(spe, s.Boosts.Spe)
	if s.Volatiles.SpeedStage != 0 {
		spe = combat.ApplyStage(spe, s.Volatiles.SpeedStage)
	}
	if mon.Item == ItemChoiceScarf {
		spe = int(float64(spe) * choiceBoost)
	}
	if spe < 1 {
		spe = 1
	}
	return spe
}

// intendedMove coerces side i's requested move: an encore overrides it and a
// side with no legal move at all struggles.
func (c *Context) intendedMove(i SideIndex, requested string) string {
	s := c.side(i)
	if s.Volatiles.Recharge == RechargeDue {
		return requested
	}
	if e := s.Volatiles.Encore; e.Active() {
		if m, ok := c.lookup(e.Move); ok && c.canUse(i, m) {
			return e.Move
		}
	}
	if !c.hasUsableMove(i) {
		return moves.StruggleID
	}
	return requested
}

// order builds the turn's action queue from the pre-resolution state.
//
// Precondition: both choices are non-nil moves or switches.
func (c *Context) order(choices [2]*Choice) []step {
	var interrupts, switches, moveSteps []step

	for _, i := range []SideIndex{SideA, SideB} {
		ch := choices[i]
		s := c.side(i)
		if ch.Action == ActionSwitch && s.Volatiles.Recharge != RechargeDue {
			switches = append(switches, step{kind: stepSwitch, side: i, at: ch.SubmittedAt})
			continue
		}
		id := c.intendedMove(i, ch.MoveID)
		st := step{kind: stepMove, side: i, moveID: id, speed: c.effectiveSpeed(i)}
		if m, ok := c.lookup(id); ok {
			st.priority = m.Priority
			if m.Interrupt && choices[i.Other()].Action == ActionSwitch && c.canUse(i, m) {
				st.kind = stepInterrupt
				interrupts = append(interrupts, st)
				continue
			}
		}
		moveSteps = append(moveSteps, st)
	}

	sort.SliceStable(switches, func(a, b int) bool {
		return switches[a].at.Before(switches[b].at)
	})

	if len(moveSteps) == 2 {
		a, b := moveSteps[0], moveSteps[1]
		switch {
		case a.priority != b.priority:
			if b.priority > a.priority {
				moveSteps[0], moveSteps[1] = b, a
			}
		case a.speed != b.speed:
			if b.speed > a.speed {
				moveSteps[0], moveSteps[1] = b, a
			}
		default:
			if c.draw() >= 0.5 {
				moveSteps[0], moveSteps[1] = b, a
			}
		}
	}

	queue := make([]step, 0, 2)
	queue = append(queue, interrupts...)
	queue = append(queue, switches...)
	return append(queue, moveSteps...)
}

// run executes one queued step.
func (c *Context) run(st step) {
	switch st.kind {
	case stepInterrupt:
		c.logf("%s strikes %s as it switches out!", c.name(st.side), c.name(st.side.Other()))
		c.useMove(st.side, st.moveID, 2)
	case stepSwitch:
		s := c.side(st.side)
		to := s.FirstHealthyBench()
		if to < 0 {
			c.logf("%s has no one left to switch in!", st.side.Tag())
			return
		}
		c.switchIn(st.side, to, false)
	case stepMove:
		c.useMove(st.side, st.moveID, 1)
	}
}
