package battle

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Phase transition events.
const (
	EventResolve  = "resolve"
	EventConflict = "conflict"
	EventAdvance  = "advance"
	EventReplace  = "replace"
	EventEnd      = "end"
	EventExtend   = "extend"
)

// ErrIllegalTransition is returned when an event is not valid from a phase.
var ErrIllegalTransition = errors.New("illegal phase transition")

var phaseEvents = fsm.Events{
	{Name: EventResolve, Src: []string{string(PhaseChoosing), string(PhaseReplacing)}, Dst: string(PhaseResolving)},
	{Name: EventConflict, Src: []string{string(PhaseResolving)}, Dst: string(PhaseChoosing)},
	{Name: EventAdvance, Src: []string{string(PhaseResolving)}, Dst: string(PhaseChoosing)},
	{Name: EventReplace, Src: []string{string(PhaseResolving)}, Dst: string(PhaseReplacing)},
	{Name: EventEnd, Src: []string{string(PhaseResolving)}, Dst: string(PhaseEnded)},
	{Name: EventExtend, Src: []string{string(PhaseChoosing)}, Dst: string(PhaseChoosing)},
}

// NextPhase returns the phase reached by firing event in from.
//
// Precondition: from is one of the four battle phases.
// Postcondition: returns ErrIllegalTransition when event is not allowed in from.
func NextPhase(from Phase, event string) (Phase, error) {
	machine := fsm.NewFSM(string(from), phaseEvents, fsm.Callbacks{})
	err := machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return from, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, event, from)
	}
	return Phase(machine.Current()), nil
}

// transition moves st to the phase reached by event.
func transition(st *State, event string) error {
	next, err := NextPhase(st.Meta.Phase, event)
	if err != nil {
		return err
	}
	st.Meta.Phase = next
	return nil
}
