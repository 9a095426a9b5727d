package battle

import (
	"errors"
	"fmt"
)

// ResolveReplacements brings in replacements for every fainted active
// flagged in Meta.NeedsReplace. picks[i] is side i's requested bench index;
// an invalid or missing pick falls back to the first living bench member.
//
// Precondition: snapshot is in replacing, or in resolving with replacements
// pending.
// Postcondition: the returned state is in choosing with the turn advanced,
// still in replacing when hazards knocked out an entrant, or ended.
func ResolveReplacements(snapshot *State, picks [2]*int, env Env) (*Result, error) {
	if snapshot == nil {
		return nil, errors.New("nil snapshot")
	}
	st := snapshot.Clone()
	if st.Meta.Phase == PhaseReplacing {
		if err := transition(st, EventResolve); err != nil {
			return nil, err
		}
	}
	if st.Meta.Phase != PhaseResolving || st.Meta.NeedsReplace == [2]bool{} {
		return nil, fmt.Errorf("%w: replace from %s", ErrIllegalTransition, snapshot.Meta.Phase)
	}
	c := newContext(st, env)

	for _, i := range []SideIndex{SideA, SideB} {
		if !st.Meta.NeedsReplace[i] {
			continue
		}
		s := c.side(i)
		to := s.FirstHealthyBench()
		if p := picks[i]; p != nil && *p > 0 && *p < len(s.Team) && s.Team[*p].Alive() {
			to = *p
		}
		if to < 0 {
			continue
		}
		c.switchIn(i, to, true)
	}

	if err := c.settle(env); err != nil {
		return nil, err
	}
	return c.result()
}
