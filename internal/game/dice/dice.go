// Package dice provides the randomness primitives for battle resolution: a
// crypto-backed Source for unpredictable seeds and a deterministic, cursor
// addressed Stream that every in-battle roll is drawn from.
package dice

import "fmt"

// State is the persisted RNG of a single battle.
//
// Invariant: Cursor only ever increases; two States with equal Seed and Cursor
// produce identical draw sequences.
type State struct {
	Seed   uint32 `json:"seed"`
	Cursor uint32 `json:"cursor"`
}

// Draw is one value taken from a State.
type Draw struct {
	U32   uint32
	Float float64
}

// String renders the draw for audit logs.
func (d Draw) String() string {
	return fmt.Sprintf("%d (%.4f)", d.U32, d.Float)
}

func xorshift32(x uint32) uint32 {
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return x
}

// Next hashes Seed^Cursor through xorshift32 and advances the cursor.
//
// Postcondition: Cursor is incremented by exactly one; Float is in [0, 1].
func (s *State) Next() Draw {
	v := xorshift32(s.Seed ^ s.Cursor)
	s.Cursor++
	return Draw{U32: v, Float: float64(v%0xFFFF) / 0xFFFF}
}

// Float returns the float component of Next.
func (s *State) Float() float64 {
	return s.Next().Float
}

// Stream is the only randomness the rules engine consumes.
type Stream interface {
	Float() float64
}

// Sequence replays a fixed list of floats in order, wrapping around when
// exhausted. An empty Sequence always yields 0.
type Sequence struct {
	vals []float64
	pos  int
}

// NewSequence returns a Sequence over vals.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

// Float returns the next value of the sequence.
func (s *Sequence) Float() float64 {
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.pos%len(s.vals)]
	s.pos++
	return v
}

// Used reports how many values have been consumed.
func (s *Sequence) Used() int { return s.pos }
