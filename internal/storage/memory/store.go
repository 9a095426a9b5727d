// Package memory provides an in-process, strongly consistent
// resolution.Store for tests and single-node development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/resolution"
)

type choiceKey struct {
	turn int
	side battle.SideIndex
}

type replacementKey struct {
	turn    int
	version int
	side    battle.SideIndex
}

type entry struct {
	state        *battle.State
	choices      map[choiceKey]battle.Choice
	replacements map[replacementKey]int
	reservations map[string]string
	records      []resolution.Record
}

// Store keeps every battle behind one mutex, which makes each method an
// atomic compare-and-swap.
type Store struct {
	mu      sync.Mutex
	battles map[string]*entry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{battles: make(map[string]*entry)}
}

var _ resolution.Store = (*Store)(nil)

func (s *Store) get(id string) (*entry, error) {
	e, ok := s.battles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", resolution.ErrBattleNotFound, id)
	}
	return e, nil
}

// Create implements resolution.Store.
func (s *Store) Create(_ context.Context, st *battle.State, rec resolution.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.battles[st.ID]; dup {
		return fmt.Errorf("battle %s already exists", st.ID)
	}
	s.battles[st.ID] = &entry{
		state:        st.Clone(),
		choices:      make(map[choiceKey]battle.Choice),
		replacements: make(map[replacementKey]int),
		reservations: make(map[string]string),
		records:      []resolution.Record{rec},
	}
	return nil
}

// Load implements resolution.Store.
func (s *Store) Load(_ context.Context, id string) (*battle.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return e.state.Clone(), nil
}

// PutChoice implements resolution.Store.
func (s *Store) PutChoice(_ context.Context, id string, turn int, side battle.SideIndex, ch battle.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return err
	}
	k := choiceKey{turn: turn, side: side}
	if _, dup := e.choices[k]; dup {
		return resolution.ErrChoiceExists
	}
	e.choices[k] = ch
	return nil
}

// Choices implements resolution.Store.
func (s *Store) Choices(_ context.Context, id string, turn int) ([2]*battle.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [2]*battle.Choice
	e, err := s.get(id)
	if err != nil {
		return out, err
	}
	for _, side := range []battle.SideIndex{battle.SideA, battle.SideB} {
		if ch, ok := e.choices[choiceKey{turn: turn, side: side}]; ok {
			out[side] = &ch
		}
	}
	return out, nil
}

// PutReplacement implements resolution.Store.
func (s *Store) PutReplacement(_ context.Context, id string, turn, version int, side battle.SideIndex, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return err
	}
	k := replacementKey{turn: turn, version: version, side: side}
	if _, dup := e.replacements[k]; dup {
		return resolution.ErrChoiceExists
	}
	e.replacements[k] = index
	return nil
}

// Replacements implements resolution.Store.
func (s *Store) Replacements(_ context.Context, id string, turn, version int) ([2]*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [2]*int
	e, err := s.get(id)
	if err != nil {
		return out, err
	}
	for _, side := range []battle.SideIndex{battle.SideA, battle.SideB} {
		if idx, ok := e.replacements[replacementKey{turn: turn, version: version, side: side}]; ok {
			out[side] = &idx
		}
	}
	return out, nil
}

// Reserve implements resolution.Store.
func (s *Store) Reserve(_ context.Context, id, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return false, err
	}
	if _, taken := e.reservations[key]; taken {
		return false, nil
	}
	e.reservations[key] = token
	return true, nil
}

// FlipPhase implements resolution.Store.
func (s *Store) FlipPhase(_ context.Context, id string, turn int, from, to battle.Phase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return false, err
	}
	m := &e.state.Meta
	if m.Phase != from || m.Turn != turn {
		return false, nil
	}
	m.Phase = to
	return true, nil
}

// Commit implements resolution.Store.
func (s *Store) Commit(_ context.Context, c resolution.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(c.BattleID)
	if err != nil {
		return err
	}
	m := e.state.Meta
	if m.Version != c.ExpectVersion || m.Phase != c.ExpectPhase {
		return fmt.Errorf("%w: have version %d phase %s", resolution.ErrStaleCommit, m.Version, m.Phase)
	}
	e.state = c.State.Clone()
	e.records = append(e.records, c.Record)
	if c.Release != "" {
		delete(e.reservations, c.Release)
	}
	if c.DropChoices > 0 {
		delete(e.choices, choiceKey{turn: c.DropChoices, side: battle.SideA})
		delete(e.choices, choiceKey{turn: c.DropChoices, side: battle.SideB})
	}
	return nil
}

// Abandon implements resolution.Store.
func (s *Store) Abandon(_ context.Context, id string, turn int, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return false, err
	}
	m := &e.state.Meta
	if m.Phase != battle.PhaseResolving || m.Turn != turn {
		return false, nil
	}
	m.Phase = battle.PhaseChoosing
	delete(e.reservations, key)
	return true, nil
}

// Records implements resolution.Store.
func (s *Store) Records(_ context.Context, id string) ([]resolution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]resolution.Record(nil), e.records...), nil
}

// Overdue implements resolution.Store.
func (s *Store) Overdue(_ context.Context, now time.Time) ([]resolution.Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []resolution.Deadline
	for id, e := range s.battles {
		m := e.state.Meta
		if m.Phase == battle.PhaseChoosing && m.DeadlineAt.Before(now) {
			out = append(out, resolution.Deadline{BattleID: id, Version: m.Version, DeadlineAt: m.DeadlineAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeadlineAt.Before(out[j].DeadlineAt) })
	return out, nil
}

// ExtendDeadline implements resolution.Store.
func (s *Store) ExtendDeadline(_ context.Context, id string, version int, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(id)
	if err != nil {
		return false, err
	}
	m := &e.state.Meta
	if m.Phase != battle.PhaseChoosing || m.Version != version {
		return false, nil
	}
	m.DeadlineAt = until
	return true, nil
}
