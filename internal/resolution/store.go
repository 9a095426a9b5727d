// Package resolution implements the distributed turn protocol: a
// reservation and a phase guard make resolution idempotent when any number
// of triggers race, and every outcome is committed in one atomic write.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/duel/internal/game/battle"
)

// Sentinel errors surfaced to callers.
var (
	ErrBattleNotFound = errors.New("battle not found")
	ErrNotParticipant = errors.New("not a participant of this battle")
	ErrChoiceExists   = errors.New("choice already submitted")
	ErrWrongPhase     = errors.New("battle is not accepting this submission")
	ErrInvalidChoice  = errors.New("invalid choice")
	ErrInvalidRoster  = battle.ErrInvalidRoster
	// ErrStaleCommit is returned by a Store when a commit's expected version
	// or phase no longer matches.
	ErrStaleCommit = errors.New("stale commit")
)

// RecordKind distinguishes the committed record types.
type RecordKind string

const (
	KindStart       RecordKind = "start"
	KindTurn        RecordKind = "turn"
	KindReplacement RecordKind = "replacement"
	KindConflict    RecordKind = "conflict"
)

// Record is a committed resolution result.
type Record struct {
	BattleID string     `json:"battleId"`
	Kind     RecordKind `json:"kind"`
	Turn     int        `json:"turn"`
	// Version is the authoritative version the resolution ran against.
	Version        int       `json:"version"`
	Token          string    `json:"idempotencyToken"`
	Logs           []string  `json:"logs"`
	Summary        string    `json:"summary,omitempty"`
	StateHashAfter string    `json:"stateHashAfter"`
	Error          string    `json:"error,omitempty"`
	CommittedAt    time.Time `json:"committedAtServerTime"`
}

// Commit is one indivisible write: the post-resolution state, its record
// and the protocol bookkeeping that goes with it.
type Commit struct {
	BattleID string
	// ExpectVersion and ExpectPhase guard the write.
	ExpectVersion int
	ExpectPhase   battle.Phase
	State         *battle.State
	Record        Record
	// Release, when non-empty, clears that reservation key.
	Release string
	// DropChoices, when > 0, deletes that turn's submitted choices.
	DropChoices int
}

// Deadline identifies a battle whose decision window has passed.
type Deadline struct {
	BattleID   string
	Version    int
	DeadlineAt time.Time
}

// Store is a strongly consistent backing store offering the atomic
// primitives the protocol needs.
type Store interface {
	// Create persists a new battle and its opening record.
	Create(ctx context.Context, st *battle.State, rec Record) error
	// Load returns the authoritative snapshot or ErrBattleNotFound.
	Load(ctx context.Context, battleID string) (*battle.State, error)

	// PutChoice stores a choice once per (turn, side); a second write
	// returns ErrChoiceExists.
	PutChoice(ctx context.Context, battleID string, turn int, side battle.SideIndex, ch battle.Choice) error
	Choices(ctx context.Context, battleID string, turn int) ([2]*battle.Choice, error)
	// PutReplacement stores a replacement pick once per (turn, version, side).
	PutReplacement(ctx context.Context, battleID string, turn, version int, side battle.SideIndex, index int) error
	Replacements(ctx context.Context, battleID string, turn, version int) ([2]*int, error)

	// Reserve claims key with token; only the first claimant gets true.
	Reserve(ctx context.Context, battleID, key, token string) (bool, error)
	// FlipPhase moves the battle from one phase to another only while it is
	// in from at the given turn.
	FlipPhase(ctx context.Context, battleID string, turn int, from, to battle.Phase) (bool, error)
	// Commit applies c atomically or returns ErrStaleCommit.
	Commit(ctx context.Context, c Commit) error
	// Abandon returns a battle left in resolving at turn to choosing and
	// clears key in one step, recording nothing. It reports false when the
	// battle was not in resolving at that turn.
	Abandon(ctx context.Context, battleID string, turn int, key string) (bool, error)

	// Records lists committed records in commit order.
	Records(ctx context.Context, battleID string) ([]Record, error)
	// Overdue lists battles in choosing whose deadline is before now.
	Overdue(ctx context.Context, now time.Time) ([]Deadline, error)
	// ExtendDeadline moves the deadline while the battle is still choosing
	// at version.
	ExtendDeadline(ctx context.Context, battleID string, version int, until time.Time) (bool, error)
}

// TurnKey is the reservation key of a regular turn.
func TurnKey(turn int) string { return fmt.Sprintf("turn:%d", turn) }

// ReplacementKey is the reservation key of a replacement round.
func ReplacementKey(turn, version int) string { return fmt.Sprintf("replace:%d:%d", turn, version) }
