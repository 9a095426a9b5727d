package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/cory-johannsen/duel/internal/game/battle"
)

// ReplayEntry is one committed step of a battle.
type ReplayEntry struct {
	Kind           RecordKind `json:"kind"`
	Turn           int        `json:"turn"`
	Logs           []string   `json:"logs"`
	StateHashAfter string     `json:"stateHashAfter"`
	Token          string     `json:"idempotencyToken"`
	CommittedAt    time.Time  `json:"committedAt"`
}

// Replay is the exported history of a battle.
type Replay struct {
	BattleID string        `json:"battleId"`
	Players  [2]string     `json:"players"`
	Entries  []ReplayEntry `json:"entries"`
	Final    battle.Meta   `json:"final"`
}

// ExportReplay assembles the committed history of battleID. Conflict records
// changed nothing and are left out.
//
// Precondition: requester must be one of the two participants.
func (r *Resolver) ExportReplay(ctx context.Context, battleID, requester string) (Replay, error) {
	st, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Replay{}, err
	}
	if _, ok := st.Meta.SideOf(requester); !ok {
		return Replay{}, ErrNotParticipant
	}
	recs, err := r.store.Records(ctx, battleID)
	if err != nil {
		return Replay{}, fmt.Errorf("loading records: %w", err)
	}
	out := Replay{BattleID: battleID, Players: st.Meta.Players, Final: st.Meta}
	for _, rec := range recs {
		if rec.Kind == KindConflict {
			continue
		}
		out.Entries = append(out.Entries, ReplayEntry{
			Kind:           rec.Kind,
			Turn:           rec.Turn,
			Logs:           rec.Logs,
			StateHashAfter: rec.StateHashAfter,
			Token:          rec.Token,
			CommittedAt:    rec.CommittedAt,
		})
	}
	return out, nil
}
