package resolution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// CreateBattle validates both rosters, seeds the RNG from the process-level
// source and persists the opening state.
//
// Postcondition: returns the new state in choosing, or an error wrapping
// ErrInvalidRoster.
func (r *Resolver) CreateBattle(ctx context.Context, rosters [2]battle.Roster) (*battle.State, error) {
	id := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "resolution.CreateBattle", trace.WithAttributes(attribute.String("battle.id", id)))
	defer span.End()

	res, err := battle.NewBattle(id, rosters, dice.NewState(r.seeds), r.env(id))
	if err != nil {
		return nil, fail(span, err)
	}
	rec := Record{
		BattleID:       id,
		Kind:           KindStart,
		Version:        res.State.Meta.Version,
		Token:          r.newToken(),
		Logs:           res.Logs,
		Summary:        res.Summary,
		StateHashAfter: res.Hash,
		CommittedAt:    r.clock().UTC(),
	}
	if err := r.store.Create(ctx, res.State, rec); err != nil {
		return nil, fail(span, fmt.Errorf("creating battle: %w", err))
	}
	r.logger.Info("battle created",
		zap.String("battle_id", id),
		zap.Strings("players", res.State.Meta.Players[:]),
	)
	return res.State, nil
}

func validChoice(ch battle.Choice) error {
	switch ch.Action {
	case battle.ActionMove:
		if ch.MoveID == "" {
			return fmt.Errorf("%w: move choice without moveId", ErrInvalidChoice)
		}
	case battle.ActionSwitch, battle.ActionForfeit:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidChoice, ch.Action)
	}
	return nil
}

// SubmitChoice records player's choice for the current turn and triggers
// resolution.
//
// Postcondition: returns ErrChoiceExists when the player already submitted
// for this turn; a stale ObservedVersion is accepted and surfaces as
// OutcomeConflict once both choices are in.
func (r *Resolver) SubmitChoice(ctx context.Context, battleID, player string, ch battle.Choice) (Result, error) {
	if err := validChoice(ch); err != nil {
		return Result{}, err
	}
	st, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Result{}, err
	}
	side, ok := st.Meta.SideOf(player)
	if !ok {
		return Result{}, ErrNotParticipant
	}
	if st.Meta.Phase != battle.PhaseChoosing {
		return Result{}, fmt.Errorf("%w: phase is %s", ErrWrongPhase, st.Meta.Phase)
	}
	ch.SubmittedAt = r.clock().UTC()
	if err := r.store.PutChoice(ctx, battleID, st.Meta.Turn, side, ch); err != nil {
		return Result{}, err
	}
	r.logger.Debug("choice submitted",
		zap.String("battle_id", battleID),
		zap.String("player", player),
		zap.Int("turn", st.Meta.Turn),
		zap.String("action", string(ch.Action)),
	)
	return r.TryResolveTurn(ctx, battleID, st.Meta.Turn)
}

// SubmitReplacement records player's forced switch and triggers the
// replacement round.
func (r *Resolver) SubmitReplacement(ctx context.Context, battleID, player string, index int) (Result, error) {
	st, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Result{}, err
	}
	side, ok := st.Meta.SideOf(player)
	if !ok {
		return Result{}, ErrNotParticipant
	}
	if st.Meta.Phase != battle.PhaseReplacing || !st.Meta.NeedsReplace[side] {
		return Result{}, fmt.Errorf("%w: no replacement pending", ErrWrongPhase)
	}
	if err := r.store.PutReplacement(ctx, battleID, st.Meta.Turn, st.Meta.Version, side, index); err != nil {
		return Result{}, err
	}
	return r.TryResolveReplacements(ctx, battleID)
}

// View is what a caller may see of a battle.
type View struct {
	Public battle.PublicView `json:"public"`
	// Private is set only for participants and covers their own side.
	Private *battle.PrivateSide `json:"private,omitempty"`
}

// GetView returns the public view of battleID plus viewer's private side
// when viewer is a participant.
func (r *Resolver) GetView(ctx context.Context, battleID, viewer string) (View, error) {
	st, err := r.store.Load(ctx, battleID)
	if err != nil {
		return View{}, err
	}
	v := View{Public: battle.Public(st)}
	if side, ok := st.Meta.SideOf(viewer); ok {
		p := battle.Private(st, side)
		v.Private = &p
	}
	return v, nil
}
