package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/resolution"
)

func seeded(t *testing.T) (*Store, *battle.State) {
	t.Helper()
	st := &battle.State{ID: "b-1"}
	st.Meta.Players = [2]string{"alice", "bob"}
	st.Meta.Phase = battle.PhaseChoosing
	st.Meta.Turn = 1
	st.Meta.Version = 1
	st.Meta.DeadlineAt = time.Date(2026, 3, 1, 9, 0, 45, 0, time.UTC)
	s := NewStore()
	require.NoError(t, s.Create(context.Background(), st, resolution.Record{BattleID: st.ID, Kind: resolution.KindStart}))
	return s, st
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	a, err := s.Load(ctx, "b-1")
	require.NoError(t, err)
	a.Meta.Turn = 99

	b, err := s.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Meta.Turn)
}

func TestStore_CreateTwice(t *testing.T) {
	s, st := seeded(t)
	assert.Error(t, s.Create(context.Background(), st, resolution.Record{}))
}

func TestStore_FlipPhaseGuardsTurn(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	ok, err := s.FlipPhase(ctx, "b-1", 2, battle.PhaseChoosing, battle.PhaseResolving)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.FlipPhase(ctx, "b-1", 1, battle.PhaseChoosing, battle.PhaseResolving)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.FlipPhase(ctx, "missing", 1, battle.PhaseChoosing, battle.PhaseResolving)
	assert.ErrorIs(t, err, resolution.ErrBattleNotFound)
}

func TestStore_CommitIsConditional(t *testing.T) {
	s, st := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.PutChoice(ctx, "b-1", 1, battle.SideA, battle.Choice{Action: battle.ActionMove, MoveID: "tackle"}))
	ok, err := s.Reserve(ctx, "b-1", resolution.TurnKey(1), "tok")
	require.NoError(t, err)
	require.True(t, ok)

	next := st.Clone()
	next.Meta.Version = 2
	c := resolution.Commit{
		BattleID:      "b-1",
		ExpectVersion: 1,
		ExpectPhase:   battle.PhaseResolving,
		State:         next,
		Record:        resolution.Record{BattleID: "b-1", Kind: resolution.KindConflict},
		Release:       resolution.TurnKey(1),
		DropChoices:   1,
	}
	assert.ErrorIs(t, s.Commit(ctx, c), resolution.ErrStaleCommit)

	_, err = s.FlipPhase(ctx, "b-1", 1, battle.PhaseChoosing, battle.PhaseResolving)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, c))

	choices, err := s.Choices(ctx, "b-1", 1)
	require.NoError(t, err)
	assert.Nil(t, choices[battle.SideA])

	ok, err = s.Reserve(ctx, "b-1", resolution.TurnKey(1), "again")
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := s.Records(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestStore_OverdueAndExtend(t *testing.T) {
	s, st := seeded(t)
	ctx := context.Background()

	none, err := s.Overdue(ctx, st.Meta.DeadlineAt)
	require.NoError(t, err)
	assert.Empty(t, none)

	late := st.Meta.DeadlineAt.Add(time.Second)
	due, err := s.Overdue(ctx, late)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Version)

	ok, err := s.ExtendDeadline(ctx, "b-1", 2, late.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.ExtendDeadline(ctx, "b-1", 1, late.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	due, err = s.Overdue(ctx, late)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestStore_ReplacementsCreateOnly(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.PutReplacement(ctx, "b-1", 1, 2, battle.SideB, 1))
	assert.ErrorIs(t, s.PutReplacement(ctx, "b-1", 1, 2, battle.SideB, 2), resolution.ErrChoiceExists)

	picks, err := s.Replacements(ctx, "b-1", 1, 2)
	require.NoError(t, err)
	assert.Nil(t, picks[battle.SideA])
	require.NotNil(t, picks[battle.SideB])
	assert.Equal(t, 1, *picks[battle.SideB])

	picks, err = s.Replacements(ctx, "b-1", 1, 3)
	require.NoError(t, err)
	assert.Nil(t, picks[battle.SideB])
}

func TestStore_AbandonRevertsAndReleases(t *testing.T) {
	s, st := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.PutChoice(ctx, st.ID, 1, battle.SideA, battle.Choice{Action: battle.ActionMove, MoveID: "tackle", ObservedVersion: 1}))

	ok, err := s.Abandon(ctx, st.ID, 1, resolution.TurnKey(1))
	require.NoError(t, err)
	assert.False(t, ok, "not resolving")

	won, err := s.Reserve(ctx, st.ID, resolution.TurnKey(1), "tok")
	require.NoError(t, err)
	require.True(t, won)
	flipped, err := s.FlipPhase(ctx, st.ID, 1, battle.PhaseChoosing, battle.PhaseResolving)
	require.NoError(t, err)
	require.True(t, flipped)

	ok, err = s.Abandon(ctx, st.ID, 1, resolution.TurnKey(1))
	require.NoError(t, err)
	assert.True(t, ok)

	cur, err := s.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseChoosing, cur.Meta.Phase)
	assert.Equal(t, 1, cur.Meta.Version)

	choices, err := s.Choices(ctx, st.ID, 1)
	require.NoError(t, err)
	assert.NotNil(t, choices[battle.SideA], "choices are kept")

	won, err = s.Reserve(ctx, st.ID, resolution.TurnKey(1), "tok-2")
	require.NoError(t, err)
	assert.True(t, won, "key released")
}
