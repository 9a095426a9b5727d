package resolution_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/moves"
	"github.com/cory-johannsen/duel/internal/resolution"
	"github.com/cory-johannsen/duel/internal/storage/memory"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixedSource int

func (f fixedSource) Intn(n int) int { return int(f) % n }

func newResolver(t testing.TB, opts ...resolution.Option) (*resolution.Resolver, *memory.Store) {
	t.Helper()
	reg, err := moves.LoadDirectory("../../content/moves")
	require.NoError(t, err)
	store := memory.NewStore()
	base := []resolution.Option{
		resolution.WithClock(func() time.Time { return epoch }),
		resolution.WithSeedSource(fixedSource(12345)),
	}
	return resolution.NewResolver(store, reg, battle.Rules{}, zaptest.NewLogger(t), append(base, opts...)...), store
}

func member(species string, hp, spe int, moveIDs ...string) battle.Member {
	return battle.Member{
		Species: species,
		Level:   50,
		Types:   []combat.Type{combat.Water},
		Stats:   battle.Stats{HP: hp, Atk: 100, Def: 100, SpA: 100, SpD: 100, Spe: spe},
		Moves:   moveIDs,
	}
}

func rosters(a, b []battle.Member) [2]battle.Roster {
	return [2]battle.Roster{{Player: "alice", Members: a}, {Player: "bob", Members: b}}
}

func standardBattle(t testing.TB, r *resolution.Resolver) *battle.State {
	t.Helper()
	st, err := r.CreateBattle(context.Background(), rosters(
		[]battle.Member{member("Squirtle", 200, 100, "tackle", "splash")},
		[]battle.Member{member("Psyduck", 200, 50, "tackle", "splash")},
	))
	require.NoError(t, err)
	return st
}

func move(id string, version int) battle.Choice {
	return battle.Choice{Action: battle.ActionMove, MoveID: id, ObservedVersion: version}
}

func TestCreateBattle(t *testing.T) {
	r, store := newResolver(t)
	st := standardBattle(t, r)

	assert.Equal(t, battle.PhaseChoosing, st.Meta.Phase)
	assert.NotZero(t, st.Meta.RNG.Seed)
	assert.Equal(t, epoch.Add(battle.DefaultTurnDuration), st.Meta.DeadlineAt)

	recs, err := store.Records(context.Background(), st.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, resolution.KindStart, recs[0].Kind)
	assert.NotEmpty(t, recs[0].StateHashAfter)
}

func TestCreateBattle_InvalidRoster(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.CreateBattle(context.Background(), rosters(nil, []battle.Member{member("Psyduck", 200, 50, "tackle")}))
	assert.ErrorIs(t, err, resolution.ErrInvalidRoster)
}

func TestSubmitChoice_ResolvesWhenBothPresent(t *testing.T) {
	r, _ := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	first, err := r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeWaiting, first.Outcome)

	second, err := r.SubmitChoice(ctx, st.ID, "bob", move("splash", 1))
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeCommitted, second.Outcome)
	require.NotNil(t, second.Record)
	assert.Equal(t, resolution.KindTurn, second.Record.Kind)
	assert.Equal(t, 1, second.Record.Turn)
	assert.NotEmpty(t, second.Record.Token)
	assert.Equal(t, epoch, second.Record.CommittedAt)

	v, err := r.GetView(ctx, st.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Public.Turn)
	assert.Equal(t, 2, v.Public.Version)
	assert.Equal(t, battle.PhaseChoosing, v.Public.Phase)
	require.NotNil(t, v.Private)
}

func TestSubmitChoice_Rejections(t *testing.T) {
	r, _ := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	_, err := r.SubmitChoice(ctx, st.ID, "mallory", move("tackle", 1))
	assert.ErrorIs(t, err, resolution.ErrNotParticipant)

	_, err = r.SubmitChoice(ctx, "nope", "alice", move("tackle", 1))
	assert.ErrorIs(t, err, resolution.ErrBattleNotFound)

	_, err = r.SubmitChoice(ctx, st.ID, "alice", battle.Choice{Action: "dance"})
	assert.ErrorIs(t, err, resolution.ErrInvalidChoice)

	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("splash", 1))
	assert.ErrorIs(t, err, resolution.ErrChoiceExists)
}

func TestTryResolveTurn_AtMostOneCommit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 24).Draw(rt, "attempts")
		r, store := newResolver(t)
		st := standardBattle(t, r)
		ctx := context.Background()
		require.NoError(rt, store.PutChoice(ctx, st.ID, 1, battle.SideA, move("tackle", 1)))
		require.NoError(rt, store.PutChoice(ctx, st.ID, 1, battle.SideB, move("tackle", 1)))

		var wg sync.WaitGroup
		outcomes := make([]resolution.Outcome, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := r.TryResolveTurn(ctx, st.ID, 1)
				outcomes[i], errs[i] = res.Outcome, err
			}(i)
		}
		wg.Wait()

		committed := 0
		for i := range outcomes {
			require.NoError(rt, errs[i])
			if outcomes[i] == resolution.OutcomeCommitted {
				committed++
			} else if outcomes[i] != resolution.OutcomeDuplicate && outcomes[i] != resolution.OutcomeBusy {
				rt.Fatalf("unexpected outcome %s", outcomes[i])
			}
		}
		assert.Equal(rt, 1, committed)

		recs, err := store.Records(ctx, st.ID)
		require.NoError(rt, err)
		assert.Len(rt, recs, 2, "start plus exactly one turn")
	})
}

func TestTryResolveTurn_RetriggerIsNoOp(t *testing.T) {
	r, store := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()
	_, err := r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	_, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)

	before, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	res, err := r.TryResolveTurn(ctx, st.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeDuplicate, res.Outcome)

	after, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Meta.Version, after.Meta.Version)
	recs, err := store.Records(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSubmitChoice_VersionConflictRevertsTurn(t *testing.T) {
	r, store := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	_, err := r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 0))
	require.NoError(t, err)
	res, err := r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeConflict, res.Outcome)
	assert.Equal(t, battle.VersionMismatch, res.Record.Error)

	cur, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseChoosing, cur.Meta.Phase)
	assert.Equal(t, 1, cur.Meta.Turn)
	assert.Equal(t, 1, cur.Meta.Version)
	assert.Equal(t, st.Meta.RNG, cur.Meta.RNG)

	choices, err := store.Choices(ctx, st.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, choices[battle.SideA])
	assert.Nil(t, choices[battle.SideB])

	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	res, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeCommitted, res.Outcome)
}

func TestSubmitChoice_ForfeitResolvesImmediately(t *testing.T) {
	r, store := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	res, err := r.SubmitChoice(ctx, st.ID, "alice", battle.Choice{Action: battle.ActionForfeit, ObservedVersion: 1})
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeCommitted, res.Outcome)

	cur, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseEnded, cur.Meta.Phase)
	assert.Equal(t, "bob", cur.Meta.Winner)
	assert.Equal(t, battle.ReasonForfeit, cur.Meta.EndReason)

	_, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 2))
	assert.ErrorIs(t, err, resolution.ErrWrongPhase)
}

func TestReplacementRound(t *testing.T) {
	var mu sync.Mutex
	var published []resolution.Record
	notifier := resolution.NotifierFunc(func(_ context.Context, rec resolution.Record) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, rec)
	})
	r, store := newResolver(t, resolution.WithNotifier(notifier))
	ctx := context.Background()
	st, err := r.CreateBattle(ctx, rosters(
		[]battle.Member{member("Squirtle", 200, 100, "tackle")},
		[]battle.Member{member("Magikarp", 1, 50, "tackle"), member("Psyduck", 200, 50, "tackle")},
	))
	require.NoError(t, err)

	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	res, err := r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeCommitted, res.Outcome)

	cur, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, battle.PhaseReplacing, cur.Meta.Phase)
	assert.Equal(t, [2]bool{false, true}, cur.Meta.NeedsReplace)

	_, err = r.SubmitReplacement(ctx, st.ID, "alice", 1)
	assert.ErrorIs(t, err, resolution.ErrWrongPhase)
	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 2))
	assert.ErrorIs(t, err, resolution.ErrWrongPhase)

	rep, err := r.SubmitReplacement(ctx, st.ID, "bob", 1)
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeCommitted, rep.Outcome)
	assert.Equal(t, resolution.KindReplacement, rep.Record.Kind)

	cur, err = store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseChoosing, cur.Meta.Phase)
	assert.Equal(t, 2, cur.Meta.Turn)
	assert.Equal(t, 3, cur.Meta.Version)
	assert.Equal(t, "Psyduck", cur.Sides[battle.SideB].Active().Species)

	again, err := r.TryResolveReplacements(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeBusy, again.Outcome)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 2)
	assert.Equal(t, resolution.KindTurn, published[0].Kind)
	assert.Equal(t, resolution.KindReplacement, published[1].Kind)
}

func TestExportReplay(t *testing.T) {
	r, _ := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	_, err := r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 0))
	require.NoError(t, err)
	_, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)
	_, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	_, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)

	_, err = r.ExportReplay(ctx, st.ID, "mallory")
	assert.ErrorIs(t, err, resolution.ErrNotParticipant)

	replay, err := r.ExportReplay(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Len(t, replay.Entries, 2, "conflict records are left out")
	assert.Equal(t, resolution.KindStart, replay.Entries[0].Kind)
	assert.Equal(t, resolution.KindTurn, replay.Entries[1].Kind)
	assert.Equal(t, 1, replay.Entries[1].Turn)
	assert.Equal(t, [2]string{"alice", "bob"}, replay.Players)
	assert.Equal(t, 2, replay.Final.Turn)
}

func TestGetView_StrangerSeesPublicOnly(t *testing.T) {
	r, _ := newResolver(t)
	st := standardBattle(t, r)
	v, err := r.GetView(context.Background(), st.ID, "mallory")
	require.NoError(t, err)
	assert.Nil(t, v.Private)
	assert.Equal(t, "Squirtle", v.Public.Sides[battle.SideA].Active.Species)
}

func TestSweeper_ExtendsOverdueDeadlines(t *testing.T) {
	r, store := newResolver(t)
	st := standardBattle(t, r)
	ctx := context.Background()

	now := epoch.Add(time.Hour)
	sw := resolution.NewSweeper(store, time.Second, 30*time.Second, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return now })

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cur, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Second), cur.Meta.DeadlineAt)
	assert.Equal(t, 1, cur.Meta.Version, "extension does not invalidate choices")

	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// pausingStore holds the first Choices read made after arm until release is
// closed.
type pausingStore struct {
	*memory.Store
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (p *pausingStore) arm() {
	p.reached = make(chan struct{})
	p.release = make(chan struct{})
	p.armed.Store(true)
}

func (p *pausingStore) Choices(ctx context.Context, id string, turn int) ([2]*battle.Choice, error) {
	choices, err := p.Store.Choices(ctx, id, turn)
	if p.armed.CompareAndSwap(true, false) {
		close(p.reached)
		<-p.release
	}
	return choices, err
}

func TestTryResolveTurn_LateAttemptUsesChoicesReadUnderGuard(t *testing.T) {
	reg, err := moves.LoadDirectory("../../content/moves")
	require.NoError(t, err)
	store := &pausingStore{Store: memory.NewStore()}
	r := resolution.NewResolver(store, reg, battle.Rules{}, zaptest.NewLogger(t),
		resolution.WithClock(func() time.Time { return epoch }),
		resolution.WithSeedSource(fixedSource(12345)),
	)
	st := standardBattle(t, r)
	ctx := context.Background()
	require.NoError(t, store.PutChoice(ctx, st.ID, 1, battle.SideA, move("tackle", 0)))
	require.NoError(t, store.PutChoice(ctx, st.ID, 1, battle.SideB, move("tackle", 1)))

	store.arm()
	late := make(chan resolution.Result, 1)
	lateErr := make(chan error, 1)
	go func() {
		res, err := r.TryResolveTurn(ctx, st.ID, 1)
		late <- res
		lateErr <- err
	}()
	<-store.reached

	res, err := r.TryResolveTurn(ctx, st.ID, 1)
	require.NoError(t, err)
	require.Equal(t, resolution.OutcomeConflict, res.Outcome)

	res, err = r.SubmitChoice(ctx, st.ID, "alice", move("tackle", 1))
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeWaiting, res.Outcome)

	close(store.release)
	require.NoError(t, <-lateErr)
	assert.Equal(t, resolution.OutcomeWaiting, (<-late).Outcome)

	choices, err := store.Choices(ctx, st.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, choices[battle.SideA], "resubmission survives")
	assert.Equal(t, 1, choices[battle.SideA].ObservedVersion)
	assert.Nil(t, choices[battle.SideB])

	recs, err := store.Records(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "start plus one conflict")

	cur, err := store.Load(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseChoosing, cur.Meta.Phase)

	res, err = r.SubmitChoice(ctx, st.ID, "bob", move("tackle", 1))
	require.NoError(t, err)
	assert.Equal(t, resolution.OutcomeCommitted, res.Outcome, "reservation was released")
}
