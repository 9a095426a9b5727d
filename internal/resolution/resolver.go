package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

const tracerName = "github.com/cory-johannsen/duel/internal/resolution"

// Outcome is the non-error result of a resolution attempt.
type Outcome int

const (
	// OutcomeWaiting means not every required submission is present yet.
	OutcomeWaiting Outcome = iota
	// OutcomeDuplicate means another attempt already holds the reservation.
	OutcomeDuplicate
	// OutcomeBusy means the phase guard was not acquired.
	OutcomeBusy
	// OutcomeConflict means a stale choice aborted the turn.
	OutcomeConflict
	// OutcomeCommitted means this attempt resolved and committed.
	OutcomeCommitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWaiting:
		return "waiting"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBusy:
		return "busy"
	case OutcomeConflict:
		return "conflict"
	case OutcomeCommitted:
		return "committed"
	}
	return "unknown"
}

// Result is returned by every protocol entry point.
type Result struct {
	Outcome Outcome
	// Record is set for OutcomeConflict and OutcomeCommitted.
	Record *Record
}

// Notifier receives every committed record.
type Notifier interface {
	Publish(ctx context.Context, rec Record)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec Record)

// Publish calls f.
func (f NotifierFunc) Publish(ctx context.Context, rec Record) { f(ctx, rec) }

// Resolver runs the resolution protocol against a Store. It holds no
// per-battle state and is safe for concurrent use.
type Resolver struct {
	store    Store
	catalog  moves.Catalog
	rules    battle.Rules
	logger   *zap.Logger
	tracer   trace.Tracer
	clock    func() time.Time
	notifier Notifier
	seeds    dice.Source
	newToken func() string
	logDraws bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithNotifier registers the commit notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Resolver) { r.notifier = n }
}

// WithSeedSource overrides the RNG seed source used for new battles.
func WithSeedSource(src dice.Source) Option {
	return func(r *Resolver) { r.seeds = src }
}

// WithDrawLogging logs every RNG draw at debug level.
func WithDrawLogging(enabled bool) Option {
	return func(r *Resolver) { r.logDraws = enabled }
}

// WithTokenSource overrides idempotency token generation.
func WithTokenSource(fn func() string) Option {
	return func(r *Resolver) { r.newToken = fn }
}

// NewResolver builds a Resolver.
//
// Precondition: store, catalog and logger must be non-nil.
func NewResolver(store Store, catalog moves.Catalog, rules battle.Rules, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		catalog:  catalog,
		rules:    rules,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		clock:    time.Now,
		seeds:    dice.NewCryptoSource(),
		newToken: uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) env(battleID string) battle.Env {
	e := battle.Env{Catalog: r.catalog, Rules: r.rules, Now: r.clock().UTC()}
	if r.logDraws {
		e.StreamFor = func(s *dice.State) dice.Stream {
			return dice.NewLoggedStream(s, battleID, r.logger)
		}
	}
	return e
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// TryResolveTurn attempts to resolve turn of battleID. Any number of
// callers may race; at most one commits.
//
// Postcondition: a lost guard returns OutcomeDuplicate or OutcomeBusy with
// no side effects beyond the reservation.
func (r *Resolver) TryResolveTurn(ctx context.Context, battleID string, turn int) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "resolution.TryResolveTurn", trace.WithAttributes(
		attribute.String("battle.id", battleID),
		attribute.Int("battle.turn", turn),
	))
	defer span.End()
	log := r.logger.With(zap.String("battle_id", battleID), zap.Int("turn", turn))

	choices, err := r.store.Choices(ctx, battleID, turn)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("loading choices: %w", err))
	}
	choices = fillForfeit(choices)
	if choices[battle.SideA] == nil || choices[battle.SideB] == nil {
		span.SetAttributes(attribute.String("outcome", OutcomeWaiting.String()))
		return Result{Outcome: OutcomeWaiting}, nil
	}

	key := TurnKey(turn)
	token := r.newToken()
	won, err := r.store.Reserve(ctx, battleID, key, token)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("reserving %s: %w", key, err))
	}
	if !won {
		log.Debug("reservation lost")
		span.SetAttributes(attribute.String("outcome", OutcomeDuplicate.String()))
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	flipped, err := r.store.FlipPhase(ctx, battleID, turn, battle.PhaseChoosing, battle.PhaseResolving)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("flipping phase: %w", err))
	}
	if !flipped {
		log.Debug("phase guard lost")
		span.SetAttributes(attribute.String("outcome", OutcomeBusy.String()))
		return Result{Outcome: OutcomeBusy}, nil
	}

	// The early read only decides whether to try. What resolves is what is
	// stored once both guards are held.
	choices, err = r.store.Choices(ctx, battleID, turn)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("reloading choices: %w", err))
	}
	choices = fillForfeit(choices)
	if choices[battle.SideA] == nil || choices[battle.SideB] == nil {
		return r.abandonTurn(ctx, span, log, battleID, turn, key)
	}

	snapshot, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("loading snapshot: %w", err))
	}

	res, rerr := battle.ResolveTurn(snapshot, choices, r.env(battleID))
	commit := Commit{
		BattleID:      battleID,
		ExpectVersion: snapshot.Meta.Version,
		ExpectPhase:   battle.PhaseResolving,
	}
	rec := Record{
		BattleID: battleID,
		Kind:     KindTurn,
		Turn:     turn,
		Version:  snapshot.Meta.Version,
		Token:    token,
	}
	outcome := OutcomeCommitted

	switch {
	case rerr != nil:
		log.Error("resolution failed, reverting turn", zap.Error(rerr))
		reverted := snapshot.Clone()
		reverted.Meta.Phase = battle.PhaseChoosing
		commit.State = reverted
		commit.Release = key
		commit.DropChoices = turn
		rec.Kind = KindConflict
		rec.Error = rerr.Error()
		outcome = OutcomeConflict
	case res.Conflict:
		log.Info("version conflict, turn reverted")
		commit.State = res.State
		commit.Release = key
		commit.DropChoices = turn
		rec.Kind = KindConflict
		rec.Error = battle.VersionMismatch
		outcome = OutcomeConflict
	default:
		commit.State = res.State
	}
	if res != nil {
		rec.Logs = res.Logs
		rec.Summary = res.Summary
		rec.StateHashAfter = res.Hash
	} else if rec.StateHashAfter, err = battle.Hash(commit.State); err != nil {
		return Result{}, fail(span, err)
	}

	committed, err := r.commit(ctx, commit, rec)
	if err != nil {
		return Result{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if outcome == OutcomeCommitted {
		log.Info("turn committed",
			zap.Int("version", committed.Version),
			zap.String("phase", string(commit.State.Meta.Phase)),
			zap.String("hash", committed.StateHashAfter),
		)
	}
	return Result{Outcome: outcome, Record: &committed}, nil
}

// abandonTurn hands a turn whose choices vanished under the guards back to
// choosing. A resubmission that lost the reservation to this attempt has no
// trigger left, so the turn is tried once more when it is complete again.
func (r *Resolver) abandonTurn(ctx context.Context, span trace.Span, log *zap.Logger, battleID string, turn int, key string) (Result, error) {
	abandoned, err := r.store.Abandon(ctx, battleID, turn, key)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("abandoning turn: %w", err))
	}
	if !abandoned {
		span.SetAttributes(attribute.String("outcome", OutcomeBusy.String()))
		return Result{Outcome: OutcomeBusy}, nil
	}
	log.Info("choices changed under the guards, turn released")

	choices, err := r.store.Choices(ctx, battleID, turn)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("reloading choices: %w", err))
	}
	choices = fillForfeit(choices)
	if choices[battle.SideA] != nil && choices[battle.SideB] != nil {
		return r.TryResolveTurn(ctx, battleID, turn)
	}
	span.SetAttributes(attribute.String("outcome", OutcomeWaiting.String()))
	return Result{Outcome: OutcomeWaiting}, nil
}

// TryResolveReplacements attempts to resolve the pending replacement round
// of battleID once every flagged side has picked.
func (r *Resolver) TryResolveReplacements(ctx context.Context, battleID string) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "resolution.TryResolveReplacements", trace.WithAttributes(
		attribute.String("battle.id", battleID),
	))
	defer span.End()

	current, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("loading battle: %w", err))
	}
	meta := current.Meta
	if meta.Phase != battle.PhaseReplacing {
		return Result{Outcome: OutcomeBusy}, nil
	}
	log := r.logger.With(zap.String("battle_id", battleID), zap.Int("turn", meta.Turn), zap.Int("version", meta.Version))
	span.SetAttributes(attribute.Int("battle.turn", meta.Turn), attribute.Int("battle.version", meta.Version))

	picks, err := r.store.Replacements(ctx, battleID, meta.Turn, meta.Version)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("loading replacements: %w", err))
	}
	for i, needed := range meta.NeedsReplace {
		if needed && picks[i] == nil {
			return Result{Outcome: OutcomeWaiting}, nil
		}
	}

	key := ReplacementKey(meta.Turn, meta.Version)
	token := r.newToken()
	won, err := r.store.Reserve(ctx, battleID, key, token)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("reserving %s: %w", key, err))
	}
	if !won {
		log.Debug("reservation lost")
		return Result{Outcome: OutcomeDuplicate}, nil
	}
	flipped, err := r.store.FlipPhase(ctx, battleID, meta.Turn, battle.PhaseReplacing, battle.PhaseResolving)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("flipping phase: %w", err))
	}
	if !flipped {
		log.Debug("phase guard lost")
		return Result{Outcome: OutcomeBusy}, nil
	}

	snapshot, err := r.store.Load(ctx, battleID)
	if err != nil {
		return Result{}, fail(span, fmt.Errorf("loading snapshot: %w", err))
	}
	commit := Commit{
		BattleID:      battleID,
		ExpectVersion: snapshot.Meta.Version,
		ExpectPhase:   battle.PhaseResolving,
	}
	rec := Record{
		BattleID: battleID,
		Kind:     KindReplacement,
		Turn:     snapshot.Meta.Turn,
		Version:  snapshot.Meta.Version,
		Token:    token,
	}
	outcome := OutcomeCommitted

	res, rerr := battle.ResolveReplacements(snapshot, picks, r.env(battleID))
	if rerr != nil {
		log.Error("replacement failed, reverting round", zap.Error(rerr))
		reverted := snapshot.Clone()
		reverted.Meta.Phase = battle.PhaseReplacing
		commit.State = reverted
		commit.Release = key
		rec.Kind = KindConflict
		rec.Error = rerr.Error()
		if rec.StateHashAfter, err = battle.Hash(reverted); err != nil {
			return Result{}, fail(span, err)
		}
		outcome = OutcomeConflict
	} else {
		commit.State = res.State
		rec.Logs = res.Logs
		rec.Summary = res.Summary
		rec.StateHashAfter = res.Hash
	}

	committed, err := r.commit(ctx, commit, rec)
	if err != nil {
		return Result{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if outcome == OutcomeCommitted {
		log.Info("replacements committed", zap.String("phase", string(res.State.Meta.Phase)))
	}
	return Result{Outcome: outcome, Record: &committed}, nil
}

func (r *Resolver) commit(ctx context.Context, c Commit, rec Record) (Record, error) {
	rec.CommittedAt = r.clock().UTC()
	c.Record = rec
	if err := r.store.Commit(ctx, c); err != nil {
		r.logger.Error("commit failed", zap.String("battle_id", c.BattleID), zap.Error(err))
		return Record{}, fmt.Errorf("committing %s: %w", rec.Kind, err)
	}
	if r.notifier != nil {
		r.notifier.Publish(ctx, rec)
	}
	return rec, nil
}

// fillForfeit lets a lone forfeit resolve without waiting for the opponent.
func fillForfeit(choices [2]*battle.Choice) [2]*battle.Choice {
	for i, ch := range choices {
		other := 1 - i
		if ch != nil && ch.Action == battle.ActionForfeit && choices[other] == nil {
			choices[other] = &battle.Choice{Action: battle.ActionMove, ObservedVersion: ch.ObservedVersion}
		}
	}
	return choices
}
