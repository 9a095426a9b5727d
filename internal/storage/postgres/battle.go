package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/resolution"
)

// BattleStore implements resolution.Store on PostgreSQL. Reservations and
// create-only submissions rely on primary keys; the phase guard and commit
// are conditional updates.
type BattleStore struct {
	db *pgxpool.Pool
}

// NewBattleStore creates a BattleStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations
// applied.
func NewBattleStore(db *pgxpool.Pool) *BattleStore {
	return &BattleStore{db: db}
}

var _ resolution.Store = (*BattleStore)(nil)

// Create implements resolution.Store.
func (s *BattleStore) Create(ctx context.Context, st *battle.State, rec resolution.Record) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		m := st.Meta
		_, err := tx.Exec(ctx,
			`INSERT INTO battles (id, player_a, player_b, phase, turn, version, deadline_at, state)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			st.ID, m.Players[0], m.Players[1], string(m.Phase), m.Turn, m.Version, m.DeadlineAt, doc,
		)
		if err != nil {
			return fmt.Errorf("inserting battle: %w", err)
		}
		return insertRecord(ctx, tx, rec)
	})
}

// Load implements resolution.Store. The phase and deadline columns are
// authoritative over the stored document.
func (s *BattleStore) Load(ctx context.Context, id string) (*battle.State, error) {
	var (
		doc      []byte
		phase    string
		deadline time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT state, phase, deadline_at FROM battles WHERE id = $1`, id,
	).Scan(&doc, &phase, &deadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", resolution.ErrBattleNotFound, id)
		}
		return nil, fmt.Errorf("querying battle: %w", err)
	}
	var st battle.State
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	st.Meta.Phase = battle.Phase(phase)
	st.Meta.DeadlineAt = deadline.UTC()
	return &st, nil
}

// PutChoice implements resolution.Store.
func (s *BattleStore) PutChoice(ctx context.Context, id string, turn int, side battle.SideIndex, ch battle.Choice) error {
	doc, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encoding choice: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO battle_choices (battle_id, turn, side, choice) VALUES ($1, $2, $3, $4)`,
		id, turn, int(side), doc,
	)
	switch {
	case isDuplicateKeyError(err):
		return resolution.ErrChoiceExists
	case isForeignKeyError(err):
		return fmt.Errorf("%w: %s", resolution.ErrBattleNotFound, id)
	case err != nil:
		return fmt.Errorf("inserting choice: %w", err)
	}
	return nil
}

// Choices implements resolution.Store.
func (s *BattleStore) Choices(ctx context.Context, id string, turn int) ([2]*battle.Choice, error) {
	var out [2]*battle.Choice
	rows, err := s.db.Query(ctx,
		`SELECT side, choice FROM battle_choices WHERE battle_id = $1 AND turn = $2`, id, turn,
	)
	if err != nil {
		return out, fmt.Errorf("querying choices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var side int
		var doc []byte
		if err := rows.Scan(&side, &doc); err != nil {
			return out, fmt.Errorf("scanning choice: %w", err)
		}
		var ch battle.Choice
		if err := json.Unmarshal(doc, &ch); err != nil {
			return out, fmt.Errorf("decoding choice: %w", err)
		}
		out[side] = &ch
	}
	return out, rows.Err()
}

// PutReplacement implements resolution.Store.
func (s *BattleStore) PutReplacement(ctx context.Context, id string, turn, version int, side battle.SideIndex, index int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO battle_replacements (battle_id, turn, version, side, pick) VALUES ($1, $2, $3, $4, $5)`,
		id, turn, version, int(side), index,
	)
	switch {
	case isDuplicateKeyError(err):
		return resolution.ErrChoiceExists
	case isForeignKeyError(err):
		return fmt.Errorf("%w: %s", resolution.ErrBattleNotFound, id)
	case err != nil:
		return fmt.Errorf("inserting replacement: %w", err)
	}
	return nil
}

// Replacements implements resolution.Store.
func (s *BattleStore) Replacements(ctx context.Context, id string, turn, version int) ([2]*int, error) {
	var out [2]*int
	rows, err := s.db.Query(ctx,
		`SELECT side, pick FROM battle_replacements WHERE battle_id = $1 AND turn = $2 AND version = $3`,
		id, turn, version,
	)
	if err != nil {
		return out, fmt.Errorf("querying replacements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var side, pick int
		if err := rows.Scan(&side, &pick); err != nil {
			return out, fmt.Errorf("scanning replacement: %w", err)
		}
		out[side] = &pick
	}
	return out, rows.Err()
}

// Reserve implements resolution.Store.
func (s *BattleStore) Reserve(ctx context.Context, id, key, token string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO battle_reservations (battle_id, key, token) VALUES ($1, $2, $3)
		 ON CONFLICT (battle_id, key) DO NOTHING`,
		id, key, token,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return false, fmt.Errorf("%w: %s", resolution.ErrBattleNotFound, id)
		}
		return false, fmt.Errorf("inserting reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FlipPhase implements resolution.Store.
func (s *BattleStore) FlipPhase(ctx context.Context, id string, turn int, from, to battle.Phase) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE battles SET phase = $4, updated_at = NOW()
		 WHERE id = $1 AND turn = $2 AND phase = $3`,
		id, turn, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("flipping phase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Commit implements resolution.Store.
func (s *BattleStore) Commit(ctx context.Context, c resolution.Commit) error {
	doc, err := json.Marshal(c.State)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	m := c.State.Meta
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE battles
			 SET state = $2, phase = $3, turn = $4, version = $5, deadline_at = $6, updated_at = NOW()
			 WHERE id = $1 AND version = $7 AND phase = $8`,
			c.BattleID, doc, string(m.Phase), m.Turn, m.Version, m.DeadlineAt,
			c.ExpectVersion, string(c.ExpectPhase),
		)
		if err != nil {
			return fmt.Errorf("updating battle: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return resolution.ErrStaleCommit
		}
		if err := insertRecord(ctx, tx, c.Record); err != nil {
			return err
		}
		if c.Release != "" {
			if _, err := tx.Exec(ctx,
				`DELETE FROM battle_reservations WHERE battle_id = $1 AND key = $2`, c.BattleID, c.Release,
			); err != nil {
				return fmt.Errorf("releasing reservation: %w", err)
			}
		}
		if c.DropChoices > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM battle_choices WHERE battle_id = $1 AND turn = $2`, c.BattleID, c.DropChoices,
			); err != nil {
				return fmt.Errorf("dropping choices: %w", err)
			}
		}
		return nil
	})
}

// Abandon implements resolution.Store.
func (s *BattleStore) Abandon(ctx context.Context, id string, turn int, key string) (bool, error) {
	abandoned := false
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE battles SET phase = $3, updated_at = NOW()
			 WHERE id = $1 AND turn = $2 AND phase = $4`,
			id, turn, string(battle.PhaseChoosing), string(battle.PhaseResolving),
		)
		if err != nil {
			return fmt.Errorf("reverting phase: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM battle_reservations WHERE battle_id = $1 AND key = $2`, id, key,
		); err != nil {
			return fmt.Errorf("releasing reservation: %w", err)
		}
		abandoned = true
		return nil
	})
	return abandoned, err
}

func insertRecord(ctx context.Context, tx pgx.Tx, rec resolution.Record) error {
	logs, err := json.Marshal(rec.Logs)
	if err != nil {
		return fmt.Errorf("encoding logs: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO battle_records
		 (battle_id, kind, turn, version, token, logs, summary, state_hash_after, error, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.BattleID, string(rec.Kind), rec.Turn, rec.Version, rec.Token, logs,
		rec.Summary, rec.StateHashAfter, rec.Error, rec.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Records implements resolution.Store.
func (s *BattleStore) Records(ctx context.Context, id string) ([]resolution.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT kind, turn, version, token, logs, summary, state_hash_after, error, committed_at
		 FROM battle_records WHERE battle_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []resolution.Record
	for rows.Next() {
		rec := resolution.Record{BattleID: id}
		var kind string
		var logs []byte
		if err := rows.Scan(&kind, &rec.Turn, &rec.Version, &rec.Token, &logs,
			&rec.Summary, &rec.StateHashAfter, &rec.Error, &rec.CommittedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Kind = resolution.RecordKind(kind)
		rec.CommittedAt = rec.CommittedAt.UTC()
		if err := json.Unmarshal(logs, &rec.Logs); err != nil {
			return nil, fmt.Errorf("decoding logs: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Overdue implements resolution.Store.
func (s *BattleStore) Overdue(ctx context.Context, now time.Time) ([]resolution.Deadline, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, version, deadline_at FROM battles
		 WHERE phase = 'choosing' AND deadline_at < $1 ORDER BY deadline_at`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("querying overdue battles: %w", err)
	}
	defer rows.Close()

	var out []resolution.Deadline
	for rows.Next() {
		var d resolution.Deadline
		if err := rows.Scan(&d.BattleID, &d.Version, &d.DeadlineAt); err != nil {
			return nil, fmt.Errorf("scanning deadline: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ExtendDeadline implements resolution.Store.
func (s *BattleStore) ExtendDeadline(ctx context.Context, id string, version int, until time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE battles SET deadline_at = $3, updated_at = NOW()
		 WHERE id = $1 AND version = $2 AND phase = 'choosing'`,
		id, version, until,
	)
	if err != nil {
		return false, fmt.Errorf("extending deadline: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
