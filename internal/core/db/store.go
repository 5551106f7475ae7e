package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/routekeeper/internal/types"
)

// ErrProgramNotFound is returned when no stored program matches.
var ErrProgramNotFound = errors.New("program not found")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// Record is a stored program version. Program is nil in List results.
type Record[O any] struct {
	ID          types.ProgramID
	Name        string
	Program     *types.Program[O]
	Rules       int
	CreatedAt   time.Time
	ActivatedAt *time.Time
	Active      bool
}

type programRow struct {
	ID          string       `db:"program_id"`
	Name        string       `db:"name"`
	Body        string       `db:"body"`
	RuleCount   int          `db:"rule_count"`
	CreatedAt   time.Time    `db:"created_at"`
	ActivatedAt sql.NullTime `db:"activated_at"`
	Active      bool         `db:"active"`
}

func recordOf[O any](r programRow) Record[O] {
	rec := Record[O]{
		ID:        types.ProgramID(r.ID),
		Name:      r.Name,
		Rules:     r.RuleCount,
		CreatedAt: r.CreatedAt.UTC(),
		Active:    r.Active,
	}
	if r.ActivatedAt.Valid {
		at := r.ActivatedAt.Time.UTC()
		rec.ActivatedAt = &at
	}
	return rec
}

// Store persists program versions. Programs are immutable once saved; a rule
// change is a new version.
type Store[O any] struct {
	q   *Queries
	now func() time.Time
}

// NewStore returns a store over db. Migrations must have been applied.
func NewStore[O any](db *sqlx.DB) (*Store[O], error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store[O]{q: q, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Save validates and stores program under a new ID.
func (s *Store[O]) Save(ctx context.Context, name string, program *types.Program[O]) (types.ProgramID, error) {
	if program == nil {
		return "", fmt.Errorf("save program: nil program")
	}
	if err := program.Validate(); err != nil {
		return "", fmt.Errorf("save program: %w", err)
	}
	body, err := json.Marshal(program)
	if err != nil {
		return "", fmt.Errorf("encode program: %w", err)
	}

	id := types.NewProgramID()
	if _, err := s.q.ExecContext(ctx, "insert-program", string(id), name, string(body), len(program.Rules), s.now(), false); err != nil {
		return "", fmt.Errorf("insert program: %w", err)
	}
	return id, nil
}

// Get loads one program version.
func (s *Store[O]) Get(ctx context.Context, id types.ProgramID) (Record[O], error) {
	var row programRow
	if err := s.q.GetContext(ctx, "get-program", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record[O]{}, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
		}
		return Record[O]{}, fmt.Errorf("get program %s: %w", id, err)
	}
	return decode[O](row)
}

// List returns program versions newest first, without bodies.
func (s *Store[O]) List(ctx context.Context, limit int) ([]Record[O], error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []programRow
	if err := s.q.SelectContext(ctx, "list-programs", &rows, limit); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	out := make([]Record[O], 0, len(rows))
	for _, r := range rows {
		out = append(out, recordOf[O](r))
	}
	return out, nil
}

// MarkActive records id as the active program, clearing the previous one.
func (s *Store[O]) MarkActive(ctx context.Context, id types.ProgramID) error {
	return s.q.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "clear-active-program", false, true); err != nil {
			return fmt.Errorf("clear active program: %w", err)
		}
		res, err := tx.ExecContext(ctx, "mark-program-active", true, s.now(), string(id))
		if err != nil {
			return fmt.Errorf("mark program %s active: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrProgramNotFound, id)
		}
		return nil
	})
}

// Active loads the program marked active, or ErrProgramNotFound.
func (s *Store[O]) Active(ctx context.Context) (Record[O], error) {
	var row programRow
	if err := s.q.GetContext(ctx, "get-active-program", &row, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record[O]{}, fmt.Errorf("%w: none active", ErrProgramNotFound)
		}
		return Record[O]{}, fmt.Errorf("get active program: %w", err)
	}
	return decode[O](row)
}

func decode[O any](row programRow) (Record[O], error) {
	rec := recordOf[O](row)
	var p types.Program[O]
	if err := json.Unmarshal([]byte(row.Body), &p); err != nil {
		return Record[O]{}, fmt.Errorf("decode program %s: %w", row.ID, err)
	}
	rec.Program = &p
	return rec, nil
}
