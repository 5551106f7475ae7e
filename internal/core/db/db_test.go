package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"

	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/types"
)

type selection = types.ConnectorSelection

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "routekeeper.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store[selection] {
	t.Helper()
	s, err := NewStore[selection](openTestDB(t))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func sampleProgram(connector string) *types.Program[selection] {
	def := types.Priority("adyen")
	return &types.Program[selection]{
		Default: &def,
		Rules: []types.Rule[selection]{{
			Name:      connector + "_cards",
			Selection: types.Priority(connector, "checkout"),
			Statements: []types.IfStatement{{
				Condition: types.IfCondition{
					{LHS: domain.KeyPaymentMethod, Comparison: types.Equal, Value: types.EnumVariant("card")},
					{LHS: domain.KeyAmount, Comparison: types.GreaterThan, Value: types.Number(100)},
				},
			}},
		}},
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{url: "sqlite://data/programs.db", wantDriver: "sqlite3", wantSource: "file:data/programs.db?_busy_timeout=5000&_foreign_keys=on"},
		{url: "sqlite:///var/lib/rk.db", wantDriver: "sqlite3", wantSource: "file:/var/lib/rk.db?_busy_timeout=5000&_foreign_keys=on"},
		{url: "postgres://rk@db:5432/rk?sslmode=disable", wantDriver: "postgres", wantSource: "postgres://rk@db:5432/rk?sslmode=disable"},
		{url: "postgresql://rk@db/rk", wantDriver: "postgres", wantSource: "postgresql://rk@db/rk"},
		{url: "mysql://db/rk", wantErr: true},
		{url: "sqlite://", wantErr: true},
		{url: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		driver, source, err := parseURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseURL(%q) error = nil, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseURL(%q) error = %v", tt.url, err)
			continue
		}
		if driver != tt.wantDriver || source != tt.wantSource {
			t.Errorf("parseURL(%q) = %q, %q; want %q, %q", tt.url, driver, source, tt.wantDriver, tt.wantSource)
		}
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	before, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v", err)
	}
	if len(before) == 0 || before[0].Applied {
		t.Fatalf("MigrateStatus() before = %+v, want pending migrations", before)
	}

	ran, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if len(ran) != len(before) {
		t.Errorf("MigrateUp() ran %v, want %d migrations", ran, len(before))
	}

	again, err := MigrateUp(ctx, db)
	if err != nil || len(again) != 0 {
		t.Errorf("second MigrateUp() = %v, %v; want nothing to do", again, err)
	}

	after, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v", err)
	}
	for _, s := range after {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s not recorded as applied: %+v", s.ID, s)
		}
	}

	if _, err := db.ExecContext(ctx, "UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatal(err)
	}
	if _, err := MigrateUp(ctx, db); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("MigrateUp() after tamper error = %v, want checksum mismatch", err)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx_a ON a (id);
`
	want := []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx_a ON a (id)"}
	if diff := cmp.Diff(want, splitStatements(sql)); diff != "" {
		t.Errorf("splitStatements() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := sampleProgram("stripe")

	id, err := s.Save(ctx, "cards v1", p)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := types.ParseProgramID(string(id)); err != nil {
		t.Errorf("Save() id %q is not a program id: %v", id, err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Name != "cards v1" || rec.Rules != 1 || rec.Active || rec.ActivatedAt != nil {
		t.Errorf("Get() = %+v", rec)
	}
	if diff := cmp.Diff(p, rec.Program); diff != "" {
		t.Errorf("Get() program mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Get(ctx, types.NewProgramID()); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrProgramNotFound", err)
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	p := sampleProgram("stripe")
	p.Default = nil
	if _, err := s.Save(context.Background(), "broken", p); !errors.Is(err, types.ErrMissingDefault) {
		t.Errorf("Save() error = %v, want ErrMissingDefault", err)
	}
	if _, err := s.Save(context.Background(), "nil", nil); err == nil {
		t.Errorf("Save(nil) error = nil, want error")
	}
}

func TestStore_ListAndActivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Active(ctx); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("Active() on empty store error = %v, want ErrProgramNotFound", err)
	}

	first, err := s.Save(ctx, "first", sampleProgram("stripe"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := s.Save(ctx, "second", sampleProgram("aci"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second || list[1].ID != first {
		t.Fatalf("List() = %+v, want second then first", list)
	}
	if list[0].Program != nil {
		t.Errorf("List() loaded program bodies")
	}
	if limited, err := s.List(ctx, 1); err != nil || len(limited) != 1 {
		t.Errorf("List(1) = %v, %v; want one record", limited, err)
	}

	if err := s.MarkActive(ctx, first); err != nil {
		t.Fatalf("MarkActive(first) error = %v", err)
	}
	if err := s.MarkActive(ctx, second); err != nil {
		t.Fatalf("MarkActive(second) error = %v", err)
	}

	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active.ID != second || active.ActivatedAt == nil || active.Program.Rules[0].Name != "aci_cards" {
		t.Errorf("Active() = %+v, want second", active)
	}

	prev, err := s.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get(first) error = %v", err)
	}
	if prev.Active {
		t.Errorf("first program still marked active")
	}

	if err := s.MarkActive(ctx, types.NewProgramID()); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("MarkActive(missing) error = %v, want ErrProgramNotFound", err)
	}
	if active, err := s.Active(ctx); err != nil || active.ID != second {
		t.Errorf("failed MarkActive changed the active program: %+v, %v", active, err)
	}
}
