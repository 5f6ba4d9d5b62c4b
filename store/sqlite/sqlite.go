/*
Package sqlite archives calculation runs in SQLite.

PURPOSE:
  The engine itself persists nothing. The HTTP and CLI surfaces archive every
  run they execute (the request exactly as received, the liability summary,
  and for rejected runs the error) so a result can be fetched again by run id
  and audited later against the same request.

APPEND-ONLY:
  A run is written once. There are no UPDATE statements on calculation_runs
  and the only DELETE is the development Reset; saving an existing id fails
  with generic.ErrDuplicateRun.

KEY TABLES:
  calculation_runs: One row per run, summary and request as JSON text

INDEXES:
  - idx_runs_created_at: newest-first listing (hot path)
  - idx_runs_tax_year:   filter by year

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; parallel batch runs archive through
  the same Store.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./taxengine.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - api/handlers.go: SaveRun after every calculation
  - cmd/taxcalc: --db flag archives CLI runs
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/tax-engine/generic"
)

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store archives runs in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.RunArchive = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calculation_runs (
		id TEXT PRIMARY KEY,
		name TEXT,
		tax_year TEXT NOT NULL,
		status TEXT NOT NULL,
		total_liability TEXT,
		balance_due TEXT,
		error_kind TEXT,
		error TEXT,
		request_json TEXT NOT NULL,
		summary_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at
		ON calculation_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_tax_year
		ON calculation_runs(tax_year);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN ARCHIVE
// =============================================================================

// SaveRun archives a run. Request must be valid JSON; Summary may be empty
// for rejected runs.
func (s *Store) SaveRun(ctx context.Context, r generic.RunRecord) error {
	if err := r.Check(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO calculation_runs (id, name, tax_year, status, total_liability, balance_due,
			error_kind, error, request_json, summary_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, nullString(r.Name), r.TaxYear, r.Status,
		amountString(r.TotalLiability), amountString(r.BalanceDue),
		nullString(r.ErrorKind), nullString(r.Error),
		string(r.Request), nullString(string(r.Summary)),
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateRun, r.ID)
	}
	return err
}

// GetRun returns an archived run, or nil if there is none with that id.
func (s *Store) GetRun(ctx context.Context, id string) (*generic.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context, f generic.RunFilter) ([]generic.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.TaxYear != "" {
		where = append(where, "tax_year = ?")
		args = append(args, f.TaxYear)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	query := selectRuns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []generic.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset removes every archived run. For development and tests only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM calculation_runs`)
	return err
}

const selectRuns = `
	SELECT id, name, tax_year, status, total_liability, balance_due,
		error_kind, error, request_json, summary_json, created_at
	FROM calculation_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (generic.RunRecord, error) {
	var r generic.RunRecord
	var name, total, balance, errKind, errMsg, summary sql.NullString
	var request, createdAt string
	if err := row.Scan(&r.ID, &name, &r.TaxYear, &r.Status, &total, &balance,
		&errKind, &errMsg, &request, &summary, &createdAt); err != nil {
		return generic.RunRecord{}, err
	}
	r.Name = name.String
	r.ErrorKind = errKind.String
	r.Error = errMsg.String
	r.Request = json.RawMessage(request)
	if summary.Valid {
		r.Summary = json.RawMessage(summary.String)
	}
	var err error
	if r.TotalLiability, err = parseAmount(total); err != nil {
		return generic.RunRecord{}, err
	}
	if r.BalanceDue, err = parseAmount(balance); err != nil {
		return generic.RunRecord{}, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return generic.RunRecord{}, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, createdAt, err)
	}
	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func amountString(a *generic.Amount) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Value.String(), Valid: true}
}

func parseAmount(v sql.NullString) (*generic.Amount, error) {
	if !v.Valid {
		return nil, nil
	}
	a, err := generic.ParseGBP(v.String)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
