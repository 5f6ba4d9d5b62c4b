/*
store.go - Persistence interface for archived calculation runs

PURPOSE:
  Defines the interface between the surfaces (HTTP, CLI) and whatever keeps
  their calculation history. The engine never reads it: a run's result
  depends only on its request and the tax year's rules.

APPEND-ONLY CONTRACT:
  - SaveRun(): Single run write, rejected if the id already exists
  - NO Update() method exists; a run is never amended after the fact
  - A corrected calculation is a new run with a new id

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

EXAMPLE:
  err := archive.SaveRun(ctx, rec)
  if errors.Is(err, generic.ErrDuplicateRun) {
      // Already archived, safe to ignore
  }

SEE ALSO:
  - api/handlers.go: Archives every run it executes
*/
package generic

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// ErrDuplicateRun is returned when a run id has already been archived.
var ErrDuplicateRun = errors.New("run already archived")

// =============================================================================
// RUN ARCHIVE - Interface for run persistence (append-only)
// =============================================================================

// RunArchive stores calculation runs.
type RunArchive interface {
	// SaveRun persists a run. Returns ErrDuplicateRun if the id exists.
	// This is the ONLY write operation.
	SaveRun(ctx context.Context, r RunRecord) error

	// GetRun returns the run, or nil if there is none with that id.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, f RunFilter) ([]RunRecord, error)

	// Ping reports whether the archive is reachable.
	Ping(ctx context.Context) error
}

// Run statuses.
const (
	RunCompleted = "completed"
	RunRejected  = "rejected" // input, election, year or validation problem
	RunFailed    = "failed"   // rule or consistency defect
)

// RunRecord is one archived calculation.
type RunRecord struct {
	ID             string
	Name           string
	TaxYear        string
	Status         string
	TotalLiability *Amount
	BalanceDue     *Amount
	ErrorKind      string
	Error          string
	Request        json.RawMessage
	Summary        json.RawMessage
	CreatedAt      time.Time
}

// Check enforces the record invariants every implementation relies on.
func (r RunRecord) Check() error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if !json.Valid(r.Request) {
		return errors.New("run " + r.ID + ": request is not valid JSON")
	}
	if len(r.Summary) > 0 && !json.Valid(r.Summary) {
		return errors.New("run " + r.ID + ": summary is not valid JSON")
	}
	return nil
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	TaxYear string
	Status  string
	Limit   int
}

// Matches reports whether the record passes the filter's field conditions.
func (f RunFilter) Matches(r RunRecord) bool {
	return (f.TaxYear == "" || f.TaxYear == r.TaxYear) &&
		(f.Status == "" || f.Status == r.Status)
}
