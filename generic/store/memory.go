// Package store provides RunArchive implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/tax-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	runs []generic.RunRecord // newest first
	ids  map[string]bool
	now  func() time.Time
}

var _ generic.RunArchive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		ids: make(map[string]bool),
		now: time.Now,
	}
}

// SaveRun adds a run. Append-only.
func (m *Memory) SaveRun(_ context.Context, r generic.RunRecord) error {
	if err := r.Check(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ids[r.ID] {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateRun, r.ID)
	}

	// Binary search for insertion point, keeping newest first
	i := sort.Search(len(m.runs), func(i int) bool {
		return m.runs[i].CreatedAt.Before(r.CreatedAt)
	})
	m.runs = append(m.runs, generic.RunRecord{})
	copy(m.runs[i+1:], m.runs[i:])
	m.runs[i] = r
	m.ids[r.ID] = true
	return nil
}

// GetRun returns a copy of the run, or nil.
func (m *Memory) GetRun(_ context.Context, id string) (*generic.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.runs {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

// ListRuns returns matching runs, newest first.
func (m *Memory) ListRuns(_ context.Context, f generic.RunFilter) ([]generic.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.RunRecord
	for _, r := range m.runs {
		if !f.Matches(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len returns the number of archived runs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
