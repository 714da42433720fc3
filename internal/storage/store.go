// Package storage holds per-run analysis state. The store abstraction
// replaces open read-modify-write on a shared map: every mutation goes
// through Put or CompareAndSwap, so concurrent workers and request handlers
// never race on partial state.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/beta-portfolio/internal/beta"
	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

// Analysis is the stored state of one analysis run.
type Analysis struct {
	ID        string                `json:"id"`
	Wallet    string                `json:"wallet"`
	Status    types.AnalysisStatus  `json:"status"`
	Progress  int                   `json:"progress"` // 0-100, meaningful while running
	Result    *beta.PortfolioResult `json:"result,omitempty"`
	Error     *types.ServiceError   `json:"error,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Clone returns a shallow copy safe to hand to callers. Result and Error
// are immutable once set, so sharing them is fine.
func (a *Analysis) Clone() *Analysis {
	cp := *a
	return &cp
}

// AnalysisStore persists analysis state keyed by analysis id.
type AnalysisStore interface {
	// Put unconditionally stores the record.
	Put(ctx context.Context, a *Analysis) error

	// Get returns the record or a NOT_FOUND categorized error.
	Get(ctx context.Context, id string) (*Analysis, error)

	// CompareAndSwap applies update to the stored record only if its
	// current status equals expect, and reports whether the swap happened.
	// Terminal states therefore cannot be overwritten by stale writers.
	CompareAndSwap(ctx context.Context, id string, expect types.AnalysisStatus, update func(*Analysis)) (bool, error)
}

// MemoryStore is a mutex-guarded in-memory AnalysisStore, the default when
// no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Analysis
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Analysis)}
}

// Put implements AnalysisStore.
func (s *MemoryStore) Put(_ context.Context, a *Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.UpdatedAt = time.Now().UTC()
	s.entries[a.ID] = a.Clone()
	return nil
}

// Get implements AnalysisStore.
func (s *MemoryStore) Get(_ context.Context, id string) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[id]
	if !ok {
		return nil, errors.NewNotFoundError("analysis", id)
	}
	return a.Clone(), nil
}

// CompareAndSwap implements AnalysisStore.
func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, expect types.AnalysisStatus, update func(*Analysis)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.entries[id]
	if !ok {
		return false, errors.NewNotFoundError("analysis", id)
	}
	if a.Status != expect {
		return false, nil
	}

	next := a.Clone()
	update(next)
	next.UpdatedAt = time.Now().UTC()
	s.entries[id] = next
	return true, nil
}
