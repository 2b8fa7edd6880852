// Package memory provides in-process fallback implementations used when the
// external cache is not configured.
package memory

import (
	"context"
	"sync"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
)

// ResultStore implements ports.ResultStore with a mutex-guarded map.
// Concurrent uploads each keep their own addressable entry; only the latest
// alias is last-writer-wins.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*domain.CapacityResult
	latest  string
}

// NewResultStore creates an empty in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*domain.CapacityResult)}
}

// Save stores the result under its ID and repoints the latest alias.
func (s *ResultStore) Save(_ context.Context, result *domain.CapacityResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ID] = result
	s.latest = result.ID
	return nil
}

// Get resolves a result handle (or the latest alias).
func (s *ResultStore) Get(_ context.Context, id string) (*domain.CapacityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == ports.LatestResultID {
		id = s.latest
	}
	result, ok := s.results[id]
	if !ok {
		return nil, domain.ErrNotReady
	}
	return result, nil
}
