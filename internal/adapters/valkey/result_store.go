package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/pkg/metrics"
)

const (
	resultKeyPrefix  = "capacity:"
	resultTTLSeconds = 86400 // results survive a day; reports are re-renderable
)

// ResultStore implements ports.ResultStore on top of the Valkey cache, so
// result handles survive process restarts and are shared between replicas.
type ResultStore struct {
	cache *Cache
}

// NewResultStore creates a Valkey-backed result store.
func NewResultStore(cache *Cache) *ResultStore {
	return &ResultStore{cache: cache}
}

// Save stores the result under its ID and repoints the latest alias.
func (s *ResultStore) Save(ctx context.Context, result *domain.CapacityResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal capacity result: %w", err)
	}
	if err := s.cache.Set(ctx, resultKeyPrefix+result.ID, data, resultTTLSeconds); err != nil {
		return err
	}
	return s.cache.Set(ctx, resultKeyPrefix+ports.LatestResultID, data, resultTTLSeconds)
}

// Get resolves a result handle (or the latest alias).
func (s *ResultStore) Get(ctx context.Context, id string) (*domain.CapacityResult, error) {
	data, err := s.cache.Get(ctx, resultKeyPrefix+id)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("capacity_result").Inc()
		return nil, domain.ErrNotReady
	}
	metrics.CacheHits.WithLabelValues("capacity_result").Inc()

	var result domain.CapacityResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal capacity result: %w", err)
	}
	return &result, nil
}
