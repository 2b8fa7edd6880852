package ports

import (
	"context"

	"github.com/aquasight/aquasight/internal/core/domain"
)

// LatestResultID addresses the most recently saved capacity result. Kept for
// the plain download endpoints that carry no explicit result handle.
const LatestResultID = "latest"

// ResultStore keeps computed capacity curves addressable by ID. Saving a
// result also repoints LatestResultID at it.
type ResultStore interface {
	Save(ctx context.Context, result *domain.CapacityResult) error
	// Get returns domain.ErrNotReady when the ID (or the latest alias)
	// resolves to nothing.
	Get(ctx context.Context, id string) (*domain.CapacityResult, error)
}

// AnalysisHistoryRepository persists remote analysis results.
type AnalysisHistoryRepository interface {
	Insert(ctx context.Context, a *domain.RemoteAnalysis) error
	GetByID(ctx context.Context, id string) (*domain.RemoteAnalysis, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error)
	ListNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.RemoteAnalysis, error)
}
