package ports

import (
	"context"
	"time"

	"github.com/aquasight/aquasight/internal/core/domain"
)

// Window is a circular analysis region around a point.
type Window struct {
	Center       domain.GeoPoint
	RadiusMeters float64
}

// DateRange is a half-open [Start, End) imagery acquisition window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// WaterClassification is the delegate's answer to "classify this region for
// water and sum the wet pixel area".
type WaterClassification struct {
	AreaSqKm    float64
	ImageHandle string    // opaque reference for later rendering calls
	SceneDate   time.Time // acquisition date of the scene used
}

// EarthObservationDelegate abstracts the remote sensing/terrain platform.
// Implementations must honour ctx cancellation; all numeric work (water
// indexing, pixel sums, terrain reductions, tile rendering) happens remotely.
type EarthObservationDelegate interface {
	// ClassifyWater thresholds a water index over the window and returns the
	// summed wet area. Returns domain.ErrNoScene when no qualifying scene
	// exists for the date range.
	ClassifyWater(ctx context.Context, w Window, r DateRange, scaleMeters int) (*WaterClassification, error)

	// MeanElevation reduces a DEM to the mean surface elevation (m) over the window.
	MeanElevation(ctx context.Context, w Window, scaleMeters int) (float64, error)

	// MeanShoreSlope reduces a terrain-slope product to the mean slope
	// (degrees) over the window.
	MeanShoreSlope(ctx context.Context, w Window, scaleMeters int) (float64, error)

	// RenderTileLayer renders a classified image to an XYZ tile-URL template.
	RenderTileLayer(ctx context.Context, imageHandle string, vis map[string]any) (string, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, a *domain.RemoteAnalysis) error
	PublishReportReady(ctx context.Context, resultID, format string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
