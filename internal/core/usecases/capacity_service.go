package usecases

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/pkg/config"
)

// CapacityService produces elevation-area-capacity tables from a boundary
// polygon and a bathymetry sample set.
type CapacityService struct {
	store ports.ResultStore
	cfg   config.CurveConfig
}

// NewCapacityService creates a new CapacityService.
func NewCapacityService(store ports.ResultStore, cfg config.CurveConfig) *CapacityService {
	return &CapacityService{store: store, cfg: cfg}
}

// Process parses raw boundary and bathymetry uploads, builds the capacity
// curve, and saves it under a fresh result handle.
func (s *CapacityService) Process(ctx context.Context, boundaryData, bathymetryData []byte) (*domain.CapacityResult, error) {
	boundary, err := ParseBoundary(boundaryData)
	if err != nil {
		return nil, err
	}
	samples, err := ParseBathymetry(bathymetryData)
	if err != nil {
		return nil, err
	}

	rows, err := s.BuildCurve(boundary, samples)
	if err != nil {
		return nil, err
	}

	result := &domain.CapacityResult{
		ID:               uuid.NewString(),
		BoundaryName:     boundary.Name,
		BoundaryAreaSqKm: round(boundary.AreaSqKm, 3),
		SampleCount:      len(samples),
		Rows:             rows,
		GeneratedAt:      time.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, result); err != nil {
			return nil, fmt.Errorf("save capacity result: %w", err)
		}
	}
	return result, nil
}

// BuildCurve partitions the sampled elevation range into equal-width levels
// and estimates, for each level h, the wetted surface area as the fraction of
// bed samples at or below h scaled by the boundary's corrected bounding-box
// footprint. Cumulative volume is the trapezoidal integral of area over
// elevation, reported in MCM.
//
// The bounding-box footprint (degrees × km-per-degree × shape correction) is
// a coarse approximation of the true planimetric extent; the geodesic
// boundary area is carried separately on the result.
func (s *CapacityService) BuildCurve(boundary *domain.Boundary, samples []domain.BathymetrySample) ([]domain.CapacityRow, error) {
	if boundary == nil || len(boundary.Ring) == 0 {
		return nil, domain.Validationf("boundary polygon is required")
	}
	if len(samples) == 0 {
		return nil, domain.Validationf("bathymetry table is empty")
	}

	elevs := make([]float64, len(samples))
	for i, p := range samples {
		elevs[i] = p.Elevation
	}
	sort.Float64s(elevs)
	minElev, maxElev := elevs[0], elevs[len(elevs)-1]

	levels := make([]float64, s.cfg.Levels)
	floats.Span(levels, minElev, maxElev)

	widthKm := boundary.BoundsRect.WidthDeg() * s.cfg.KmPerDegree
	heightKm := boundary.BoundsRect.HeightDeg() * s.cfg.KmPerDegree
	maxAreaSqKm := widthKm * heightKm * s.cfg.ShapeCorrection

	total := float64(len(elevs))
	rows := make([]domain.CapacityRow, 0, len(levels))

	var cumulativeMCM float64
	prevArea := 0.0
	prevH := minElev
	for _, h := range levels {
		// Samples with bed elevation <= h are underwater at level h.
		underwater := sort.Search(len(elevs), func(i int) bool { return elevs[i] > h })
		areaSqKm := float64(underwater) / total * maxAreaSqKm

		// Trapezoidal step: 1 km² × 1 m = 1 MCM.
		dh := h - prevH
		cumulativeMCM += (areaSqKm + prevArea) / 2 * dh

		rows = append(rows, domain.CapacityRow{
			Elevation: round(h, 2),
			AreaSqKm:  round(areaSqKm, 3),
			VolumeMCM: round(cumulativeMCM, 3),
		})
		prevArea = areaSqKm
		prevH = h
	}
	return rows, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
