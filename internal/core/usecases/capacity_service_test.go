package usecases_test

import (
	"context"
	"math"
	"testing"

	"github.com/aquasight/aquasight/internal/adapters/memory"
	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/core/usecases"
	"github.com/aquasight/aquasight/internal/pkg/config"
	"github.com/aquasight/aquasight/internal/pkg/synthetic"
)

func curveConfig() config.CurveConfig {
	return config.CurveConfig{Levels: 20, KmPerDegree: 111, ShapeCorrection: 0.7}
}

const squareBoundary = `{
  "type": "FeatureCollection",
  "features": [{
    "type": "Feature",
    "properties": {"name": "Test Tank"},
    "geometry": {
      "type": "Polygon",
      "coordinates": [[[76.0, 12.0], [76.01, 12.0], [76.01, 12.01], [76.0, 12.01], [76.0, 12.0]]]
    }
  }]
}`

// --- Boundary parsing ---

func TestParseBoundary_FeatureCollection(t *testing.T) {
	b, err := usecases.ParseBoundary([]byte(squareBoundary))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name != "Test Tank" {
		t.Errorf("expected name 'Test Tank', got %q", b.Name)
	}
	if len(b.Ring) != 5 {
		t.Errorf("expected 5 ring points, got %d", len(b.Ring))
	}
	// ~1.1 km square, so roughly 1.2 km² geodesic area
	if b.AreaSqKm < 0.5 || b.AreaSqKm > 2.5 {
		t.Errorf("geodesic area out of expected range: %g", b.AreaSqKm)
	}
	if b.BoundsRect.MinLon != 76.0 || b.BoundsRect.MaxLat != 12.01 {
		t.Errorf("unexpected bounds: %+v", b.BoundsRect)
	}
}

func TestParseBoundary_BareGeometry(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0]]]}`
	b, err := usecases.ParseBoundary([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name != "" {
		t.Errorf("bare geometry should have no name, got %q", b.Name)
	}
}

func TestParseBoundary_NotGeoJSON(t *testing.T) {
	_, err := usecases.ParseBoundary([]byte("not json at all"))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseBoundary_OpenRing(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}`
	_, err := usecases.ParseBoundary([]byte(raw))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for open ring, got %v", err)
	}
}

func TestParseBoundary_WrongGeometry(t *testing.T) {
	raw := `{"type":"Point","coordinates":[76.0,12.0]}`
	_, err := usecases.ParseBoundary([]byte(raw))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for point geometry, got %v", err)
	}
}

// --- Bathymetry parsing ---

func TestParseBathymetry_HeaderAliases(t *testing.T) {
	csv := "Latitude,LNG,Elevation\n12.0,76.0,95.5\n12.001,76.001,97.0\n"
	samples, err := usecases.ParseBathymetry([]byte(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Lat != 12.0 || samples[0].Lon != 76.0 || samples[0].Elevation != 95.5 {
		t.Errorf("unexpected first sample: %+v", samples[0])
	}
}

func TestParseBathymetry_MissingColumn(t *testing.T) {
	csv := "lat,lon,depth\n12.0,76.0,5\n"
	_, err := usecases.ParseBathymetry([]byte(csv))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for missing elevation, got %v", err)
	}
}

func TestParseBathymetry_NoRows(t *testing.T) {
	_, err := usecases.ParseBathymetry([]byte("lat,lon,elevation\n"))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty table, got %v", err)
	}
}

// --- Curve construction ---

func TestBuildCurve_SyntheticBowl(t *testing.T) {
	p := synthetic.DefaultParams()
	boundaryData, err := synthetic.BoundaryGeoJSON(p)
	if err != nil {
		t.Fatal(err)
	}
	boundary, err := usecases.ParseBoundary(boundaryData)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := usecases.ParseBathymetry(synthetic.BathymetryCSV(p))
	if err != nil {
		t.Fatal(err)
	}

	svc := usecases.NewCapacityService(nil, curveConfig())
	rows, err := svc.BuildCurve(boundary, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 20 {
		t.Fatalf("expected 20 levels, got %d", len(rows))
	}
	if rows[0].VolumeMCM != 0 {
		t.Errorf("volume at the lowest level must be 0, got %g", rows[0].VolumeMCM)
	}

	// The bowl floor sits MaxDepthM below the surface level.
	wantMin := p.SurfaceElev - p.MaxDepthM
	if rows[0].Elevation < wantMin-0.01 || rows[0].Elevation > wantMin+0.5 {
		t.Errorf("lowest level %g not near bowl floor %g", rows[0].Elevation, wantMin)
	}

	// 20 levels over a 10 m range stay distinct after 2-decimal rounding.
	for i := 1; i < len(rows); i++ {
		if rows[i].Elevation <= rows[i-1].Elevation {
			t.Fatalf("elevations not strictly increasing at row %d", i)
		}
		if rows[i].AreaSqKm < rows[i-1].AreaSqKm {
			t.Fatalf("area decreasing at row %d", i)
		}
		if rows[i].VolumeMCM < rows[i-1].VolumeMCM {
			t.Fatalf("volume decreasing at row %d", i)
		}
	}

	cfg := curveConfig()
	widthKm := boundary.BoundsRect.WidthDeg() * cfg.KmPerDegree
	heightKm := boundary.BoundsRect.HeightDeg() * cfg.KmPerDegree
	maxArea := widthKm * heightKm * cfg.ShapeCorrection
	last := rows[len(rows)-1]
	if last.AreaSqKm > maxArea+0.001 {
		t.Errorf("top area %g exceeds corrected footprint %g", last.AreaSqKm, maxArea)
	}
	if last.VolumeMCM <= 0 {
		t.Errorf("full capacity should be positive, got %g", last.VolumeMCM)
	}

	// The sweep ends at the highest sampled bed elevation.
	maxSample := samples[0].Elevation
	for _, s := range samples {
		if s.Elevation > maxSample {
			maxSample = s.Elevation
		}
	}
	if math.Abs(last.Elevation-maxSample) > 0.01 {
		t.Errorf("final level %g must equal the highest sampled elevation %g", last.Elevation, maxSample)
	}
}

func TestBuildCurve_NarrowRangeRounding(t *testing.T) {
	// A sampled range below the 2-decimal rounding step collapses adjacent
	// levels onto the same reported elevation; the curve must still come out
	// non-decreasing in both elevation and volume.
	boundary, err := usecases.ParseBoundary([]byte(squareBoundary))
	if err != nil {
		t.Fatal(err)
	}
	samples := []domain.BathymetrySample{
		{Lat: 12.0, Lon: 76.0, Elevation: 100.00},
		{Lat: 12.005, Lon: 76.005, Elevation: 100.05},
		{Lat: 12.01, Lon: 76.01, Elevation: 100.10},
	}

	svc := usecases.NewCapacityService(nil, curveConfig())
	rows, err := svc.BuildCurve(boundary, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Elevation < rows[i-1].Elevation {
			t.Fatalf("elevation decreasing at row %d: %+v after %+v", i, rows[i], rows[i-1])
		}
		if rows[i].VolumeMCM < rows[i-1].VolumeMCM {
			t.Fatalf("volume decreasing at row %d: %+v after %+v", i, rows[i], rows[i-1])
		}
	}
}

func TestBuildCurve_FlatBathymetry(t *testing.T) {
	boundary, err := usecases.ParseBoundary([]byte(squareBoundary))
	if err != nil {
		t.Fatal(err)
	}
	samples := []domain.BathymetrySample{
		{Lat: 12.0, Lon: 76.0, Elevation: 100},
		{Lat: 12.005, Lon: 76.005, Elevation: 100},
		{Lat: 12.01, Lon: 76.01, Elevation: 100},
	}

	svc := usecases.NewCapacityService(nil, curveConfig())
	rows, err := svc.BuildCurve(boundary, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, row := range rows {
		if row.VolumeMCM != 0 {
			t.Fatalf("flat bed must hold zero volume, got %g at %g m", row.VolumeMCM, row.Elevation)
		}
	}
}

func TestBuildCurve_DegenerateBounds(t *testing.T) {
	// Zero-width polygon: the corrected footprint collapses to nothing.
	raw := `{"type":"Polygon","coordinates":[[[76.0,12.0],[76.0,12.001],[76.0,12.002],[76.0,12.0]]]}`
	boundary, err := usecases.ParseBoundary([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	samples := []domain.BathymetrySample{
		{Lat: 12.0, Lon: 76.0, Elevation: 90},
		{Lat: 12.001, Lon: 76.0, Elevation: 100},
	}

	svc := usecases.NewCapacityService(nil, curveConfig())
	rows, err := svc.BuildCurve(boundary, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, row := range rows {
		if row.AreaSqKm != 0 || row.VolumeMCM != 0 {
			t.Fatalf("degenerate bbox must produce a flat zero curve, got %+v", row)
		}
	}
}

func TestBuildCurve_EmptyInputs(t *testing.T) {
	svc := usecases.NewCapacityService(nil, curveConfig())

	if _, err := svc.BuildCurve(nil, []domain.BathymetrySample{{Elevation: 1}}); !domain.IsValidation(err) {
		t.Errorf("expected validation error for nil boundary, got %v", err)
	}

	boundary, _ := usecases.ParseBoundary([]byte(squareBoundary))
	if _, err := svc.BuildCurve(boundary, nil); !domain.IsValidation(err) {
		t.Errorf("expected validation error for empty samples, got %v", err)
	}
}

// --- End-to-end Process ---

func TestProcess_SavesAddressableResult(t *testing.T) {
	store := memory.NewResultStore()
	svc := usecases.NewCapacityService(store, curveConfig())

	p := synthetic.DefaultParams()
	boundaryData, err := synthetic.BoundaryGeoJSON(p)
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Process(context.Background(), boundaryData, synthetic.BathymetryCSV(p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID == "" {
		t.Fatal("result must carry an ID")
	}
	if result.SampleCount == 0 {
		t.Error("sample count should be positive")
	}
	if result.BoundaryName != "Demo Reservoir" {
		t.Errorf("unexpected boundary name %q", result.BoundaryName)
	}

	byID, err := store.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	latest, err := store.Get(context.Background(), ports.LatestResultID)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if byID.ID != latest.ID {
		t.Errorf("latest alias points at %s, want %s", latest.ID, byID.ID)
	}
}

func TestProcess_InvalidBoundary(t *testing.T) {
	svc := usecases.NewCapacityService(memory.NewResultStore(), curveConfig())
	_, err := svc.Process(context.Background(), []byte("junk"), []byte("lat,lon,elevation\n1,2,3\n"))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
