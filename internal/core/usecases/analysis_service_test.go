package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/core/usecases"
	"github.com/aquasight/aquasight/internal/pkg/config"
)

// --- Mock delegate ---

type mockDelegate struct {
	classifyFn func(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error)
	elevFn     func(ctx context.Context, w ports.Window, scaleMeters int) (float64, error)
	slopeFn    func(ctx context.Context, w ports.Window, scaleMeters int) (float64, error)
	renderFn   func(ctx context.Context, imageHandle string, vis map[string]any) (string, error)

	classifyCalls int
}

func (m *mockDelegate) ClassifyWater(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error) {
	m.classifyCalls++
	if m.classifyFn != nil {
		return m.classifyFn(ctx, w, r, scaleMeters)
	}
	return nil, domain.ErrNoScene
}

func (m *mockDelegate) MeanElevation(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) {
	if m.elevFn != nil {
		return m.elevFn(ctx, w, scaleMeters)
	}
	return 0, errors.New("no elevation")
}

func (m *mockDelegate) MeanShoreSlope(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) {
	if m.slopeFn != nil {
		return m.slopeFn(ctx, w, scaleMeters)
	}
	return 0, errors.New("no slope")
}

func (m *mockDelegate) RenderTileLayer(ctx context.Context, imageHandle string, vis map[string]any) (string, error) {
	if m.renderFn != nil {
		return m.renderFn(ctx, imageHandle, vis)
	}
	return "", errors.New("no render")
}

// --- Mock history / publisher / cache ---

type mockHistory struct {
	insertFn func(ctx context.Context, a *domain.RemoteAnalysis) error
	listFn   func(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error)
	inserted []*domain.RemoteAnalysis
}

func (m *mockHistory) Insert(ctx context.Context, a *domain.RemoteAnalysis) error {
	m.inserted = append(m.inserted, a)
	if m.insertFn != nil {
		return m.insertFn(ctx, a)
	}
	return nil
}

func (m *mockHistory) GetByID(ctx context.Context, id string) (*domain.RemoteAnalysis, error) {
	return nil, domain.ErrNotReady
}

func (m *mockHistory) ListRecent(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockHistory) ListNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.RemoteAnalysis, error) {
	return nil, nil
}

type mockPublisher struct {
	analyses []*domain.RemoteAnalysis
	reports  []string
}

func (m *mockPublisher) PublishAnalysisCompleted(ctx context.Context, a *domain.RemoteAnalysis) error {
	m.analyses = append(m.analyses, a)
	return nil
}

func (m *mockPublisher) PublishReportReady(ctx context.Context, resultID, format string) error {
	m.reports = append(m.reports, format)
	return nil
}

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("valkey nil message")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func heuristicsConfig() config.HeuristicsConfig {
	return config.HeuristicsConfig{
		WindowRadiusMeters:      2000,
		NDWIThreshold:           0.1,
		MaxCloudCoverPct:        20,
		ClassifyScaleMeters:     10,
		SeasonScaleMeters:       30,
		CurrentWindowMonths:     24,
		DefaultShoreSlopeDeg:    5,
		MaxVolumeFallbackFactor: 1.2,
	}
}

func happyDelegate() *mockDelegate {
	return &mockDelegate{
		classifyFn: func(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error) {
			return &ports.WaterClassification{
				AreaSqKm:    2.0,
				ImageHandle: "img-1",
				SceneDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			}, nil
		},
		elevFn:  func(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) { return 812.4, nil },
		slopeFn: func(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) { return 8.0, nil },
		renderFn: func(ctx context.Context, imageHandle string, vis map[string]any) (string, error) {
			return "https://tiles.example/" + imageHandle + "/{z}/{x}/{y}", nil
		},
	}
}

// --- Tests ---

func TestAnalyze_NoDelegate(t *testing.T) {
	history := &mockHistory{}
	publisher := &mockPublisher{}
	svc := usecases.NewAnalysisService(nil, history, publisher, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if !result.Degraded() {
		t.Fatal("expected degraded result without a delegate")
	}
	if result.AreaSqKm != 0 || result.VolumeMCM != 0 {
		t.Errorf("degraded result must be zero-valued, got area=%g volume=%g", result.AreaSqKm, result.VolumeMCM)
	}
	if len(history.inserted) != 1 {
		t.Errorf("degraded analyses must still be recorded, got %d inserts", len(history.inserted))
	}
	if len(publisher.analyses) != 1 {
		t.Errorf("degraded analyses must still be published, got %d events", len(publisher.analyses))
	}
}

func TestAnalyze_Success(t *testing.T) {
	svc := usecases.NewAnalysisService(happyDelegate(), nil, nil, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if result.Degraded() {
		t.Fatalf("unexpected degraded result: %s", result.Error)
	}
	if result.AreaSqKm != 2.0 {
		t.Errorf("expected area 2.0, got %g", result.AreaSqKm)
	}
	if result.ReferenceDate != "2025-06-15" {
		t.Errorf("expected reference date 2025-06-15, got %q", result.ReferenceDate)
	}
	if result.AvgSurfaceElevM != 812.4 {
		t.Errorf("expected elevation 812.4, got %g", result.AvgSurfaceElevM)
	}
	if result.ShoreSlopeDeg != 8.0 {
		t.Errorf("expected slope 8, got %g", result.ShoreSlopeDeg)
	}
	if result.VolumeMCM <= 0 {
		t.Errorf("expected positive volume, got %g", result.VolumeMCM)
	}
	if result.MaxVolumeMCM < result.VolumeMCM {
		t.Errorf("max volume %g below current %g", result.MaxVolumeMCM, result.VolumeMCM)
	}

	if len(result.Seasons) != 3 {
		t.Fatalf("expected 3 seasonal windows, got %d", len(result.Seasons))
	}
	if result.Seasons[0].Season != "summer" || result.Seasons[0].Start != "02-01" {
		t.Errorf("unexpected first season: %+v", result.Seasons[0])
	}
	if result.Seasons[2].Season != "post-monsoon" {
		t.Errorf("unexpected third season: %+v", result.Seasons[2])
	}

	if result.Layers == nil || result.Layers.WaterMask == nil {
		t.Fatal("expected a rendered water mask layer")
	}
	if result.Layers.DepthGradient == nil {
		t.Error("expected a rendered depth gradient layer")
	}
}

func TestAnalyze_NoScene(t *testing.T) {
	delegate := &mockDelegate{} // every classify returns ErrNoScene
	svc := usecases.NewAnalysisService(delegate, nil, nil, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if result.Degraded() {
		t.Fatalf("no-scene should soft-fail to zero, not error: %s", result.Error)
	}
	if result.AreaSqKm != 0 || result.VolumeMCM != 0 || result.MaxVolumeMCM != 0 {
		t.Errorf("expected zeroed numbers, got %+v", result)
	}
	if result.Layers != nil {
		t.Error("no scene means no layers to render")
	}
}

func TestAnalyze_DelegateFailure(t *testing.T) {
	delegate := &mockDelegate{
		classifyFn: func(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error) {
			return nil, &domain.DelegateError{Op: "classify_water", Err: errors.New("upstream 500")}
		},
	}
	svc := usecases.NewAnalysisService(delegate, nil, nil, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if !result.Degraded() {
		t.Fatal("expected degraded result on delegate failure")
	}
	if result.AreaSqKm != 0 || result.VolumeMCM != 0 {
		t.Errorf("degraded result must be zero-valued, got %+v", result)
	}
}

func TestAnalyze_SlopeFallback(t *testing.T) {
	delegate := happyDelegate()
	delegate.slopeFn = func(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) {
		return 0, errors.New("terrain product unavailable")
	}
	svc := usecases.NewAnalysisService(delegate, nil, nil, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if result.ShoreSlopeDeg != 5 {
		t.Errorf("expected default slope 5, got %g", result.ShoreSlopeDeg)
	}
	if result.VolumeMCM <= 0 {
		t.Errorf("volume should still be estimated with the default slope, got %g", result.VolumeMCM)
	}
}

func TestAnalyze_SeasonFailuresDegradeInline(t *testing.T) {
	delegate := happyDelegate()
	delegate.classifyFn = func(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error) {
		if scaleMeters == 30 { // seasonal windows run at reduced resolution
			return nil, errors.New("window query failed")
		}
		return &ports.WaterClassification{AreaSqKm: 1.5, ImageHandle: "img-1", SceneDate: time.Now()}, nil
	}
	svc := usecases.NewAnalysisService(delegate, nil, nil, nil, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if result.Degraded() {
		t.Fatalf("season failures must not fail the analysis: %s", result.Error)
	}
	for _, s := range result.Seasons {
		if !s.Failed || s.AreaSqKm != 0 {
			t.Errorf("expected failed zero season, got %+v", s)
		}
	}
	// No positive seasonal area: max capacity falls back to 1.2x current.
	want := result.VolumeMCM * 1.2
	if diff := result.MaxVolumeMCM - want; diff > 0.02 || diff < -0.02 {
		t.Errorf("expected fallback max volume ~%g, got %g", want, result.MaxVolumeMCM)
	}
}

func TestAnalyze_CacheReadThrough(t *testing.T) {
	cache := newMockCache()
	cached := &domain.RemoteAnalysis{ID: "cached-1", AreaSqKm: 9.9}
	data, _ := json.Marshal(cached)
	cache.data["analysis:12.5000:76.5000"] = data

	delegate := happyDelegate()
	svc := usecases.NewAnalysisService(delegate, nil, nil, cache, heuristicsConfig())

	result := svc.Analyze(context.Background(), 12.5, 76.5)

	if result.ID != "cached-1" {
		t.Fatalf("expected cached result, got %s", result.ID)
	}
	if delegate.classifyCalls != 0 {
		t.Errorf("cache hit must not call the delegate, got %d calls", delegate.classifyCalls)
	}
}

func TestAnalyze_CachesSuccessfulResults(t *testing.T) {
	cache := newMockCache()
	svc := usecases.NewAnalysisService(happyDelegate(), nil, nil, cache, heuristicsConfig())

	_ = svc.Analyze(context.Background(), 12.5, 76.5)

	if _, ok := cache.data["analysis:12.5000:76.5000"]; !ok {
		t.Error("successful analysis should be cached")
	}
}

func TestListRecent_ClampsLimit(t *testing.T) {
	history := &mockHistory{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error) {
			if limit != 50 {
				t.Errorf("expected limit clamped to 50, got %d", limit)
			}
			return nil, 0, nil
		},
	}
	svc := usecases.NewAnalysisService(nil, history, nil, nil, heuristicsConfig())
	_, _, _ = svc.ListRecent(context.Background(), 999, 0)
}

func TestListRecent_NoHistory(t *testing.T) {
	svc := usecases.NewAnalysisService(nil, nil, nil, nil, heuristicsConfig())
	if _, _, err := svc.ListRecent(context.Background(), 10, 0); err == nil {
		t.Error("expected error without a history repository")
	}
}
