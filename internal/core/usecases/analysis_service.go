package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/pkg/config"
)

// season is a fixed calendar window used for seasonal extent statistics.
type season struct {
	name       string
	startMonth time.Month
	endMonth   time.Month // inclusive
}

var seasons = []season{
	{"summer", time.February, time.May},
	{"monsoon", time.June, time.September},
	{"post-monsoon", time.October, time.January},
}

// AnalysisService runs the delegated water-body analysis: water extent,
// seasonal statistics, and the cone-model volume heuristic. Every numeric
// reduction happens on the remote Earth-observation platform; this service
// only sequences the calls and applies the documented fallbacks.
type AnalysisService struct {
	delegate  ports.EarthObservationDelegate
	history   ports.AnalysisHistoryRepository
	publisher ports.EventPublisher
	cache     ports.CacheService
	cfg       config.HeuristicsConfig
	now       func() time.Time
}

// NewAnalysisService creates a new AnalysisService. delegate, history,
// publisher, and cache may each be nil; the service degrades accordingly.
func NewAnalysisService(
	delegate ports.EarthObservationDelegate,
	history ports.AnalysisHistoryRepository,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	cfg config.HeuristicsConfig,
) *AnalysisService {
	return &AnalysisService{
		delegate:  delegate,
		history:   history,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Analyze estimates water extent and volume around a point. It never returns
// an error: delegate failures produce a zero-valued result with the Error
// field set, and partial failures (one season, one layer) degrade inline.
func (s *AnalysisService) Analyze(ctx context.Context, lat, lng float64) *domain.RemoteAnalysis {
	now := s.now()
	result := &domain.RemoteAnalysis{
		ID:        uuid.NewString(),
		Location:  domain.GeoPoint{Lat: lat, Lon: lng},
		CreatedAt: now.UTC(),
	}

	if s.delegate == nil {
		result.Error = "remote sensing delegate not configured"
		s.finish(ctx, result)
		return result
	}

	cacheKey := fmt.Sprintf("analysis:%.4f:%.4f", lat, lng)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached domain.RemoteAnalysis
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached
			}
		}
	}

	s.run(ctx, result, now)
	s.finish(ctx, result)

	if s.cache != nil && !result.Degraded() {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}
	return result
}

func (s *AnalysisService) run(ctx context.Context, result *domain.RemoteAnalysis, now time.Time) {
	window := ports.Window{
		Center:       result.Location,
		RadiusMeters: s.cfg.WindowRadiusMeters,
	}
	current := ports.DateRange{
		Start: now.AddDate(0, -s.cfg.CurrentWindowMonths, 0),
		End:   now,
	}

	cls, err := s.delegate.ClassifyWater(ctx, window, current, s.cfg.ClassifyScaleMeters)
	switch {
	case errors.Is(err, domain.ErrNoScene):
		// No qualifying scene: zero area, no reference image.
		cls = nil
	case err != nil:
		result.Error = err.Error()
		return
	default:
		result.AreaSqKm = round(cls.AreaSqKm, 2)
		result.ReferenceDate = cls.SceneDate.Format("2006-01-02")
	}

	if elev, err := s.delegate.MeanElevation(ctx, window, s.cfg.SeasonScaleMeters); err == nil {
		result.AvgSurfaceElevM = round(elev, 2)
	}

	slope := s.cfg.DefaultShoreSlopeDeg
	if sl, err := s.delegate.MeanShoreSlope(ctx, window, s.cfg.SeasonScaleMeters); err == nil && sl > 0 {
		slope = sl
	}
	result.ShoreSlopeDeg = round(slope, 2)
	result.VolumeMCM = round(coneVolumeMCM(result.AreaSqKm, slope), 2)

	maxSeasonAreaSqKm := 0.0
	seasonHandles := make(map[string]string)
	for _, sn := range seasons {
		r := seasonRange(now, sn)
		sa := domain.SeasonalArea{
			Season: sn.name,
			Start:  r.Start.Format("01-02"),
			End:    r.End.Format("01-02"),
		}
		if c, err := s.delegate.ClassifyWater(ctx, window, r, s.cfg.SeasonScaleMeters); err == nil {
			sa.AreaSqKm = round(c.AreaSqKm, 2)
			if c.ImageHandle != "" {
				seasonHandles[sn.name] = c.ImageHandle
			}
		} else {
			// One failed window degrades to zero, reported inline.
			sa.Failed = true
		}
		if sa.AreaSqKm > maxSeasonAreaSqKm {
			maxSeasonAreaSqKm = sa.AreaSqKm
		}
		result.Seasons = append(result.Seasons, sa)
	}

	if maxSeasonAreaSqKm > 0 {
		result.MaxVolumeMCM = round(coneVolumeMCM(maxSeasonAreaSqKm, slope), 2)
	} else {
		// No seasonal window ever produced a positive area; fall back to a
		// fixed factor over the current volume.
		result.MaxVolumeMCM = round(result.VolumeMCM*s.cfg.MaxVolumeFallbackFactor, 2)
	}

	if cls != nil && cls.ImageHandle != "" {
		result.Layers = s.renderLayers(ctx, cls.ImageHandle, seasonHandles)
	}
}

func (s *AnalysisService) renderLayers(ctx context.Context, handle string, seasonHandles map[string]string) *domain.LayerSet {
	layers := &domain.LayerSet{}

	maskVis := map[string]any{"bands": "water", "palette": "0000ff", "min": 0, "max": 1}
	if url, err := s.delegate.RenderTileLayer(ctx, handle, maskVis); err == nil {
		layers.WaterMask = &url
	}

	depthVis := map[string]any{"bands": "depth", "palette": "d0f0ff,0050a0", "min": 0, "max": 50}
	if url, err := s.delegate.RenderTileLayer(ctx, handle, depthVis); err == nil {
		layers.DepthGradient = &url
	}

	if len(seasonHandles) > 0 {
		layers.Seasonal = make(map[string]*string, len(seasonHandles))
		for name, h := range seasonHandles {
			if url, err := s.delegate.RenderTileLayer(ctx, h, maskVis); err == nil {
				layers.Seasonal[name] = &url
			} else {
				layers.Seasonal[name] = nil
			}
		}
	}
	return layers
}

// finish records the analysis in history and publishes the completion event.
// Failures here never affect the returned result.
func (s *AnalysisService) finish(ctx context.Context, result *domain.RemoteAnalysis) {
	if s.history != nil {
		if err := s.history.Insert(ctx, result); err != nil {
			slog.Warn("analysis history insert failed", "analysis_id", result.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAnalysisCompleted(ctx, result); err != nil {
			slog.Warn("analysis event publish failed", "analysis_id", result.ID, "error", err)
		}
	}
}

// GetByID returns a stored analysis from history.
func (s *AnalysisService) GetByID(ctx context.Context, id string) (*domain.RemoteAnalysis, error) {
	if s.history == nil {
		return nil, fmt.Errorf("analysis history not available")
	}
	return s.history.GetByID(ctx, id)
}

// ListRecent returns stored analyses, newest first.
func (s *AnalysisService) ListRecent(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error) {
	if s.history == nil {
		return nil, 0, fmt.Errorf("analysis history not available")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.history.ListRecent(ctx, limit, offset)
}

// ListNearby returns stored analyses within radiusMeters of a point.
func (s *AnalysisService) ListNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.RemoteAnalysis, error) {
	if s.history == nil {
		return nil, fmt.Errorf("analysis history not available")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.history.ListNearby(ctx, lat, lon, radiusMeters, limit)
}

// seasonRange resolves a season to concrete dates relative to now, using the
// most recently completed or current occurrence of the window.
func seasonRange(now time.Time, sn season) ports.DateRange {
	year := now.Year()
	start := time.Date(year, sn.startMonth, 1, 0, 0, 0, 0, time.UTC)
	if sn.endMonth < sn.startMonth {
		// Window wraps the year boundary (e.g. October–January).
		start = start.AddDate(-1, 0, 0)
	}
	end := time.Date(start.Year(), sn.endMonth, 1, 0, 0, 0, 0, time.UTC)
	if sn.endMonth < sn.startMonth {
		end = end.AddDate(1, 0, 0)
	}
	end = end.AddDate(0, 1, 0) // end of the inclusive end month
	if start.After(now) {
		start = start.AddDate(-1, 0, 0)
		end = end.AddDate(-1, 0, 0)
	}
	return ports.DateRange{Start: start, End: end}
}

// coneVolumeMCM models the water body as an inverted cone: depth follows from
// the equivalent radius and the mean shore slope, volume is area × depth / 3.
// Area in km², depth in m, so the product is already in MCM.
func coneVolumeMCM(areaSqKm, slopeDeg float64) float64 {
	if areaSqKm <= 0 {
		return 0
	}
	radiusM := math.Sqrt(areaSqKm * 1e6 / math.Pi)
	depthM := radiusM * math.Tan(slopeDeg*math.Pi/180)
	return areaSqKm * depthM / 3
}
