package domain

import (
	"time"
)

// BathymetrySample is one surveyed bed-elevation reading inside a reservoir.
type BathymetrySample struct {
	Lat       float64 `json:"lat" csv:"lat"`
	Lon       float64 `json:"lon" csv:"lon"`
	Elevation float64 `json:"elevation" csv:"elevation"` // meters, reservoir datum
}

// Boundary is the maximal wetted extent of a water body: a single closed
// polygon ring in lon/lat order.
type Boundary struct {
	Ring       []GeoPoint `json:"ring"`
	Name       string     `json:"name,omitempty"`
	AreaSqKm   float64    `json:"area_sq_km"` // geodesic polygon area
	BoundsRect Bounds     `json:"bounds"`
}

// CapacityRow is one level of the elevation-area-capacity table.
// CSV tags match the column names of the exported report.
type CapacityRow struct {
	Elevation float64 `json:"elevation_m" csv:"Elevation (m)"`
	AreaSqKm  float64 `json:"area_sq_km" csv:"Surface Area (sq km)"`
	VolumeMCM float64 `json:"volume_mcm" csv:"Volume (MCM)"`
}

// CapacityResult is a computed stage-storage curve, addressable by ID so
// report downloads can reference it after the request that produced it.
type CapacityResult struct {
	ID               string        `json:"id"`
	BoundaryName     string        `json:"boundary_name,omitempty"`
	BoundaryAreaSqKm float64       `json:"boundary_area_sq_km"`
	SampleCount      int           `json:"sample_count"`
	Rows             []CapacityRow `json:"rows"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// FullCapacityMCM returns the cumulative volume at the highest level.
func (r *CapacityResult) FullCapacityMCM() float64 {
	if len(r.Rows) == 0 {
		return 0
	}
	return r.Rows[len(r.Rows)-1].VolumeMCM
}

// FullLevelM returns the elevation of the highest level.
func (r *CapacityResult) FullLevelM() float64 {
	if len(r.Rows) == 0 {
		return 0
	}
	return r.Rows[len(r.Rows)-1].Elevation
}

// SeasonalArea is the detected water extent for one calendar window.
// A zero area with Failed=true means the window's query degraded, not that
// the reservoir was dry.
type SeasonalArea struct {
	Season   string  `json:"season"`
	Start    string  `json:"start"` // MM-DD
	End      string  `json:"end"`   // MM-DD
	AreaSqKm float64 `json:"area_sq_km"`
	Failed   bool    `json:"failed,omitempty"`
}

// LayerSet holds tile-URL templates for the visualization layers.
// A nil entry means that layer's rendering call failed.
type LayerSet struct {
	WaterMask     *string            `json:"water_mask"`
	DepthGradient *string            `json:"depth_gradient"`
	Seasonal      map[string]*string `json:"seasonal,omitempty"`
}

// RemoteAnalysis is the result of one delegated water-body analysis.
// It is always populated: delegate failures zero the numeric fields and
// set Error instead of aborting (degraded-result policy).
type RemoteAnalysis struct {
	ID              string         `json:"id"`
	Location        GeoPoint       `json:"location"`
	AreaSqKm        float64        `json:"area"`
	VolumeMCM       float64        `json:"volume"`
	MaxVolumeMCM    float64        `json:"max_volume"`
	ReferenceDate   string         `json:"date,omitempty"` // scene date, YYYY-MM-DD
	AvgSurfaceElevM float64        `json:"avg_elevation_m"`
	ShoreSlopeDeg   float64        `json:"shore_slope_deg"`
	Seasons         []SeasonalArea `json:"seasons,omitempty"`
	Layers          *LayerSet      `json:"layers,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Degraded reports whether the analysis fell back to a zero-valued result.
func (a *RemoteAnalysis) Degraded() bool {
	return a.Error != ""
}
