// Package synthetic generates demo reservoir inputs: a circular boundary
// polygon and a parabolic-bowl bathymetry grid. It backs cmd/demodata and the
// estimator tests.
package synthetic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Params describes the synthetic reservoir.
type Params struct {
	CenterLat   float64
	CenterLon   float64
	RadiusDeg   float64 // boundary radius in degrees
	GridPoints  int     // approximate bathymetry sample count
	MaxDepthM   float64
	SurfaceElev float64 // bed elevation at the shoreline, meters
}

// DefaultParams matches the bundled demo data set: a ~500 m radius circle at
// (12.500, 76.500) with a 10 m deep bowl under a 100 m surface level.
func DefaultParams() Params {
	return Params{
		CenterLat:   12.500,
		CenterLon:   76.500,
		RadiusDeg:   0.005,
		GridPoints:  100,
		MaxDepthM:   10,
		SurfaceElev: 100,
	}
}

// BoundaryGeoJSON renders the circular boundary as a GeoJSON FeatureCollection
// with a single Polygon feature.
func BoundaryGeoJSON(p Params) ([]byte, error) {
	const segments = 20
	ring := make([][2]float64, 0, segments+1)
	for i := 0; i <= segments; i++ {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, [2]float64{
			p.CenterLon + p.RadiusDeg*math.Cos(angle),
			p.CenterLat + p.RadiusDeg*math.Sin(angle),
		})
	}

	fc := map[string]any{
		"type": "FeatureCollection",
		"features": []map[string]any{
			{
				"type":       "Feature",
				"properties": map[string]any{"name": "Demo Reservoir"},
				"geometry": map[string]any{
					"type":        "Polygon",
					"coordinates": [][][2]float64{ring},
				},
			},
		},
	}
	return json.MarshalIndent(fc, "", "  ")
}

// BathymetryCSV renders the parabolic-bowl grid as a CSV with a lat,lon,
// elevation header. Points outside the circle are omitted, so the sample
// count is somewhat below GridPoints.
func BathymetryCSV(p Params) []byte {
	steps := int(math.Sqrt(float64(p.GridPoints)))
	stepSize := (p.RadiusDeg * 2) / float64(steps)
	startLat := p.CenterLat - p.RadiusDeg
	startLon := p.CenterLon - p.RadiusDeg

	var buf bytes.Buffer
	buf.WriteString("lat,lon,elevation\n")
	for i := 0; i < steps; i++ {
		for j := 0; j < steps; j++ {
			lat := startLat + float64(i)*stepSize
			lon := startLon + float64(j)*stepSize

			dist := math.Hypot(lat-p.CenterLat, lon-p.CenterLon)
			if dist > p.RadiusDeg {
				continue
			}
			// Bowl shape: deepest at the center, surface level at the rim.
			normDist := dist / p.RadiusDeg
			depth := p.MaxDepthM * (1 - normDist*normDist)
			elev := p.SurfaceElev - depth
			fmt.Fprintf(&buf, "%.6f,%.6f,%.2f\n", lat, lon, elev)
		}
	}
	return buf.Bytes()
}
