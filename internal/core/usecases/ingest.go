package usecases

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/aquasight/aquasight/internal/core/domain"
)

// ParseBoundary decodes a GeoJSON boundary upload. It accepts a
// FeatureCollection, a single Feature, or a bare geometry; the first
// feature's polygon outer ring is used (holes and additional polygons are
// ignored). The reported area is the geodesic polygon area in km².
func ParseBoundary(data []byte) (*domain.Boundary, error) {
	geom, name, err := boundaryGeometry(data)
	if err != nil {
		return nil, err
	}

	var poly orb.Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		poly = g
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, domain.Validationf("boundary MultiPolygon is empty")
		}
		poly = g[0]
	default:
		return nil, domain.Validationf("boundary geometry must be a Polygon, got %s", geom.GeoJSONType())
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, domain.Validationf("boundary polygon ring needs at least 4 points")
	}

	ring := poly[0]
	if ring[0] != ring[len(ring)-1] {
		return nil, domain.Validationf("boundary polygon ring is not closed")
	}

	b := &domain.Boundary{
		Name:     name,
		AreaSqKm: geo.Area(orb.Polygon{ring}) / 1e6,
	}
	for _, pt := range ring {
		b.Ring = append(b.Ring, domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()})
	}
	bound := ring.Bound()
	b.BoundsRect = domain.Bounds{
		MinLat: bound.Min.Lat(), MinLon: bound.Min.Lon(),
		MaxLat: bound.Max.Lat(), MaxLon: bound.Max.Lon(),
	}
	return b, nil
}

func boundaryGeometry(data []byte) (orb.Geometry, string, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		if len(fc.Features) == 0 {
			return nil, "", domain.Validationf("boundary FeatureCollection has no features")
		}
		f := fc.Features[0]
		name, _ := f.Properties["name"].(string)
		return f.Geometry, name, nil
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		name, _ := f.Properties["name"].(string)
		return f.Geometry, name, nil
	}
	if g, err := geojson.UnmarshalGeometry(data); err == nil {
		return g.Geometry(), "", nil
	}
	return nil, "", domain.Validationf("boundary file is not valid GeoJSON")
}

// bathymetry CSV headers after normalization.
var bathymetryAliases = map[string]string{
	"lat":       "lat",
	"latitude":  "lat",
	"lon":       "lon",
	"lng":       "lon",
	"longitude": "lon",
	"elevation": "elevation",
}

// ParseBathymetry decodes a bathymetry CSV upload. Column names are matched
// case-insensitively and accept lat/latitude, lon/lng/longitude, elevation.
func ParseBathymetry(data []byte) ([]domain.BathymetrySample, error) {
	normalized, err := normalizeBathymetryHeader(data)
	if err != nil {
		return nil, err
	}

	var samples []domain.BathymetrySample
	if err := gocsv.UnmarshalBytes(normalized, &samples); err != nil {
		return nil, domain.Validationf("bathymetry CSV could not be parsed: %v", err)
	}
	if len(samples) == 0 {
		return nil, domain.Validationf("bathymetry table is empty")
	}
	return samples, nil
}

// normalizeBathymetryHeader rewrites the CSV header row to the canonical
// lat/lon/elevation names and verifies the required columns are present.
func normalizeBathymetryHeader(data []byte) ([]byte, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, domain.Validationf("bathymetry CSV has no data rows")
	}

	header := strings.TrimRight(string(data[:idx]), "\r")
	cols := strings.Split(header, ",")
	seen := make(map[string]bool, len(cols))
	for i, col := range cols {
		key := strings.ToLower(strings.TrimSpace(col))
		if canonical, ok := bathymetryAliases[key]; ok {
			cols[i] = canonical
			seen[canonical] = true
		} else {
			cols[i] = key
		}
	}
	for _, required := range []string{"lat", "lon", "elevation"} {
		if !seen[required] {
			return nil, domain.Validationf("bathymetry CSV must contain lat, lon, elevation columns (missing %q)", required)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, strings.Join(cols, ","))
	buf.Write(data[idx+1:])
	return buf.Bytes(), nil
}
