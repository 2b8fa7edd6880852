package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// WidthDeg returns the longitudinal extent in degrees.
func (b Bounds) WidthDeg() float64 {
	return b.MaxLon - b.MinLon
}

// HeightDeg returns the latitudinal extent in degrees.
func (b Bounds) HeightDeg() float64 {
	return b.MaxLat - b.MinLat
}
