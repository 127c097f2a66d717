package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the WGS84 coordinate range.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Polygon is a closed geofence ring stored as a jsonb array of vertices.
// The ring is implicitly closed; the last vertex does not repeat the first.
type Polygon []GeoPoint

// Value serializes the polygon for a jsonb column.
func (p Polygon) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal([]GeoPoint(p))
	if err != nil {
		return nil, fmt.Errorf("polygon: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan reads the jsonb vertex array back into the polygon.
func (p *Polygon) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("polygon: unsupported scan type %T", value)
	}
	var points []GeoPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return fmt.Errorf("polygon: unmarshal: %w", err)
	}
	*p = Polygon(points)
	return nil
}

// Contains runs a ray-cast containment test against the ring.
func (p Polygon) Contains(point GeoPoint) bool {
	if len(p) < 3 {
		return false
	}
	inside := false
	j := len(p) - 1
	for i := 0; i < len(p); i++ {
		vi, vj := p[i], p[j]
		if (vi.Lat > point.Lat) != (vj.Lat > point.Lat) {
			intersect := (vj.Lng-vi.Lng)*(point.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if point.Lng < intersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// SurfaceArea returns the shoelace area of the ring in squared degrees.
// It only orders overlapping geofences, so no projection is applied.
func (p Polygon) SurfaceArea() float64 {
	if len(p) < 3 {
		return 0
	}
	sum := 0.0
	j := len(p) - 1
	for i := 0; i < len(p); i++ {
		sum += (p[j].Lng + p[i].Lng) * (p[j].Lat - p[i].Lat)
		j = i
	}
	return math.Abs(sum) / 2
}
