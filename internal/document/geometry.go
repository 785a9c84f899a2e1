package document

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultGeomTolerance is the coordinate delta (in projected meters)
// below which a submitted geometry is considered identical to the stored
// one. Re-saves of client-side geometry go through reprojection round
// trips that wiggle coordinates well below this.
const DefaultGeomTolerance = 0.5

// Geometry is the spatial shape of a document: a representative point or
// line in Geom, and an optional detailed shape in GeomDetail. Version
// counts real geometry edits only.
type Geometry struct {
	Version    int64
	Geom       orb.Geometry
	GeomDetail orb.Geometry
}

// EncodeGeom renders a geometry to the GeoJSON stored in the geometry
// tables. Nil encodes to the empty string (stored as NULL).
func EncodeGeom(g orb.Geometry) (string, error) {
	if g == nil {
		return "", nil
	}
	raw, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	return string(raw), nil
}

// DecodeGeom parses a stored GeoJSON column. The empty string decodes to
// nil.
func DecodeGeom(raw string) (orb.Geometry, error) {
	if raw == "" {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return g.Geometry(), nil
}

// GeomWithinTolerance reports whether two geometries are the same shape
// up to per-coordinate deltas below tol. Geometries of different kinds
// or vertex counts never match.
func GeomWithinTolerance(a, b orb.Geometry, tol float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.GeoJSONType() != b.GeoJSONType() {
		return false
	}
	switch ga := a.(type) {
	case orb.Point:
		return pointClose(ga, b.(orb.Point), tol)
	case orb.MultiPoint:
		return lineClose(orb.LineString(ga), orb.LineString(b.(orb.MultiPoint)), tol)
	case orb.LineString:
		return lineClose(ga, b.(orb.LineString), tol)
	case orb.MultiLineString:
		gb := b.(orb.MultiLineString)
		if len(ga) != len(gb) {
			return false
		}
		for i := range ga {
			if !lineClose(ga[i], gb[i], tol) {
				return false
			}
		}
		return true
	case orb.Ring:
		return lineClose(orb.LineString(ga), orb.LineString(b.(orb.Ring)), tol)
	case orb.Polygon:
		gb := b.(orb.Polygon)
		if len(ga) != len(gb) {
			return false
		}
		for i := range ga {
			if !lineClose(orb.LineString(ga[i]), orb.LineString(gb[i]), tol) {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		gb := b.(orb.MultiPolygon)
		if len(ga) != len(gb) {
			return false
		}
		for i := range ga {
			if !GeomWithinTolerance(ga[i], gb[i], tol) {
				return false
			}
		}
		return true
	}
	// Collections and anything exotic: treat as changed.
	return false
}

func pointClose(a, b orb.Point, tol float64) bool {
	return math.Abs(a[0]-b[0]) < tol && math.Abs(a[1]-b[1]) < tol
}

func lineClose(a, b orb.LineString, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointClose(a[i], b[i], tol) {
			return false
		}
	}
	return true
}
