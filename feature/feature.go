// Package feature holds the geometric features owned by a data layer and the
// index that orders them.
package feature

import (
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/pborman/uuid"
)

// Kind is the feature variant selected by a geometry.
type Kind string

const (
	KindPoint           Kind = "Point"
	KindMultiPoint      Kind = "MultiPoint"
	KindLineString      Kind = "LineString"
	KindMultiLineString Kind = "MultiLineString"
	KindPolygon         Kind = "Polygon"
	KindMultiPolygon    Kind = "MultiPolygon"
)

// Supported reports whether t names a geometry type a feature can carry.
func Supported(t string) bool {
	switch Kind(t) {
	case KindPoint, KindMultiPoint, KindLineString, KindMultiLineString, KindPolygon, KindMultiPolygon:
		return true
	}
	return false
}

// Unknown stands in for a geometry that could not be mapped to a feature
// variant. Raw keeps the undecoded payload, when there was one; Err is set
// when the geometry was malformed.
type Unknown struct {
	Type string
	Raw  []byte
	Err  error
}

// KindOf returns the feature variant for g.
func KindOf(g geom.Geometry) (Kind, error) {
	switch g := g.(type) {
	case geom.Point, *geom.Point:
		return KindPoint, nil
	case geom.MultiPoint, *geom.MultiPoint:
		return KindMultiPoint, nil
	case geom.LineString, *geom.LineString:
		return KindLineString, nil
	case geom.MultiLineString, *geom.MultiLineString:
		return KindMultiLineString, nil
	case geom.Polygon, *geom.Polygon:
		return KindPolygon, nil
	case geom.MultiPolygon, *geom.MultiPolygon:
		return KindMultiPolygon, nil
	case Unknown:
		return "", fmt.Errorf("unsupported geometry %q", g.Type)
	case nil:
		return "", fmt.Errorf("missing geometry")
	default:
		return "", fmt.Errorf("unsupported geometry %T", g)
	}
}

// typeName is the name reported for g in errors.
func typeName(g geom.Geometry) string {
	if k, err := KindOf(g); err == nil {
		return string(k)
	}
	switch g := g.(type) {
	case Unknown:
		return g.Type
	case nil:
		return "null"
	case geom.Collection, *geom.Collection:
		return "GeometryCollection"
	default:
		return fmt.Sprintf("%T", g)
	}
}

// Feature is one geometric entity with its properties.
type Feature struct {
	ID         string
	Geometry   geom.Geometry
	Properties map[string]interface{}
}

// NewID returns a fresh feature identifier.
func NewID() string {
	return uuid.New()
}

// Kind returns the variant of the feature's geometry, or "" when unsupported.
func (f *Feature) Kind() Kind {
	k, _ := KindOf(f.Geometry)
	return k
}

// Property returns the named property value.
func (f *Feature) Property(name string) (interface{}, bool) {
	if f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[name]
	return v, ok
}

// Clone returns a deep copy of the feature.
func (f *Feature) Clone() *Feature {
	return &Feature{
		ID:         f.ID,
		Geometry:   cloneGeometry(f.Geometry),
		Properties: cloneMap(f.Properties),
	}
}

func cloneGeometry(g geom.Geometry) geom.Geometry {
	switch g := g.(type) {
	case geom.Point:
		return g
	case *geom.Point:
		p := *g
		return p
	case geom.MultiPoint:
		return geom.MultiPoint(clonePoints(g))
	case *geom.MultiPoint:
		return geom.MultiPoint(clonePoints(*g))
	case geom.LineString:
		return geom.LineString(clonePoints(g))
	case *geom.LineString:
		return geom.LineString(clonePoints(*g))
	case geom.MultiLineString:
		return geom.MultiLineString(cloneRings(g))
	case *geom.MultiLineString:
		return geom.MultiLineString(cloneRings(*g))
	case geom.Polygon:
		return geom.Polygon(cloneRings(g))
	case *geom.Polygon:
		return geom.Polygon(cloneRings(*g))
	case geom.MultiPolygon:
		return clonePolygons(g)
	case *geom.MultiPolygon:
		return clonePolygons(*g)
	case Unknown:
		raw := make([]byte, len(g.Raw))
		copy(raw, g.Raw)
		return Unknown{Type: g.Type, Raw: raw, Err: g.Err}
	default:
		return g
	}
}

func clonePoints(pts [][2]float64) [][2]float64 {
	if pts == nil {
		return nil
	}
	out := make([][2]float64, len(pts))
	copy(out, pts)
	return out
}

func cloneRings(rings [][][2]float64) [][][2]float64 {
	if rings == nil {
		return nil
	}
	out := make([][][2]float64, len(rings))
	for i := range rings {
		out[i] = clonePoints(rings[i])
	}
	return out
}

func clonePolygons(polys geom.MultiPolygon) geom.MultiPolygon {
	if polys == nil {
		return nil
	}
	out := make(geom.MultiPolygon, len(polys))
	for i := range polys {
		out[i] = cloneRings(polys[i])
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return cloneMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	default:
		return v
	}
}
