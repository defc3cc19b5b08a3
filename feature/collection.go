package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

// Collection is a GeoJSON-like payload: a list of features plus any foreign
// top-level members (for instance the layer options envelope).
type Collection struct {
	Features []Feature
	// Members holds top-level members other than "type" and "features".
	Members map[string]json.RawMessage
}

// Member decodes the named top-level member into v. It reports false when the
// member is absent.
func (c *Collection) Member(name string, v interface{}) (bool, error) {
	raw, ok := c.Members[name]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding member %q: %v", name, err)
	}
	return true, nil
}

// SetMember encodes v as the named top-level member.
func (c *Collection) SetMember(name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.Members == nil {
		c.Members = map[string]json.RawMessage{}
	}
	c.Members[name] = raw
	return nil
}

type jsonFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// MarshalJSON encodes the collection as a GeoJSON FeatureCollection.
func (c Collection) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Members)+2)
	for k, v := range c.Members {
		out[k] = v
	}
	out["type"] = json.RawMessage(`"FeatureCollection"`)

	features := make([]jsonFeature, 0, len(c.Features))
	for i := range c.Features {
		f := &c.Features[i]
		raw, err := encodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature (%v): %v", f.ID, err)
		}
		jf := jsonFeature{
			Type:       "Feature",
			Geometry:   raw,
			Properties: f.Properties,
		}
		if f.ID != "" {
			jf.ID = f.ID
		}
		if jf.Properties == nil {
			jf.Properties = map[string]interface{}{}
		}
		features = append(features, jf)
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	out["features"] = raw
	return json.Marshal(out)
}

func encodeGeometry(g geom.Geometry) (json.RawMessage, error) {
	switch g := g.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case Unknown:
		if len(g.Raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return json.RawMessage(g.Raw), nil
	}
	return json.Marshal(geojson.Geometry{Geometry: g})
}

// UnmarshalJSON accepts a FeatureCollection, a single Feature, a
// GeometryCollection or a bare geometry. Elements whose geometry type is not a
// feature variant, or whose geometry does not decode, are kept with an
// Unknown geometry so the caller decides whether to skip them.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	var typ string
	if raw, ok := members["type"]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return fmt.Errorf("decoding type: %v", err)
		}
	}

	c.Features = nil
	c.Members = map[string]json.RawMessage{}

	switch typ {
	case "FeatureCollection":
		for k, v := range members {
			if k == "type" || k == "features" {
				continue
			}
			c.Members[k] = v
		}
		var raws []json.RawMessage
		if raw, ok := members["features"]; ok && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &raws); err != nil {
				return fmt.Errorf("decoding features: %v", err)
			}
		}
		for i := range raws {
			f, err := decodeFeature(raws[i])
			if err != nil {
				return fmt.Errorf("feature #%v: %v", i, err)
			}
			c.Features = append(c.Features, f)
		}
	case "Feature":
		f, err := decodeFeature(data)
		if err != nil {
			return err
		}
		c.Features = append(c.Features, f)
	case "GeometryCollection":
		var gc struct {
			Geometries []json.RawMessage `json:"geometries"`
		}
		if err := json.Unmarshal(data, &gc); err != nil {
			return err
		}
		for i := range gc.Geometries {
			g, err := decodeGeometry(gc.Geometries[i])
			if err != nil {
				return fmt.Errorf("geometry #%v: %v", i, err)
			}
			c.Features = append(c.Features, Feature{Geometry: g})
		}
	case "":
		return fmt.Errorf("missing GeoJSON type")
	default:
		g, err := decodeGeometry(data)
		if err != nil {
			return err
		}
		c.Features = append(c.Features, Feature{Geometry: g})
	}
	return nil
}

// decodeFeature decodes one element. An element that does not decode is
// returned with an Unknown geometry carrying the error, so one bad element
// does not fail the whole payload.
func decodeFeature(raw json.RawMessage) (Feature, error) {
	var jf jsonFeature
	if err := json.Unmarshal(raw, &jf); err != nil {
		var head struct {
			ID interface{} `json:"id"`
		}
		json.Unmarshal(raw, &head)
		return Feature{ID: idString(head.ID), Geometry: Unknown{Type: "invalid", Err: err}}, nil
	}
	g, err := decodeGeometry(jf.Geometry)
	if err != nil {
		return Feature{}, err
	}
	return Feature{
		ID:         idString(jf.ID),
		Geometry:   g,
		Properties: jf.Properties,
	}, nil
}

func idString(id interface{}) string {
	switch id := id.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

func decodeGeometry(raw json.RawMessage) (geom.Geometry, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Unknown{Type: "null"}, nil
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Unknown{Type: "invalid", Err: err}, nil
	}
	keep := make([]byte, len(raw))
	copy(keep, raw)
	if !Supported(head.Type) {
		return Unknown{Type: head.Type, Raw: keep}, nil
	}
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Unknown{Type: head.Type, Raw: keep, Err: err}, nil
	}
	return g.Geometry, nil
}

// Materialize turns the elements of a payload into features ready to be
// indexed. Elements with an unsupported geometry are skipped and reported;
// elements without an id, or repeating an earlier id, get a fresh one.
func Materialize(c Collection) ([]*Feature, []UnknownGeometryError) {
	var (
		out     = make([]*Feature, 0, len(c.Features))
		seen    = make(map[string]struct{}, len(c.Features))
		skipped []UnknownGeometryError
	)
	for i := range c.Features {
		f := c.Features[i]
		if _, err := KindOf(f.Geometry); err != nil {
			uerr := UnknownGeometryError{
				Position:  i,
				FeatureID: f.ID,
				Type:      typeName(f.Geometry),
			}
			if u, ok := f.Geometry.(Unknown); ok {
				uerr.Err = u.Err
			}
			skipped = append(skipped, uerr)
			continue
		}
		if _, dup := seen[f.ID]; f.ID == "" || dup {
			f.ID = NewID()
		}
		seen[f.ID] = struct{}{}
		if f.Properties == nil {
			f.Properties = map[string]interface{}{}
		}
		out = append(out, &f)
	}
	return out, skipped
}

// NewCollection builds a collection from indexed features, in order.
func NewCollection(features []*Feature) Collection {
	c := Collection{Features: make([]Feature, 0, len(features))}
	for _, f := range features {
		c.Features = append(c.Features, *f.Clone())
	}
	return c
}

// IDs returns the feature ids of the collection, sorted.
func (c Collection) IDs() []string {
	ids := make([]string, 0, len(c.Features))
	for i := range c.Features {
		ids = append(ids, c.Features[i].ID)
	}
	sort.Strings(ids)
	return ids
}
