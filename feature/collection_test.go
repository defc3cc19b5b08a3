package feature_test

import (
	"encoding/json"
	"testing"

	"github.com/go-test/deep"

	"github.com/atlasdatatech/layersync/feature"
)

const mixedPayload = `{
	"type": "FeatureCollection",
	"_umap_options": {"name": "mixed"},
	"features": [
		{"type": "Feature", "id": "p1", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "one"}},
		{"type": "Feature", "id": 7, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {}},
		{"type": "Feature", "id": "c1", "geometry": {"type": "Circle", "coordinates": [0, 0], "radius": 4}, "properties": {}},
		{"type": "Feature", "geometry": {"type": "MultiPolygon", "coordinates": [[[[0, 0], [1, 0], [1, 1], [0, 0]]]]}},
		{"type": "Feature", "id": "g1", "geometry": {"type": "GeometryCollection", "geometries": []}, "properties": {}}
	]
}`

func TestMaterializeMalformedGeometry(t *testing.T) {
	const payload = `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"good","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},
		{"type":"Feature","id":"bad","geometry":{"type":"Point","coordinates":"oops"},"properties":{}},
		{"type":"Feature","id":"worse","geometry":[1,2],"properties":{}}
	]}`
	var c feature.Collection
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		t.Fatalf("one malformed element must not fail the payload: %v", err)
	}
	features, skipped := feature.Materialize(c)
	if len(features) != 1 || features[0].ID != "good" {
		t.Fatalf("features, expected [good] got %v", features)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped, expected 2 got %v", skipped)
	}
	if skipped[0].FeatureID != "bad" || skipped[0].Type != "Point" || skipped[0].Err == nil || skipped[0].Position != 1 {
		t.Errorf("unexpected skip report %+v", skipped[0])
	}
	if skipped[1].FeatureID != "worse" || skipped[1].Err == nil {
		t.Errorf("unexpected skip report %+v", skipped[1])
	}
}

func TestMaterialize(t *testing.T) {
	var c feature.Collection
	if err := json.Unmarshal([]byte(mixedPayload), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var opts struct {
		Name string `json:"name"`
	}
	ok, err := c.Member("_umap_options", &opts)
	if err != nil || !ok || opts.Name != "mixed" {
		t.Fatalf("member: ok %v err %v name %q", ok, err, opts.Name)
	}

	features, skipped := feature.Materialize(c)
	if len(features) != 3 {
		t.Fatalf("features, expected 3 got %v", len(features))
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped, expected 2 got %v", skipped)
	}
	if skipped[0].Type != "Circle" || skipped[0].FeatureID != "c1" || skipped[0].Position != 2 {
		t.Errorf("unexpected skip report %+v", skipped[0])
	}
	if skipped[1].Type != "GeometryCollection" {
		t.Errorf("unexpected skip report %+v", skipped[1])
	}

	kinds := []feature.Kind{features[0].Kind(), features[1].Kind(), features[2].Kind()}
	want := []feature.Kind{feature.KindPoint, feature.KindLineString, feature.KindMultiPolygon}
	if diff := deep.Equal(kinds, want); diff != nil {
		t.Errorf("kinds: %v", diff)
	}
	if features[1].ID != "7" {
		t.Errorf("numeric id, expected %q got %q", "7", features[1].ID)
	}
	if features[2].ID == "" {
		t.Errorf("expected generated id for feature without one")
	}
}

func TestCollectionRoundTrip(t *testing.T) {
	var in feature.Collection
	if err := json.Unmarshal([]byte(mixedPayload), &in); err != nil {
		t.Fatal(err)
	}
	features, _ := feature.Materialize(in)

	raw, err := json.Marshal(feature.NewCollection(features))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out feature.Collection
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := deep.Equal(out.IDs(), feature.NewCollection(features).IDs()); diff != nil {
		t.Errorf("ids: %v", diff)
	}
	got := map[string]feature.Kind{}
	for i := range out.Features {
		got[out.Features[i].ID] = out.Features[i].Kind()
	}
	for _, f := range features {
		if got[f.ID] != f.Kind() {
			t.Errorf("feature %v kind, expected %v got %v", f.ID, f.Kind(), got[f.ID])
		}
	}
}

func TestCollectionSingleFeatureAndGeometry(t *testing.T) {
	tests := map[string]struct {
		payload string
		kinds   []feature.Kind
	}{
		"feature": {
			payload: `{"type":"Feature","id":"x","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{}}`,
			kinds:   []feature.Kind{feature.KindPolygon},
		},
		"geometry": {
			payload: `{"type":"MultiLineString","coordinates":[[[0,0],[1,1]],[[2,2],[3,3]]]}`,
			kinds:   []feature.Kind{feature.KindMultiLineString},
		},
		"geometry collection": {
			payload: `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[0,0]},{"type":"MultiPoint","coordinates":[[0,0],[1,1]]}]}`,
			kinds:   []feature.Kind{feature.KindPoint, feature.KindMultiPoint},
		},
	}
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			var c feature.Collection
			if err := json.Unmarshal([]byte(tc.payload), &c); err != nil {
				t.Fatal(err)
			}
			features, skipped := feature.Materialize(c)
			if len(skipped) != 0 {
				t.Fatalf("unexpected skipped %v", skipped)
			}
			var kinds []feature.Kind
			for _, f := range features {
				kinds = append(kinds, f.Kind())
			}
			if diff := deep.Equal(kinds, tc.kinds); diff != nil {
				t.Errorf("kinds: %v", diff)
			}
		})
	}
}

func TestFeatureClone(t *testing.T) {
	f := point("a", map[string]interface{}{"nested": map[string]interface{}{"x": 1.0}})
	c := f.Clone()
	c.Properties["nested"].(map[string]interface{})["x"] = 2.0
	if f.Properties["nested"].(map[string]interface{})["x"] != 1.0 {
		t.Errorf("clone shares nested properties")
	}
}
