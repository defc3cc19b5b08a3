package format_test

import (
	"context"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-test/deep"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	_ "github.com/atlasdatatech/layersync/format/csv"
	_ "github.com/atlasdatatech/layersync/format/geojson"
)

func TestParseUnknownFormat(t *testing.T) {
	_, err := format.Parse(context.Background(), []byte("{}"), "kml-ish")
	if _, ok := err.(format.FormatError); !ok {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestParseGeoJSON(t *testing.T) {
	c, err := format.Parse(context.Background(), []byte(`{"type":"Point","coordinates":[3,4]}`), "GeoJSON")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Features) != 1 || c.Features[0].Kind() != feature.KindPoint {
		t.Errorf("unexpected collection %+v", c)
	}

	_, err = format.Parse(context.Background(), []byte(`{not json`), "geojson")
	if _, ok := err.(format.ParseError); !ok {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestParseCSV(t *testing.T) {
	raw := "name;Latitude;lng;note\nA;48,85;2,35;first\nB;nope;2;bad\nC;1.5;-3;\n"
	c, err := format.Parse(context.Background(), []byte(raw), "csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Features) != 2 {
		t.Fatalf("features, expected 2 got %v", len(c.Features))
	}
	p := c.Features[0]
	if diff := deep.Equal(p.Properties, map[string]interface{}{"name": "A", "note": "first"}); diff != nil {
		t.Errorf("properties: %v", diff)
	}
	if diff := deep.Equal(p.Geometry, geom.Point{2.35, 48.85}); diff != nil {
		t.Errorf("geometry: %v", diff)
	}

	_, err = format.Parse(context.Background(), []byte("name,value\nA,1\n"), "csv")
	if _, ok := err.(format.ParseError); !ok {
		t.Errorf("expected ParseError for missing columns, got %v", err)
	}
}

func TestRegisterTwice(t *testing.T) {
	p := format.ParserFunc(func(context.Context, []byte) (feature.Collection, error) {
		return feature.Collection{}, nil
	})
	if err := format.Register("twice", p); err != nil {
		t.Fatal(err)
	}
	defer format.Unregister("twice")
	if _, ok := format.Register("TWICE", p).(format.ErrAlreadyRegistered); !ok {
		t.Errorf("expected ErrAlreadyRegistered")
	}
}
