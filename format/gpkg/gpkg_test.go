//go:build cgo
// +build cgo

package gpkg_test

import (
	"context"
	"database/sql"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/format/gpkg"
)

// blob builds a little endian GeoPackage geometry blob without envelope.
func blob(t *testing.T, g geom.Geometry) []byte {
	t.Helper()
	body, err := wkb.EncodeBytes(g)
	if err != nil {
		t.Fatalf("encoding wkb: %v", err)
	}
	h := []byte{'G', 'P', 0, 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(h[4:], 4326)
	return append(h, body...)
}

func buildGeoPackage(t *testing.T) []byte {
	t.Helper()
	dir, err := ioutil.TempDir("", "gpkg-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "test.gpkg")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT, column_name TEXT, geometry_type_name TEXT, srs_id INTEGER)`,
		`CREATE TABLE parks (fid INTEGER PRIMARY KEY, geom BLOB, name TEXT, area REAL)`,
		`INSERT INTO gpkg_contents VALUES ('parks', 'features', 4326)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('parks', 'geom', 'POINT', 4326)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%v: %v", s, err)
		}
	}
	if _, err := db.Exec(`INSERT INTO parks VALUES (1, ?, 'North', 12.5)`, blob(t, geom.Point{1, 2})); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO parks VALUES (2, ?, 'South', NULL)`, blob(t, geom.LineString{{0, 0}, {1, 1}})); err != nil {
		t.Fatal(err)
	}
	db.Close()

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestParse(t *testing.T) {
	c, err := format.Parse(context.Background(), buildGeoPackage(t), gpkg.Name)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(c.Features) != 2 {
		t.Fatalf("features, expected 2 got %v", len(c.Features))
	}

	f := c.Features[0]
	if f.ID != "parks.1" {
		t.Errorf("id, expected parks.1 got %v", f.ID)
	}
	if f.Kind() != feature.KindPoint {
		t.Errorf("kind, expected Point got %v", f.Kind())
	}
	if f.Properties["name"] != "North" || f.Properties["area"] != 12.5 {
		t.Errorf("unexpected properties %v", f.Properties)
	}
	if f.Properties[gpkg.TableProperty] != "parks" {
		t.Errorf("expected table property, got %v", f.Properties)
	}
	if c.Features[1].Kind() != feature.KindLineString {
		t.Errorf("kind, expected LineString got %v", c.Features[1].Kind())
	}
}

func TestParseGarbage(t *testing.T) {
	_, err := format.Parse(context.Background(), []byte("definitely not sqlite"), gpkg.Name)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBinaryHeader(t *testing.T) {
	if _, err := gpkg.NewBinaryHeader([]byte("XX\x00\x01\x00\x00\x00\x00")); err != gpkg.ErrInvalidMagic {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}

	// envelope indicator 1: minx, maxx, miny, maxy
	data := []byte{'G', 'P', 0, 0x03, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(data[4:], 3857)
	data = append(data, make([]byte, 32)...)
	h, err := gpkg.NewBinaryHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.Size() != 40 || h.SRSId() != 3857 || len(h.Envelope()) != 4 {
		t.Errorf("unexpected header size %v srs %v envelope %v", h.Size(), h.SRSId(), h.Envelope())
	}
}
