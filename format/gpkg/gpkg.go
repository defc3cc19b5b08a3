//go:build cgo
// +build cgo

// Package gpkg registers the "gpkg" format. A GeoPackage is a sqlite
// database; the payload is written to a temporary file and every feature
// table is read from it.
package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/internal/log"
)

const (
	Name        = "gpkg"
	DefaultSRID = 4326
	// TableProperty names the source table on every feature. The reserved
	// prefix keeps it out of the property index.
	TableProperty = "_table"
)

func init() {
	format.Register(Name, Parser{})
}

// Parser reads GeoPackage files.
type Parser struct{}

func decodeGeometry(bytes []byte) (*BinaryHeader, geom.Geometry, error) {
	h, err := NewBinaryHeader(bytes)
	if err != nil {
		log.Errorf("error decoding geometry header: %v", err)
		return h, nil, err
	}

	geo, err := wkb.DecodeBytes(bytes[h.Size():])
	if err != nil {
		log.Errorf("error decoding geometry: %v", err)
		return h, nil, err
	}

	return h, geo, nil
}

type featureTable struct {
	name          string
	geomFieldname string
	srid          int64
}

// Parse implements format.Parser.
func (Parser) Parse(ctx context.Context, raw []byte) (feature.Collection, error) {
	tmp, err := ioutil.TempFile("", "layersync-*.gpkg")
	if err != nil {
		return feature.Collection{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return feature.Collection{}, err
	}
	if err := tmp.Close(); err != nil {
		return feature.Collection{}, err
	}

	db, err := sql.Open("sqlite3", "file:"+tmp.Name()+"?mode=ro")
	if err != nil {
		return feature.Collection{}, err
	}
	defer db.Close()

	tables, err := featureTables(ctx, db)
	if err != nil {
		return feature.Collection{}, format.ParseError{Format: Name, Err: err}
	}

	var c feature.Collection
	for _, t := range tables {
		if t.srid != DefaultSRID {
			log.Warnf("gpkg: table %v uses srid %v, coordinates are passed through untransformed", t.name, t.srid)
		}
		if err := readTable(ctx, db, t, &c); err != nil {
			return feature.Collection{}, format.ParseError{Format: Name, Err: err}
		}
	}
	return c, nil
}

func featureTables(ctx context.Context, db *sql.DB) ([]featureTable, error) {
	const qtext = `
		SELECT
			c.table_name, gc.column_name, c.srs_id
		FROM
			gpkg_contents c JOIN gpkg_geometry_columns gc ON c.table_name = gc.table_name
		WHERE
			c.data_type = 'features'
		ORDER BY c.table_name`

	rows, err := db.QueryContext(ctx, qtext)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []featureTable
	for rows.Next() {
		var (
			t    featureTable
			srid sql.NullInt64
		)
		if err := rows.Scan(&t.name, &t.geomFieldname, &srid); err != nil {
			return nil, err
		}
		t.srid = srid.Int64
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// primaryKey returns the integer primary key column of table, "fid" by default.
func primaryKey(ctx context.Context, db *sql.DB, table string) (string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(`%v`)", table))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	pk := "fid"
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    interface{}
			isPK    int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &isPK); err != nil {
			return "", err
		}
		if isPK == 1 {
			pk = name
		}
	}
	return pk, rows.Err()
}

func readTable(ctx context.Context, db *sql.DB, t featureTable, c *feature.Collection) error {
	idFieldname, err := primaryKey(ctx, db, t.name)
	if err != nil {
		return err
	}

	qtext := fmt.Sprintf("SELECT * FROM `%v` ORDER BY `%v`", t.name, idFieldname)
	log.Debugf("qtext: %v", qtext)

	rows, err := db.QueryContext(ctx, qtext)
	if err != nil {
		log.Errorf("err during query: %v - %v", qtext, err)
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		// check if the context cancelled or timed out
		if ctx.Err() != nil {
			return ctx.Err()
		}

		vals := make([]interface{}, len(cols))
		valPtrs := make([]interface{}, len(cols))
		for i := 0; i < len(cols); i++ {
			valPtrs[i] = &vals[i]
		}

		if err = rows.Scan(valPtrs...); err != nil {
			log.Errorf("err reading row values: %v", err)
			return err
		}

		f := feature.Feature{
			Properties: map[string]interface{}{TableProperty: t.name},
		}

		for i := range cols {
			if vals[i] == nil {
				continue
			}

			switch cols[i] {
			case idFieldname:
				f.ID = fmt.Sprintf("%v.%v", t.name, vals[i])

			case t.geomFieldname:
				geomData, ok := vals[i].([]byte)
				if !ok {
					return fmt.Errorf("unexpected column type for geom field. got %T", vals[i])
				}
				_, geo, err := decodeGeometry(geomData)
				if err != nil {
					return err
				}
				f.Geometry = geo

			default:
				switch v := vals[i].(type) {
				case []byte:
					f.Properties[cols[i]] = string(v)
				case int64:
					f.Properties[cols[i]] = float64(v)
				case float64, string, bool:
					f.Properties[cols[i]] = v
				default:
					log.Errorf("unexpected type for sqlite column data: %v: %T", cols[i], v)
				}
			}
		}
		c.Features = append(c.Features, f)
	}
	return rows.Err()
}
