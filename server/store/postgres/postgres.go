// Package postgres is a store backend on a PostgreSQL table.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server/store"
)

const Name = "postgres"

const (
	ConfigKeyURI            = "uri"
	ConfigKeyHost           = "host"
	ConfigKeyPort           = "port"
	ConfigKeyDB             = "database"
	ConfigKeyUser           = "user"
	ConfigKeyPassword       = "password"
	ConfigKeyMaxConnections = "max_connections"
	ConfigKeyTable          = "table"
)

const (
	DefaultPort           = 5432
	DefaultMaxConnections = 10
	DefaultTable          = "datalayers"
)

func init() {
	store.Register(Name, NewStore)
}

// Store keeps layers in one table. Conditional writes are a single
// UPDATE ... WHERE version = $n, so the check and write are atomic.
type Store struct {
	pool  *pgx.ConnPool
	table string
}

func connConfig(cfg store.Config) (pgx.ConnConfig, error) {
	empty := ""
	uri, err := cfg.String(ConfigKeyURI, &empty)
	if err != nil {
		return pgx.ConnConfig{}, err
	}
	if uri != "" {
		return pgx.ParseConnectionString(uri)
	}

	var cc pgx.ConnConfig
	if cc.Host, err = cfg.String(ConfigKeyHost, nil); err != nil {
		return cc, err
	}
	if cc.Database, err = cfg.String(ConfigKeyDB, nil); err != nil {
		return cc, err
	}
	if cc.User, err = cfg.String(ConfigKeyUser, nil); err != nil {
		return cc, err
	}
	if cc.Password, err = cfg.String(ConfigKeyPassword, &empty); err != nil {
		return cc, err
	}
	port := DefaultPort
	if port, err = cfg.Int(ConfigKeyPort, &port); err != nil {
		return cc, err
	}
	cc.Port = uint16(port)
	return cc, nil
}

// NewStore connects to the configured database and creates the table.
func NewStore(cfg store.Config) (store.Store, error) {
	cc, err := connConfig(cfg)
	if err != nil {
		return nil, err
	}
	maxConn := DefaultMaxConnections
	if maxConn, err = cfg.Int(ConfigKeyMaxConnections, &maxConn); err != nil {
		return nil, err
	}
	table := DefaultTable
	if table, err = cfg.String(ConfigKeyTable, &table); err != nil {
		return nil, err
	}

	pool, err := pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig:     cc,
		MaxConnections: maxConn,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %v@%v/%v", cc.User, cc.Host, cc.Database)
	}
	s := &Store{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if _, err := pool.Exec(`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		map_name        text NOT NULL,
		id              text NOT NULL,
		name            text NOT NULL,
		display_on_load boolean NOT NULL,
		rank            integer NOT NULL,
		settings        text NOT NULL,
		geojson         bytea NOT NULL,
		version         text NOT NULL,
		updated         timestamptz NOT NULL,
		PRIMARY KEY (map_name, id)
	)`); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating table")
	}
	log.Infof("postgres store: %v@%v/%v (%v)", cc.User, cc.Host, cc.Database, table)
	return s, nil
}

func (s *Store) Get(ctx context.Context, mapName, id string) (store.Record, error) {
	r := store.Record{Map: mapName, ID: id}
	var settings string
	err := s.pool.QueryRowEx(ctx,
		`SELECT name, display_on_load, rank, settings, geojson, version, updated FROM `+s.table+` WHERE map_name = $1 AND id = $2`,
		nil, mapName, id,
	).Scan(&r.Name, &r.DisplayOnLoad, &r.Rank, &settings, &r.GeoJSON, &r.Version, &r.Updated)
	switch {
	case err == pgx.ErrNoRows:
		return store.Record{}, store.ErrNotFound
	case err != nil:
		return store.Record{}, err
	}
	r.Settings = []byte(settings)
	r.Updated = r.Updated.UTC()
	return r, nil
}

func (s *Store) Put(ctx context.Context, rec store.Record, ifVersion string) (string, error) {
	version := store.NewVersion()
	now := time.Now().UTC()

	if ifVersion == "" {
		_, err := s.pool.ExecEx(ctx, `INSERT INTO `+s.table+`
			(map_name, id, name, display_on_load, rank, settings, geojson, version, updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (map_name, id) DO UPDATE SET
				name = EXCLUDED.name, display_on_load = EXCLUDED.display_on_load, rank = EXCLUDED.rank,
				settings = EXCLUDED.settings, geojson = EXCLUDED.geojson,
				version = EXCLUDED.version, updated = EXCLUDED.updated`,
			nil, rec.Map, rec.ID, rec.Name, rec.DisplayOnLoad, rec.Rank, string(rec.Settings), rec.GeoJSON, version, now,
		)
		if err != nil {
			return "", err
		}
		return version, nil
	}

	tag, err := s.pool.ExecEx(ctx, `UPDATE `+s.table+` SET
			name = $3, display_on_load = $4, rank = $5, settings = $6, geojson = $7, version = $8, updated = $9
		WHERE map_name = $1 AND id = $2 AND version = $10`,
		nil, rec.Map, rec.ID, rec.Name, rec.DisplayOnLoad, rec.Rank, string(rec.Settings), rec.GeoJSON, version, now, ifVersion,
	)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", store.ErrVersionMismatch
	}
	return version, nil
}

func (s *Store) Delete(ctx context.Context, mapName, id string) error {
	tag, err := s.pool.ExecEx(ctx, `DELETE FROM `+s.table+` WHERE map_name = $1 AND id = $2`, nil, mapName, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, mapName string) ([]store.Record, error) {
	rows, err := s.pool.QueryEx(ctx,
		`SELECT id, name, display_on_load, rank, settings, version, updated FROM `+s.table+` WHERE map_name = $1 ORDER BY rank, id`,
		nil, mapName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		r := store.Record{Map: mapName}
		var settings string
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayOnLoad, &r.Rank, &settings, &r.Version, &r.Updated); err != nil {
			return nil, err
		}
		r.Settings = []byte(settings)
		r.Updated = r.Updated.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
