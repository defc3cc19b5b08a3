//go:build cgo
// +build cgo

// Package sqlite is a store backend on a sqlite database file.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server/store"
)

const (
	Name          = "sqlite"
	ConfigKeyPath = "path"
)

func init() {
	store.Register(Name, NewStore)
}

const schema = `
CREATE TABLE IF NOT EXISTS datalayers (
	map_name        TEXT NOT NULL,
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	display_on_load INTEGER NOT NULL,
	rank            INTEGER NOT NULL,
	settings        TEXT NOT NULL,
	geojson         BLOB NOT NULL,
	version         TEXT NOT NULL,
	updated         INTEGER NOT NULL,
	PRIMARY KEY (map_name, id)
)`

// Store keeps layers in one table.
type Store struct {
	db *sql.DB
}

// NewStore opens (and creates) the database at the configured path.
func NewStore(cfg store.Config) (store.Store, error) {
	path, err := cfg.String(ConfigKeyPath, nil)
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Open opens the database at path; ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "opening %v", path)
	}
	// a single connection serializes writers and keeps a :memory: database alive
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	log.Infof("sqlite store: %v", path)
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, mapName, id string) (store.Record, error) {
	const qtext = `SELECT name, display_on_load, rank, settings, geojson, version, updated FROM datalayers WHERE map_name = ? AND id = ?`
	r := store.Record{Map: mapName, ID: id}
	var (
		settings string
		updated  int64
	)
	err := s.db.QueryRowContext(ctx, qtext, mapName, id).Scan(&r.Name, &r.DisplayOnLoad, &r.Rank, &settings, &r.GeoJSON, &r.Version, &updated)
	switch {
	case err == sql.ErrNoRows:
		return store.Record{}, store.ErrNotFound
	case err != nil:
		return store.Record{}, err
	}
	r.Settings = []byte(settings)
	r.Updated = time.Unix(0, updated).UTC()
	return r, nil
}

func (s *Store) Put(ctx context.Context, rec store.Record, ifVersion string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if ifVersion != "" {
		var cur string
		err := tx.QueryRowContext(ctx, `SELECT version FROM datalayers WHERE map_name = ? AND id = ?`, rec.Map, rec.ID).Scan(&cur)
		switch {
		case err == sql.ErrNoRows:
			return "", store.ErrVersionMismatch
		case err != nil:
			return "", err
		case cur != ifVersion:
			return "", store.ErrVersionMismatch
		}
	}

	version := store.NewVersion()
	const qtext = `INSERT OR REPLACE INTO datalayers (map_name, id, name, display_on_load, rank, settings, geojson, version, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, qtext,
		rec.Map, rec.ID, rec.Name, rec.DisplayOnLoad, rec.Rank, string(rec.Settings), rec.GeoJSON, version, time.Now().UnixNano(),
	)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return version, nil
}

func (s *Store) Delete(ctx context.Context, mapName, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datalayers WHERE map_name = ? AND id = ?`, mapName, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, mapName string) ([]store.Record, error) {
	const qtext = `SELECT id, name, display_on_load, rank, settings, version, updated FROM datalayers WHERE map_name = ? ORDER BY rank, id`
	rows, err := s.db.QueryContext(ctx, qtext, mapName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		r := store.Record{Map: mapName}
		var (
			settings string
			updated  int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayOnLoad, &r.Rank, &settings, &r.Version, &updated); err != nil {
			return nil, err
		}
		r.Settings = []byte(settings)
		r.Updated = time.Unix(0, updated).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
