// Package memory is a store backend keeping layers in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/atlasdatatech/layersync/server/store"
)

const Name = "memory"

func init() {
	store.Register(Name, func(store.Config) (store.Store, error) {
		return New(), nil
	})
}

type key struct {
	mapName, id string
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[key]store.Record
}

func New() *Store {
	return &Store{records: map[key]store.Record{}}
}

func clone(r store.Record) store.Record {
	r.Settings = append([]byte(nil), r.Settings...)
	r.GeoJSON = append([]byte(nil), r.GeoJSON...)
	return r
}

func (s *Store) Get(_ context.Context, mapName, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key{mapName, id}]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return clone(r), nil
}

func (s *Store) Put(_ context.Context, rec store.Record, ifVersion string) (string, error) {
	k := key{rec.Map, rec.ID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifVersion != "" {
		cur, ok := s.records[k]
		if !ok || cur.Version != ifVersion {
			return "", store.ErrVersionMismatch
		}
	}
	rec = clone(rec)
	rec.Version = store.NewVersion()
	rec.Updated = time.Now().UTC()
	s.records[k] = rec
	return rec.Version, nil
}

func (s *Store) Delete(_ context.Context, mapName, id string) error {
	k := key{mapName, id}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

func (s *Store) List(_ context.Context, mapName string) ([]store.Record, error) {
	s.mu.RLock()
	var out []store.Record
	for k, r := range s.records {
		if k.mapName != mapName {
			continue
		}
		r = clone(r)
		r.GeoJSON = nil
		out = append(out, r)
	}
	s.mu.RUnlock()
	store.SortByRank(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
