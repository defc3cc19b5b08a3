// Package store defines where the layer server keeps layers, and the
// registry of storage backends. Backends register themselves from an init
// function and are selected by name from the config:
//
//	[store]
//	type = "sqlite"
//	path = "layers.db"
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pborman/uuid"
)

var (
	// ErrNotFound is returned for layers the store does not hold.
	ErrNotFound = errors.New("store: layer not found")
	// ErrVersionMismatch is returned by a conditional Put when the stored
	// version is not the expected one, or there is no stored layer.
	ErrVersionMismatch = errors.New("store: version mismatch")
)

// Record is one stored layer.
type Record struct {
	Map           string
	ID            string
	Name          string
	DisplayOnLoad bool
	Rank          int
	// Settings is the options object of the layer.
	Settings json.RawMessage
	// GeoJSON is the full feature collection, options envelope included.
	GeoJSON []byte
	Version string
	Updated time.Time
}

// Store keeps layer records. Implementations must make the version check
// and write of Put atomic.
type Store interface {
	Get(ctx context.Context, mapName, id string) (Record, error)
	// Put writes rec under a new version, which it returns. When ifVersion
	// is not empty the write only happens if the stored version equals it;
	// otherwise ErrVersionMismatch is returned.
	Put(ctx context.Context, rec Record, ifVersion string) (version string, err error)
	Delete(ctx context.Context, mapName, id string) error
	// List returns the records of a map sorted by rank, without GeoJSON.
	List(ctx context.Context, mapName string) ([]Record, error)
	Close() error
}

// NewVersion returns a fresh opaque version token.
func NewVersion() string {
	return uuid.New()
}

// SortByRank orders records by rank, then id.
func SortByRank(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Rank != recs[j].Rank {
			return recs[i].Rank < recs[j].Rank
		}
		return recs[i].ID < recs[j].ID
	})
}

// InitFunc builds a store from its config.
type InitFunc func(cfg Config) (Store, error)

var (
	mu      sync.RWMutex
	drivers = map[string]InitFunc{}
)

// Register makes a backend available under name.
func Register(name string, init InitFunc) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := drivers[name]; ok {
		return ErrDriverAlreadyRegistered(name)
	}
	drivers[name] = init
	return nil
}

// Drivers returns the registered backend names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For builds the backend registered under name.
func For(name string, cfg Config) (Store, error) {
	mu.RLock()
	init, ok := drivers[name]
	mu.RUnlock()
	if !ok {
		return nil, ErrUnknownDriver{Name: name, Known: Drivers()}
	}
	return init(cfg)
}
