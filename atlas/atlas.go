// Package atlas keeps the maps known to a process. A map owns an ordered
// set of layers and coordinates their saves.
package atlas

import (
	"sort"
	"sync"
)

// defaultAtlas is instantiated for convenience
var defaultAtlas = &Atlas{}

// Atlas holds maps by name.
type Atlas struct {
	mu   sync.RWMutex
	maps map[string]*Map
}

// AllMaps returns every map, sorted by name.
func (a *Atlas) AllMaps() []*Map {
	if a == nil {
		return defaultAtlas.AllMaps()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	maps := make([]*Map, 0, len(a.maps))
	for _, m := range a.maps {
		maps = append(maps, m)
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].Name < maps[j].Name })
	return maps
}

// Map returns a map by name, or ErrMapNotFound.
func (a *Atlas) Map(name string) (*Map, error) {
	if a == nil {
		return defaultAtlas.Map(name)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	m, ok := a.maps[name]
	if !ok {
		return nil, ErrMapNotFound{Name: name}
	}
	return m, nil
}

// AddMap registers m under its name, replacing any map of that name.
func (a *Atlas) AddMap(m *Map) {
	if a == nil {
		defaultAtlas.AddMap(m)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maps == nil {
		a.maps = map[string]*Map{}
	}
	a.maps[m.Name] = m
}

// AllMaps returns the maps of the default atlas.
func AllMaps() []*Map {
	return defaultAtlas.AllMaps()
}

// GetMap returns a map of the default atlas.
func GetMap(name string) (*Map, error) {
	return defaultAtlas.Map(name)
}

// AddMap registers a map with the default atlas.
func AddMap(m *Map) {
	defaultAtlas.AddMap(m)
}
