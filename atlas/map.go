package atlas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/layer"
	"github.com/atlasdatatech/layersync/remote"
	"github.com/atlasdatatech/layersync/transport"
)

// Result is what a layer save ended with.
type Result = layer.Result

// LayerSummary is one entry of the server layer listing.
type LayerSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DisplayOnLoad bool   `json:"displayOnLoad"`
	Rank          int    `json:"rank"`
	Version       string `json:"version,omitempty"`
}

// Map is an ordered collection of layers stored on one server. It owns its
// layers, builds their urls and tracks which ones have unsaved changes.
type Map struct {
	Name string
	// Server is the root url of the layer server. Layer urls are
	// <Server>/map/<Name>/...
	Server    string
	Transport transport.Transport
	Renderer  layer.Renderer
	Notifier  layer.Notifier
	// Locale drives the natural sort of features.
	Locale string

	mu     sync.RWMutex
	layers []*layer.DataLayer
	dirty  map[*layer.DataLayer]bool
}

// NewMap returns a map talking to server through t.
func NewMap(name, server string, t transport.Transport) *Map {
	return &Map{
		Name:      name,
		Server:    strings.TrimSuffix(server, "/"),
		Transport: t,
	}
}

func (m *Map) base() string {
	return fmt.Sprintf("%v/map/%v", m.Server, url.PathEscape(m.Name))
}

// DataURL implements layer.Routes.
func (m *Map) DataURL(id string) string {
	return fmt.Sprintf("%v/datalayer/%v/", m.base(), url.PathEscape(id))
}

// SaveURL implements layer.Routes.
func (m *Map) SaveURL(id string) string {
	return fmt.Sprintf("%v/datalayer/%v/update/", m.base(), url.PathEscape(id))
}

// DeleteURL implements layer.Routes.
func (m *Map) DeleteURL(id string) string {
	return fmt.Sprintf("%v/datalayer/%v/delete/", m.base(), url.PathEscape(id))
}

// ListURL is the layer listing of the map.
func (m *Map) ListURL() string {
	return m.base() + "/datalayers/"
}

// ProxyURL is the caching proxy of the server.
func (m *Map) ProxyURL() string {
	return m.Server + "/ajax-proxy/"
}

// NewLayer creates a layer owned by m. Collaborators left empty in cfg
// are taken from the map.
func (m *Map) NewLayer(cfg layer.Config) *layer.DataLayer {
	if cfg.Routes == nil {
		cfg.Routes = m
	}
	if cfg.Transport == nil {
		cfg.Transport = m.Transport
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = &remote.Fetcher{Transport: cfg.Transport, ProxyURL: m.ProxyURL()}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = m.Renderer
	}
	if cfg.Notifier == nil {
		cfg.Notifier = m.Notifier
	}
	if cfg.Locale == "" {
		cfg.Locale = m.Locale
	}
	return layer.New(m, cfg)
}

// Connect implements layer.Collection. Layers are appended at the top.
func (m *Map) Connect(l *layer.DataLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.layers {
		if existing == l {
			return
		}
	}
	m.layers = append(m.layers, l)
}

// Disconnect implements layer.Collection.
func (m *Map) Disconnect(l *layer.DataLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.layers {
		if m.layers[i] == l {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			break
		}
	}
	delete(m.dirty, l)
}

// Rank implements layer.Collection. It is -1 for a layer m does not own.
func (m *Map) Rank(l *layer.DataLayer) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.layers {
		if m.layers[i] == l {
			return i
		}
	}
	return -1
}

// Layers returns the layers in rank order.
func (m *Map) Layers() []*layer.DataLayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*layer.DataLayer(nil), m.layers...)
}

// LayerByID returns a layer by id.
func (m *Map) LayerByID(id string) (*layer.DataLayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.layers {
		if l.ID() == id {
			return l, nil
		}
	}
	return nil, ErrLayerNotFound{Map: m.Name, ID: id}
}

// Reorder sets the layer order from ids. Layers not named keep their
// relative order after the named ones. Layers whose rank changed become
// dirty, the rank being part of what is saved.
func (m *Map) Reorder(ids []string) error {
	m.mu.Lock()
	byID := make(map[string]*layer.DataLayer, len(m.layers))
	for _, l := range m.layers {
		byID[l.ID()] = l
	}
	ordered := make([]*layer.DataLayer, 0, len(m.layers))
	placed := map[*layer.DataLayer]bool{}
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			m.mu.Unlock()
			return ErrLayerNotFound{Map: m.Name, ID: id}
		}
		if !placed[l] {
			ordered = append(ordered, l)
			placed[l] = true
		}
	}
	for _, l := range m.layers {
		if !placed[l] {
			ordered = append(ordered, l)
		}
	}
	var moved []*layer.DataLayer
	for i := range ordered {
		if ordered[i] != m.layers[i] {
			moved = append(moved, ordered[i])
		}
	}
	m.layers = ordered
	m.mu.Unlock()

	for _, l := range moved {
		if err := l.Touch(); err != nil {
			return err
		}
	}
	return nil
}

// DirtyChanged implements layer.Coordinator.
func (m *Map) DirtyChanged(l *layer.DataLayer, dirty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty == nil {
		m.dirty = map[*layer.DataLayer]bool{}
	}
	if dirty {
		m.dirty[l] = true
	} else {
		delete(m.dirty, l)
	}
	log.Debugf("map %v: %v dirty layers", m.Name, len(m.dirty))
}

// IsDirty reports whether any layer has unsaved changes.
func (m *Map) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dirty) > 0
}

// DirtyLayers returns the layers with unsaved changes in rank order.
func (m *Map) DirtyLayers() []*layer.DataLayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*layer.DataLayer
	for _, l := range m.layers {
		if m.dirty[l] {
			out = append(out, l)
		}
	}
	// layers pending deletion were hidden but are still owned
	for l := range m.dirty {
		if !containsLayer(m.layers, l) {
			out = append(out, l)
		}
	}
	return out
}

// SaveAll implements layer.Coordinator. Every dirty layer is saved; a
// conflict or failure on one layer does not stop the others. Conflicts are
// returned as ErrConflicts, failures as ErrSave.
func (m *Map) SaveAll(ctx context.Context) error {
	conflicts := map[string]Result{}
	failed := map[string]error{}
	for _, l := range m.DirtyLayers() {
		res, err := l.Save(ctx)
		switch {
		case err == layer.ErrSaveInFlight:
			// the caller of that save reports it
		case err != nil:
			failed[l.ID()] = err
		case res.Kind == layer.ResultConflict:
			conflicts[l.ID()] = res
		}
	}
	if len(failed) > 0 {
		return ErrSave{Map: m.Name, Errors: failed}
	}
	if len(conflicts) > 0 {
		return ErrConflicts{Map: m.Name, Results: conflicts}
	}
	return nil
}

// List reads the server layer listing, in rank order.
func (m *Map) List(ctx context.Context) ([]LayerSummary, error) {
	body, _, err := m.Transport.Get(ctx, m.ListURL())
	if err != nil {
		return nil, errors.Wrapf(err, "listing layers of map %v", m.Name)
	}
	var summaries []LayerSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, errors.Wrapf(err, "decoding layer listing of map %v", m.Name)
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Rank < summaries[j].Rank })
	return summaries, nil
}

// Load reads the server layer listing and creates the layers it names, in
// rank order. Layers already owned are left alone. Layers displayed on load
// are shown, which loads them.
func (m *Map) Load(ctx context.Context) error {
	summaries, err := m.List(ctx)
	if err != nil {
		return err
	}

	var show []*layer.DataLayer
	for _, s := range summaries {
		if _, err := m.LayerByID(s.ID); err == nil {
			continue
		}
		l := m.NewLayer(layer.Config{
			ID:        s.ID,
			Persisted: true,
			Options: layer.Options{
				Name:          layer.String(s.Name),
				DisplayOnLoad: layer.Bool(s.DisplayOnLoad),
			},
		})
		if s.DisplayOnLoad {
			show = append(show, l)
		}
	}
	for _, l := range show {
		if err := l.Show(ctx); err != nil {
			return err
		}
	}
	log.Infof("map %v: %v layers", m.Name, len(m.Layers()))
	return nil
}

func containsLayer(ls []*layer.DataLayer, l *layer.DataLayer) bool {
	for i := range ls {
		if ls[i] == l {
			return true
		}
	}
	return false
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
