// Package layer implements DataLayer, a named collection of features kept in
// step with a server copy under optimistic concurrency.
//
// A DataLayer is handed its Owner at construction and reports dirty/clean
// transitions to it. Network calls never run with the layer lock held; load,
// remote fetch and save each have their own in-flight guard so two calls of
// the same kind never overlap on one layer.
package layer

import (
	"fmt"
	"sync"

	"github.com/pborman/uuid"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/remote"
	"github.com/atlasdatatech/layersync/transport"
)

// Config holds the collaborators and initial state of a DataLayer.
type Config struct {
	// ID is generated when empty.
	ID      string
	Options Options
	// ReferenceVersion is the server version the layer was last read at.
	ReferenceVersion string
	// Persisted marks a layer known to exist on the server. It is implied by
	// a non empty ReferenceVersion.
	Persisted bool

	Routes    Routes
	Transport transport.Transport
	// Fetcher defaults to a fetcher over Transport with no proxy.
	Fetcher  *remote.Fetcher
	Renderer Renderer
	Notifier Notifier
	// Locale drives the natural sort of features.
	Locale string
}

// DataLayer is one layer of features with its options, version token and
// lifecycle state.
type DataLayer struct {
	id        string
	owner     Owner
	routes    Routes
	transport transport.Transport
	fetcher   *remote.Fetcher
	renderer  Renderer
	notifier  Notifier
	locale    string

	mu               sync.Mutex
	options          Options
	referenceVersion string
	persisted        bool
	features         *feature.Index
	state            State
	viewport         *remote.Viewport

	loaded     bool
	dataLoaded bool
	visible    bool
	// visible before a pending delete hid the layer
	visibleBeforeDelete bool

	// in-flight guards
	loading  bool
	fetching bool
	saving   bool

	// gen counts mutations so a save can tell if it raced one.
	gen uint64

	backupOptions  Options
	backupFeatures []*feature.Feature
}

// New creates a layer and connects it to owner. A nil owner is allowed for
// standalone use.
func New(owner Owner, cfg Config) *DataLayer {
	if owner == nil {
		owner = nopOwner{}
	}
	l := &DataLayer{
		id:               cfg.ID,
		owner:            owner,
		routes:           cfg.Routes,
		transport:        cfg.Transport,
		fetcher:          cfg.Fetcher,
		renderer:         cfg.Renderer,
		notifier:         cfg.Notifier,
		locale:           cfg.Locale,
		options:          cfg.Options.Clone(),
		referenceVersion: cfg.ReferenceVersion,
		persisted:        cfg.Persisted || cfg.ReferenceVersion != "",
		features:         feature.NewIndex(),
		state:            StateLocal,
	}
	if l.id == "" {
		l.id = uuid.New()
	}
	if l.fetcher == nil {
		l.fetcher = &remote.Fetcher{Transport: cfg.Transport}
	}
	if l.renderer == nil {
		l.renderer = nopRenderer{}
	}
	if l.notifier == nil {
		l.notifier = nopNotifier{}
	}
	if !l.persisted {
		// nothing on the server to load
		l.loaded = true
		l.dataLoaded = !l.options.IsRemote()
	}
	l.backupOptions = l.options.Clone()
	owner.Connect(l)
	return l
}

func (l *DataLayer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("layer %v (%q, %v)", l.id, l.options.GetName(), l.state)
}

// ID is the stable identifier of the layer.
func (l *DataLayer) ID() string { return l.id }

// Name is the layer name option.
func (l *DataLayer) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.options.GetName()
}

// State returns the lifecycle state.
func (l *DataLayer) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsDirty reports unsaved changes, including a pending delete.
func (l *DataLayer) IsDirty() bool { return l.State().Dirty() }

// IsDeleted reports a pending delete.
func (l *DataLayer) IsDeleted() bool { return l.State() == StatePendingDelete }

// IsLoaded reports whether the layer metadata is known.
func (l *DataLayer) IsLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// HasDataLoaded reports whether features were materialized at least once.
func (l *DataLayer) HasDataLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dataLoaded
}

// IsVisible is the display state.
func (l *DataLayer) IsVisible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

// IsRemote reports a remote-mirror layer.
func (l *DataLayer) IsRemote() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.options.IsRemote()
}

// IsPersisted reports whether the layer exists on the server.
func (l *DataLayer) IsPersisted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persisted
}

// ReferenceVersion is the last server version observed, or "".
func (l *DataLayer) ReferenceVersion() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.referenceVersion
}

// Options returns a copy of the layer options.
func (l *DataLayer) Options() Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.options.Clone()
}

// apply runs one or more transitions in order. The caller holds l.mu and
// must call the returned func once it released it. The owner only hears
// about the net dirty change.
func (l *DataLayer) apply(events ...Event) (func(), error) {
	before := l.state
	var err error
	for _, e := range events {
		next, terr := l.state.Next(e, l.persisted)
		if terr != nil {
			err = terr
			break
		}
		log.Debugf("layer %v: %v -> %v (%v)", l.id, l.state, next, e)
		l.state = next
	}
	if before.Dirty() == l.state.Dirty() {
		return func() {}, err
	}
	dirty, owner := l.state.Dirty(), l.owner
	return func() { owner.DirtyChanged(l, dirty) }, err
}

// mutate runs fn under the lock and marks the layer dirty if fn succeeds.
func (l *DataLayer) mutate(fn func() error) error {
	l.mu.Lock()
	if l.state == StateRemoved {
		l.mu.Unlock()
		return ErrRemoved
	}
	if err := fn(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.gen++
	notify, err := l.apply(EventMutated)
	l.mu.Unlock()
	notify()
	return err
}

// replaceFeaturesLocked swaps the feature set for the materialized payload.
func (l *DataLayer) replaceFeaturesLocked(c feature.Collection) []feature.UnknownGeometryError {
	features, skipped := feature.Materialize(c)
	l.features.Clear()
	for _, f := range features {
		if err := l.features.Add(f); err != nil {
			log.Warnf("layer %v: %v", l.id, err)
		}
	}
	l.features.Reindex(l.options.GetSortKey(), l.locale)
	l.dataLoaded = true
	return skipped
}

func (l *DataLayer) warnSkipped(skipped []feature.UnknownGeometryError) {
	for _, err := range skipped {
		log.Warnf("layer %v: skipping %v", l.id, err)
		l.notifier.Warn(l, err)
	}
}

func (l *DataLayer) backupLocked(opts Options, features []*feature.Feature) {
	l.backupOptions = opts.Clone()
	l.backupFeatures = cloneFeatures(features)
}

// Snapshot captures options and features.
func (l *DataLayer) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// snapshotLocked captures the layer. Remote layers carry no features: the
// server only keeps their options.
func (l *DataLayer) snapshotLocked() Snapshot {
	s := Snapshot{
		LayerID: l.id,
		Options: l.options.Clone(),
	}
	if !l.options.IsRemote() {
		s.Features = cloneFeatures(l.features.Features())
	}
	return s
}

// Export returns the features with the options envelope attached. Unlike a
// save snapshot it includes the features of remote layers.
func (l *DataLayer) Export() (feature.Collection, error) {
	l.mu.Lock()
	s := Snapshot{
		LayerID:  l.id,
		Options:  l.options.Clone(),
		Features: cloneFeatures(l.features.Features()),
	}
	l.mu.Unlock()
	return s.Collection()
}
