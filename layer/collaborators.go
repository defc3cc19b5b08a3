package layer

import "context"

// Collection owns an ordered set of layers.
type Collection interface {
	Connect(l *DataLayer)
	Disconnect(l *DataLayer)
	// Rank is the position of l among its siblings.
	Rank(l *DataLayer) int
}

// Coordinator aggregates dirty state across layers.
type Coordinator interface {
	// DirtyChanged is called after l became dirty or clean.
	DirtyChanged(l *DataLayer, dirty bool)
	// SaveAll saves every pending layer. It is called once a conflict was
	// resolved by overwriting.
	SaveAll(ctx context.Context) error
}

// Owner is what a DataLayer is handed at construction.
type Owner interface {
	Collection
	Coordinator
}

// Routes builds the server urls of a layer.
type Routes interface {
	DataURL(layerID string) string
	SaveURL(layerID string) string
	DeleteURL(layerID string) string
}

// Renderer is the display side. All methods must return quickly.
type Renderer interface {
	// LayersChanged is called for presentation-only changes.
	LayersChanged()
	// Redraw re-renders the geometries of l after fields changed.
	Redraw(l *DataLayer, fields []string)
	// Rebuild recreates the display layer of l, e.g. after its type changed.
	Rebuild(l *DataLayer)
}

// Notifier surfaces non fatal problems to the user.
type Notifier interface {
	Warn(l *DataLayer, err error)
}

type nopRenderer struct{}

func (nopRenderer) LayersChanged()              {}
func (nopRenderer) Redraw(*DataLayer, []string) {}
func (nopRenderer) Rebuild(*DataLayer)          {}

type nopNotifier struct{}

func (nopNotifier) Warn(*DataLayer, error) {}

type nopOwner struct{}

func (nopOwner) Connect(*DataLayer)            {}
func (nopOwner) Disconnect(*DataLayer)         {}
func (nopOwner) Rank(*DataLayer) int           { return 0 }
func (nopOwner) DirtyChanged(*DataLayer, bool) {}
func (nopOwner) SaveAll(context.Context) error { return nil }
