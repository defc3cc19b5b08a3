package layer_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-spatial/geom"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/transporttest"
	"github.com/atlasdatatech/layersync/layer"
)

type routes struct{}

func (routes) DataURL(id string) string   { return "/datalayer/" + id + "/" }
func (routes) SaveURL(id string) string   { return "/datalayer/" + id + "/save/" }
func (routes) DeleteURL(id string) string { return "/datalayer/" + id + "/delete/" }

// owner records what layers report.
type owner struct {
	mu           sync.Mutex
	layers       []*layer.DataLayer
	events       []string
	disconnected []string
	saveAll      int
}

func (o *owner) Connect(l *layer.DataLayer) {
	o.mu.Lock()
	o.layers = append(o.layers, l)
	o.mu.Unlock()
}

func (o *owner) Disconnect(l *layer.DataLayer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnected = append(o.disconnected, l.ID())
	for i := range o.layers {
		if o.layers[i] == l {
			o.layers = append(o.layers[:i], o.layers[i+1:]...)
			return
		}
	}
}

func (o *owner) Rank(l *layer.DataLayer) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.layers {
		if o.layers[i] == l {
			return i
		}
	}
	return -1
}

func (o *owner) DirtyChanged(l *layer.DataLayer, dirty bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dirty {
		o.events = append(o.events, "dirty")
	} else {
		o.events = append(o.events, "clean")
	}
}

func (o *owner) SaveAll(ctx context.Context) error {
	o.mu.Lock()
	o.saveAll++
	o.mu.Unlock()
	return nil
}

func (o *owner) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

type notifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *notifier) Warn(l *layer.DataLayer, err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func (n *notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

type renderer struct {
	mu                        sync.Mutex
	changed, redraw, rebuilds int
}

func (r *renderer) LayersChanged() { r.mu.Lock(); r.changed++; r.mu.Unlock() }
func (r *renderer) Redraw(*layer.DataLayer, []string) {
	r.mu.Lock()
	r.redraw++
	r.mu.Unlock()
}
func (r *renderer) Rebuild(*layer.DataLayer) { r.mu.Lock(); r.rebuilds++; r.mu.Unlock() }

func newLayer(o layer.Owner, fake *transporttest.Fake, cfg layer.Config) *layer.DataLayer {
	cfg.Routes = routes{}
	cfg.Transport = fake
	return layer.New(o, cfg)
}

func pointFeature(id, name string) *feature.Feature {
	return &feature.Feature{
		ID:         id,
		Geometry:   geom.Point{1, 2},
		Properties: map[string]interface{}{"name": name},
	}
}

func payload(options string, ids ...string) []byte {
	s := `{"type":"FeatureCollection","features":[`
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(`{"type":"Feature","id":%q,"geometry":{"type":"Point","coordinates":[%d,1]},"properties":{"name":%q}}`, id, i, "name "+id)
	}
	s += `]`
	if options != "" {
		s += `,"_umap_options":` + options
	}
	return []byte(s + `}`)
}

// waitCalls waits until fake saw n requests.
func waitCalls(t *testing.T, fake *transporttest.Fake, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(fake.Calls()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %v calls, got %v", n, len(fake.Calls()))
		}
		time.Sleep(time.Millisecond)
	}
}
