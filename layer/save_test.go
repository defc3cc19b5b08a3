package layer_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/go-test/deep"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/transporttest"
	"github.com/atlasdatatech/layersync/layer"
	"github.com/atlasdatatech/layersync/transport"
)

func TestSaveNewLayer(t *testing.T) {
	ctx := context.Background()
	o := &owner{}
	versions := []string{"v1", "v2"}
	fake := &transporttest.Fake{Handler: func(c transporttest.Call) transporttest.Reply {
		v := versions[0]
		versions = versions[1:]
		return transporttest.Versioned(v, []byte(`{"id":"l1"}`))
	}}
	l := newLayer(o, fake, layer.Config{ID: "l1", Options: layer.Options{Name: layer.String("Cafés")}})

	if l.IsDirty() {
		t.Fatalf("new layer should start clean")
	}
	if err := l.AddFeature(pointFeature("f1", "one")); err != nil {
		t.Fatalf("add feature: %v", err)
	}
	if !l.IsDirty() {
		t.Fatalf("expected dirty after add")
	}

	res, err := l.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Kind != layer.ResultSaved || res.Version != "v1" {
		t.Errorf("result, expected saved v1 got %v %q", res.Kind, res.Version)
	}
	if l.ReferenceVersion() != "v1" || !l.IsPersisted() || l.IsDirty() {
		t.Errorf("after save: version %q persisted %v dirty %v", l.ReferenceVersion(), l.IsPersisted(), l.IsDirty())
	}
	if got := l.State(); got != layer.StateLoaded {
		t.Errorf("state, expected loaded got %v", got)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one request got %v", len(calls))
	}
	c := calls[0]
	if c.URL != (routes{}).SaveURL("l1") {
		t.Errorf("url, got %v", c.URL)
	}
	if ref := c.Header.Get(transport.HeaderReference); ref != "" {
		t.Errorf("first save must not carry a reference, got %q", ref)
	}
	if c.Form.Get(layer.FieldName) != "Cafés" || c.Form.Get(layer.FieldRank) != "0" || c.Form.Get(layer.FieldDisplayOnLoad) != "true" {
		t.Errorf("form fields, got %+v", c.Form)
	}
	var sent feature.Collection
	if err := sent.UnmarshalJSON([]byte(c.Form.Get(layer.FieldGeoJSON))); err != nil {
		t.Fatalf("geojson field: %v", err)
	}
	if diff := deep.Equal(sent.IDs(), []string{"f1"}); diff != nil {
		t.Errorf("sent ids: %v", diff)
	}
	opts, ok, err := layer.OptionsFromCollection(&sent)
	if err != nil || !ok || opts.GetName() != "Cafés" {
		t.Errorf("sent options, got %+v %v %v", opts, ok, err)
	}
	if !strings.Contains(c.Form.Get(layer.FieldSettings), `"id":"l1"`) {
		t.Errorf("settings should carry the layer id: %v", c.Form.Get(layer.FieldSettings))
	}

	// the next save is conditioned on v1
	if err := l.RemoveFeature("f1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Save(ctx); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if ref := fake.Calls()[1].Header.Get(transport.HeaderReference); ref != "v1" {
		t.Errorf("second save reference, expected v1 got %q", ref)
	}
	if l.ReferenceVersion() != "v2" {
		t.Errorf("expected v2 got %q", l.ReferenceVersion())
	}
	if diff := deep.Equal(o.Events(), []string{"dirty", "clean", "dirty", "clean"}); diff != nil {
		t.Errorf("owner events: %v", diff)
	}
}

func TestSaveAdoptsReturnedFeatures(t *testing.T) {
	stored := payload(`{"name":"Stored"}`, "srv1", "srv2")
	tests := map[string][]byte{
		"collection":      stored,
		"geojson member":  []byte(`{"id":"l1","geojson":` + string(stored) + `}`),
		"geojson as text": []byte(`{"id":"l1","geojson":` + strconv.Quote(string(stored)) + `}`),
	}
	for name, reply := range tests {
		reply := reply
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fake := &transporttest.Fake{Handler: func(transporttest.Call) transporttest.Reply {
				return transporttest.Versioned("v1", reply)
			}}
			l := newLayer(&owner{}, fake, layer.Config{ID: "l1"})
			if err := l.AddFeature(pointFeature("local", "local")); err != nil {
				t.Fatal(err)
			}
			if _, err := l.Save(ctx); err != nil {
				t.Fatalf("save: %v", err)
			}
			want := []string{"srv1", "srv2"}
			if diff := deep.Equal(l.FeatureIDs(), want); diff != nil {
				t.Errorf("after save: %v", diff)
			}
			if l.IsDirty() {
				t.Errorf("adopting the reply must not dirty the layer")
			}

			if err := l.AddFeature(pointFeature("extra", "extra")); err != nil {
				t.Fatal(err)
			}
			if err := l.Reset(ctx); err != nil {
				t.Fatalf("reset: %v", err)
			}
			if diff := deep.Equal(l.FeatureIDs(), want); diff != nil {
				t.Errorf("after reset: %v", diff)
			}
			if got := l.Options().GetName(); got != "Stored" {
				t.Errorf("options, expected Stored got %q", got)
			}
		})
	}
}

func TestSaveCleanIsNoOp(t *testing.T) {
	fake := &transporttest.Fake{}
	l := newLayer(nil, fake, layer.Config{})
	res, err := l.Save(context.Background())
	if err != nil || res.Kind != layer.ResultNoOp {
		t.Fatalf("expected no-op got %v %v", res.Kind, err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("expected no request")
	}
}

func TestSaveConflictThenRetry(t *testing.T) {
	ctx := context.Background()
	o := &owner{}
	fake := &transporttest.Fake{Handler: loadThen(func(c transporttest.Call) transporttest.Reply {
		if c.Header.Get(transport.HeaderReference) == "v1" {
			return transporttest.Reply{Status: http.StatusPreconditionFailed}
		}
		return transporttest.Versioned("v3", nil)
	}, payload(`{"name":"L"}`, "a"), "v1")}
	l := newLayer(o, fake, layer.Config{ID: "l1", ReferenceVersion: "v1"})
	// a persisted layer must be loaded before it can be saved
	if err := l.FetchMetadataAndData(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := l.AddFeature(pointFeature("b", "bee")); err != nil {
		t.Fatal(err)
	}

	res, err := l.Save(ctx)
	if err != nil {
		t.Fatalf("conflict must not be an error, got %v", err)
	}
	if res.Kind != layer.ResultConflict || res.Retry == nil || res.Conflict == nil {
		t.Fatalf("expected conflict with retry, got %+v", res)
	}
	if res.Conflict.Reference != "v1" {
		t.Errorf("conflict reference, got %q", res.Conflict.Reference)
	}
	if !l.IsDirty() || l.State() != layer.StateConflicted {
		t.Errorf("after conflict: dirty %v state %v", l.IsDirty(), l.State())
	}
	if l.ReferenceVersion() != "v1" {
		t.Errorf("version must be untouched by a conflict, got %q", l.ReferenceVersion())
	}

	res, err = res.Retry(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Kind != layer.ResultSaved || res.Version != "v3" {
		t.Errorf("retry result, got %v %q", res.Kind, res.Version)
	}
	if l.IsDirty() || l.ReferenceVersion() != "v3" {
		t.Errorf("after retry: dirty %v version %q", l.IsDirty(), l.ReferenceVersion())
	}
	posts := postCalls(fake)
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts got %v", len(posts))
	}
	if ref := posts[1].Header.Get(transport.HeaderReference); ref != "" {
		t.Errorf("retry must be unconditional, got reference %q", ref)
	}
	if posts[0].Form.Get(layer.FieldGeoJSON) != posts[1].Form.Get(layer.FieldGeoJSON) {
		t.Errorf("retry must resend the same snapshot")
	}
	if o.saveAll != 1 {
		t.Errorf("expected one SaveAll sweep, got %v", o.saveAll)
	}
}

// loadThen answers GETs with body at version, and everything else with next.
func loadThen(next func(transporttest.Call) transporttest.Reply, body []byte, version string) func(transporttest.Call) transporttest.Reply {
	return func(c transporttest.Call) transporttest.Reply {
		if c.Method == http.MethodGet {
			return transporttest.Versioned(version, body)
		}
		return next(c)
	}
}

func postCalls(fake *transporttest.Fake) []transporttest.Call {
	var out []transporttest.Call
	for _, c := range fake.Calls() {
		if c.Method == http.MethodPost {
			out = append(out, c)
		}
	}
	return out
}

func TestSaveTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	n := &notifier{}
	fake := &transporttest.Fake{Handler: func(transporttest.Call) transporttest.Reply {
		return transporttest.Reply{Err: boom}
	}}
	l := newLayer(nil, fake, layer.Config{Notifier: n})
	l.AddFeature(pointFeature("a", "a"))

	res, err := l.Save(context.Background())
	terr, ok := err.(layer.TransportError)
	if !ok {
		t.Fatalf("expected TransportError got %T %v", err, err)
	}
	if terr.Cause() != boom || res.Kind != layer.ResultNoOp {
		t.Errorf("got %v %v", terr.Cause(), res.Kind)
	}
	if l.State() != layer.StateDirty || l.IsPersisted() {
		t.Errorf("after failure: state %v persisted %v", l.State(), l.IsPersisted())
	}
	if n.Len() != 1 {
		t.Errorf("expected the failure to be surfaced once, got %v", n.Len())
	}
}

func TestSaveServerError(t *testing.T) {
	fake := &transporttest.Fake{Handler: func(transporttest.Call) transporttest.Reply {
		return transporttest.Reply{Status: http.StatusInternalServerError}
	}}
	l := newLayer(nil, fake, layer.Config{})
	l.AddFeature(pointFeature("a", "a"))
	_, err := l.Save(context.Background())
	terr, ok := err.(layer.TransportError)
	if !ok {
		t.Fatalf("expected TransportError got %T", err)
	}
	if se, ok := terr.Cause().(transport.StatusError); !ok || se.StatusCode != http.StatusInternalServerError {
		t.Errorf("cause, got %v", terr.Cause())
	}
	if !l.IsDirty() {
		t.Errorf("expected dirty")
	}
}

func TestSaveInFlight(t *testing.T) {
	ctx := context.Background()
	fake := &transporttest.Fake{
		Gate:    make(chan struct{}),
		Handler: func(transporttest.Call) transporttest.Reply { return transporttest.Versioned("v1", nil) },
	}
	l := newLayer(nil, fake, layer.Config{})
	l.AddFeature(pointFeature("a", "a"))

	done := make(chan error)
	go func() {
		_, err := l.Save(ctx)
		done <- err
	}()
	waitCalls(t, fake, 1)

	if _, err := l.Save(ctx); err != layer.ErrSaveInFlight {
		t.Errorf("second save, expected ErrSaveInFlight got %v", err)
	}
	if err := l.MarkDeleted(); err != layer.ErrSaveInFlight {
		t.Errorf("delete during save, expected ErrSaveInFlight got %v", err)
	}
	// edits are allowed while the request is out
	if err := l.AddFeature(pointFeature("b", "b")); err != nil {
		t.Fatalf("add during save: %v", err)
	}

	fake.Gate <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(fake.Calls()) != 1 {
		t.Errorf("expected a single request, got %v", len(fake.Calls()))
	}
	if l.State() != layer.StateDirty {
		t.Errorf("edit made during the save must keep the layer dirty, got %v", l.State())
	}
	if l.ReferenceVersion() != "v1" {
		t.Errorf("expected v1 got %q", l.ReferenceVersion())
	}
}

func TestSaveSkippedBeforeLoad(t *testing.T) {
	fake := &transporttest.Fake{}
	l := newLayer(nil, fake, layer.Config{ReferenceVersion: "v1"})
	if err := l.AddFeature(pointFeature("a", "a")); err != nil {
		t.Fatal(err)
	}
	res, err := l.Save(context.Background())
	if err != nil || res.Kind != layer.ResultNoOp {
		t.Fatalf("expected no-op, got %v %v", res.Kind, err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("unloaded layer must not overwrite the server copy")
	}
}

func TestDeletePersisted(t *testing.T) {
	tests := map[string]struct {
		reply transporttest.Reply
		isErr bool
	}{
		"ok":     {reply: transporttest.Reply{}},
		"failed": {reply: transporttest.Reply{Status: http.StatusInternalServerError}, isErr: true},
	}
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			o := &owner{}
			fake := &transporttest.Fake{Handler: func(transporttest.Call) transporttest.Reply { return tc.reply }}
			l := newLayer(o, fake, layer.Config{ID: "gone", ReferenceVersion: "v1"})

			if err := l.MarkDeleted(); err != nil {
				t.Fatal(err)
			}
			if !l.IsDirty() || !l.IsDeleted() {
				t.Fatalf("pending delete must be dirty")
			}
			res, err := l.Save(context.Background())
			if tc.isErr != (err != nil) {
				t.Fatalf("error, expected %v got %v", tc.isErr, err)
			}
			if res.Kind != layer.ResultDeleted {
				t.Errorf("expected deleted got %v", res.Kind)
			}
			calls := fake.Calls()
			if len(calls) != 1 || calls[0].URL != (routes{}).DeleteURL("gone") {
				t.Errorf("expected exactly one delete request, got %+v", calls)
			}
			if l.State() != layer.StateRemoved || l.IsDirty() {
				t.Errorf("state, got %v", l.State())
			}
			if diff := deep.Equal(o.disconnected, []string{"gone"}); diff != nil {
				t.Errorf("disconnected: %v", diff)
			}
			if _, err := l.Save(context.Background()); err != layer.ErrRemoved {
				t.Errorf("save after removal, expected ErrRemoved got %v", err)
			}
		})
	}
}

func TestDeleteNeverPersisted(t *testing.T) {
	o := &owner{}
	fake := &transporttest.Fake{}
	l := newLayer(o, fake, layer.Config{})
	l.AddFeature(pointFeature("a", "a"))
	l.MarkDeleted()

	res, err := l.Save(context.Background())
	if err != nil || res.Kind != layer.ResultDeleted {
		t.Fatalf("got %v %v", res.Kind, err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("a layer never created must not hit the server")
	}
	if len(o.disconnected) != 1 || l.State() != layer.StateRemoved {
		t.Errorf("expected removal, got %v", l.State())
	}
	if diff := deep.Equal(o.Events(), []string{"dirty", "clean"}); diff != nil {
		t.Errorf("events: %v", diff)
	}
}

func TestSaveRemoteLayerSendsNoFeatures(t *testing.T) {
	fake := &transporttest.Fake{Handler: func(transporttest.Call) transporttest.Reply { return transporttest.Versioned("v1", nil) }}
	l := newLayer(nil, fake, layer.Config{})
	if err := l.MergeOptions(context.Background(), remoteOptions("http://example.com/data.json", false)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	var sent feature.Collection
	if err := sent.UnmarshalJSON([]byte(postCalls(fake)[0].Form.Get(layer.FieldGeoJSON))); err != nil {
		t.Fatal(err)
	}
	if len(sent.Features) != 0 {
		t.Errorf("expected no features, got %v", len(sent.Features))
	}
}
