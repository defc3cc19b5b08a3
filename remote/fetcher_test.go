package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gdey/tbltest"

	"github.com/atlasdatatech/layersync/format"
	_ "github.com/atlasdatatech/layersync/format/geojson"
	"github.com/atlasdatatech/layersync/internal/transporttest"
	"github.com/atlasdatatech/layersync/remote"
	"github.com/atlasdatatech/layersync/transport"
)

func intp(i int) *int { return &i }

func TestDescriptorSkip(t *testing.T) {
	type tcase struct {
		desc       remote.Descriptor
		dataLoaded bool
		visible    bool
		force      bool
		vp         *remote.Viewport
		expected   remote.SkipReason
	}
	static := remote.Descriptor{URL: "http://x/data.json", Format: "geojson"}
	dynamic := remote.Descriptor{URL: "http://x/data.json", Format: "geojson", Dynamic: true, From: intp(5), To: intp(10)}

	tbltest.Cases(
		tcase{desc: remote.Descriptor{URL: "http://x"}, visible: true, expected: remote.SkipNotRemote},
		tcase{desc: static, visible: true, expected: remote.SkipNone},
		tcase{desc: static, visible: false, expected: remote.SkipHidden},
		tcase{desc: static, visible: true, dataLoaded: true, expected: remote.SkipLoaded},
		tcase{desc: static, visible: true, dataLoaded: true, force: true, expected: remote.SkipNone},
		tcase{desc: static, visible: false, dataLoaded: true, force: true, expected: remote.SkipHidden},
		tcase{desc: dynamic, visible: true, dataLoaded: true, expected: remote.SkipNone},
		tcase{desc: dynamic, visible: true, vp: &remote.Viewport{Zoom: 3}, expected: remote.SkipOutOfZooms},
		tcase{desc: dynamic, visible: true, vp: &remote.Viewport{Zoom: 11}, expected: remote.SkipOutOfZooms},
		tcase{desc: dynamic, visible: true, vp: &remote.Viewport{Zoom: 7}, expected: remote.SkipNone},
	).Run(func(idx int, tc tcase) {
		got := tc.desc.Skip(tc.dataLoaded, tc.visible, tc.force, tc.vp)
		if got != tc.expected {
			t.Errorf("[%v] expected %q got %q", idx, tc.expected, got)
		}
	})
}

func TestResolveURL(t *testing.T) {
	vp := &remote.Viewport{Zoom: 12, BBox: [4]float64{1, 2, 3, 4.5}, Center: [2]float64{2, 3.25}}

	tests := map[string]struct {
		fetcher remote.Fetcher
		desc    remote.Descriptor
		vp      *remote.Viewport
		url     string
		err     error
	}{
		"plain": {
			desc: remote.Descriptor{URL: "http://x/d.json", Format: "geojson"},
			url:  "http://x/d.json",
		},
		"template": {
			desc: remote.Descriptor{URL: "http://x/d?bbox={bbox}&z={zoom}&c={lat},{lng}", Format: "geojson"},
			vp:   vp,
			url:  "http://x/d?bbox=1,2,3,4.5&z=12&c=3.25,2",
		},
		"proxy with ttl": {
			fetcher: remote.Fetcher{ProxyURL: "http://srv/ajax-proxy/"},
			desc:    remote.Descriptor{URL: "http://x/d.json?a=1", Format: "geojson", Proxy: true, TTL: 300},
			url:     "http://srv/ajax-proxy/?url=http%3A%2F%2Fx%2Fd.json%3Fa%3D1&ttl=300",
		},
		"proxy without ttl": {
			fetcher: remote.Fetcher{ProxyURL: "http://srv/ajax-proxy/?key=k"},
			desc:    remote.Descriptor{URL: "http://x/d.json", Format: "geojson", Proxy: true},
			url:     "http://srv/ajax-proxy/?key=k&url=http%3A%2F%2Fx%2Fd.json",
		},
		"proxy missing": {
			desc: remote.Descriptor{URL: "http://x/d.json", Format: "geojson", Proxy: true},
			err:  remote.ErrNoProxy,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got, err := tc.fetcher.ResolveURL(&tc.desc, tc.vp)
			if err != tc.err {
				t.Fatalf("error, expected %v got %v", tc.err, err)
			}
			if got != tc.url {
				t.Errorf("url, expected %v got %v", tc.url, got)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	fake := &transporttest.Fake{Handler: func(c transporttest.Call) transporttest.Reply {
		switch c.URL {
		case "http://x/ok.json":
			return transporttest.Reply{Body: []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`)}
		case "http://x/broken.json":
			return transporttest.Reply{Body: []byte(`{"type":`)}
		case "http://x/down.json":
			return transporttest.Reply{Err: errors.New("connection refused")}
		}
		return transporttest.Reply{Status: 404}
	}}
	f := remote.Fetcher{Transport: fake}
	ctx := context.Background()

	c, err := f.Fetch(ctx, &remote.Descriptor{URL: "http://x/ok.json", Format: "geojson"}, nil)
	if err != nil || len(c.Features) != 1 {
		t.Fatalf("ok fetch: %v %v", err, c.Features)
	}

	_, err = f.Fetch(ctx, &remote.Descriptor{URL: "http://x/broken.json", Format: "geojson"}, nil)
	if _, ok := err.(format.ParseError); !ok {
		t.Errorf("broken, expected ParseError got %v", err)
	}

	_, err = f.Fetch(ctx, &remote.Descriptor{URL: "http://x/missing.json", Format: "geojson"}, nil)
	if se, ok := err.(transport.StatusError); !ok || se.StatusCode != 404 {
		t.Errorf("missing, expected 404 StatusError got %v", err)
	}

	_, err = f.Fetch(ctx, &remote.Descriptor{URL: "http://x/down.json", Format: "geojson"}, nil)
	if err == nil {
		t.Errorf("down, expected error")
	}

	_, err = f.Fetch(ctx, &remote.Descriptor{URL: "http://x/ok.json", Format: "shapefile"}, nil)
	if _, ok := err.(format.FormatError); !ok {
		t.Errorf("unknown format, expected FormatError got %v", err)
	}
}

func TestFetchWithoutTransport(t *testing.T) {
	var f remote.Fetcher
	_, err := f.Fetch(context.Background(), &remote.Descriptor{URL: "http://x/ok.json", Format: "geojson"}, nil)
	if err != remote.ErrNoTransport {
		t.Errorf("expected ErrNoTransport got %v", err)
	}
}

func TestTTLDecode(t *testing.T) {
	for raw, want := range map[string]remote.TTL{`"300"`: 300, `3600`: 3600, `""`: 0, `null`: 0} {
		var ttl remote.TTL
		if err := ttl.UnmarshalJSON([]byte(raw)); err != nil {
			t.Errorf("%v: %v", raw, err)
		}
		if ttl != want {
			t.Errorf("%v: expected %v got %v", raw, want, ttl)
		}
	}
}
