package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/atlasdatatech/layersync/config"
)

func TestLoad(t *testing.T) {
	os.Setenv("LAYERSYNC_TEST_PGURI", "postgres://u:p@db/layers")
	defer os.Unsetenv("LAYERSYNC_TEST_PGURI")

	const doc = `
[webserver]
port = ":9090"
cors_allowed_origin = "*"

[store]
type = "postgres"
uri = "${LAYERSYNC_TEST_PGURI}"
max_connections = 4

[proxy]
cache = "redis"
redis_address = "cache:6379"
max_ttl = "1h"

[[maps]]
name = "city"
server = "https://maps.example.com"
locale = "fr"

  [[maps.layers]]
  id = "trees"
  name = "Trees"
  display_on_load = false
  sort_key = "species"
  color = "DarkGreen"

  [[maps.layers]]
  id = "stations"
  name = "Stations"
  remote_data = { url = "https://data.example.com/stations.csv", format = "csv", proxy = true, ttl = 600 }
`
	conf, err := config.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}

	if conf.Webserver.Port != ":9090" || conf.Webserver.CORSAllowedOrigin != "*" {
		t.Errorf("webserver: %+v", conf.Webserver)
	}
	if conf.StoreType() != "postgres" || conf.Store["uri"] != "postgres://u:p@db/layers" {
		t.Errorf("store: %v", conf.Store)
	}
	if conf.Proxy.MaxTTL.Duration != time.Hour || conf.Proxy.MaxEntries != config.DefaultProxyEntries {
		t.Errorf("proxy: %+v", conf.Proxy)
	}
	if len(conf.Maps) != 1 || len(conf.Maps[0].Layers) != 2 {
		t.Fatalf("maps: %+v", conf.Maps)
	}
	trees := conf.Maps[0].Layers[0]
	if trees.DisplayOnLoad == nil || *trees.DisplayOnLoad {
		t.Errorf("trees display_on_load, got %v", trees.DisplayOnLoad)
	}
	rd := conf.Maps[0].Layers[1].RemoteData
	if rd == nil {
		t.Fatalf("stations: missing remote_data")
	}
	if diff := deep.Equal([]interface{}{rd.URL, rd.Format, rd.Proxy, int(rd.TTL)}, []interface{}{"https://data.example.com/stations.csv", "csv", true, 600}); diff != nil {
		t.Errorf("remote_data: %v", diff)
	}
}

func TestLoadDefaults(t *testing.T) {
	conf, err := config.Load(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if conf.Webserver.Port != config.DefaultPort || conf.StoreType() != config.DefaultStore || conf.Proxy.Cache != config.DefaultProxyCache {
		t.Errorf("defaults: %+v", conf)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		doc string
		err error
	}{
		"missing env": {
			doc: `[store]
type = "${LAYERSYNC_TEST_UNSET_VAR}"`,
			err: config.ErrEnvVarNotFound{VarName: "LAYERSYNC_TEST_UNSET_VAR"},
		},
		"bad cache": {
			doc: `[proxy]
cache = "disk"`,
			err: config.ErrInvalidValue{Key: "proxy.cache", Value: "disk"},
		},
		"redis without address": {
			doc: `[proxy]
cache = "redis"`,
			err: config.ErrMissingValue{Key: "proxy.redis_address"},
		},
		"unnamed map": {
			doc: `[[maps]]
server = "http://x"`,
			err: config.ErrMissingValue{Key: "maps.name", Index: 1},
		},
		"duplicate map": {
			doc: `[[maps]]
name = "a"
[[maps]]
name = "a"`,
			err: config.ErrDuplicateMap{Name: "a"},
		},
		"duplicate layer": {
			doc: `[[maps]]
name = "a"
  [[maps.layers]]
  id = "l"
  [[maps.layers]]
  id = "l"`,
			err: config.ErrDuplicateLayer{Map: "a", ID: "l"},
		},
		"layer without id": {
			doc: `[[maps]]
name = "a"
  [[maps.layers]]
  name = "l"`,
			err: config.ErrMissingValue{Key: "maps.layers.id", Map: "a"},
		},
		"remote data without format": {
			doc: `[[maps]]
name = "a"
  [[maps.layers]]
  id = "l"
  remote_data = { url = "http://x/d.json" }`,
			err: config.ErrInvalidValue{Key: "maps.layers.remote_data", Value: "l"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(strings.NewReader(tc.doc))
			if err != tc.err {
				t.Errorf("expected %v got %v", tc.err, err)
			}
		})
	}
}
