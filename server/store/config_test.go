package store_test

import (
	"testing"

	"github.com/atlasdatatech/layersync/server/store"
)

func TestConfig(t *testing.T) {
	cfg := store.Config{"path": "x.db", "port": int64(5432), "ssl": true, "bad": 3}
	def := "fallback"
	defPort := 1

	if s, err := cfg.String("path", nil); err != nil || s != "x.db" {
		t.Errorf("path, got %v %v", s, err)
	}
	if s, err := cfg.String("missing", &def); err != nil || s != "fallback" {
		t.Errorf("default, got %v %v", s, err)
	}
	if _, err := cfg.String("missing", nil); err != store.ErrKeyRequired("missing") {
		t.Errorf("required, got %v", err)
	}
	if _, err := cfg.String("bad", nil); err == nil {
		t.Errorf("expected a type error")
	}
	if n, err := cfg.Int("port", &defPort); err != nil || n != 5432 {
		t.Errorf("port, got %v %v", n, err)
	}
	if b, err := cfg.Bool("ssl", nil); err != nil || !b {
		t.Errorf("ssl, got %v %v", b, err)
	}
	if _, err := store.For("no-such-driver", cfg); err == nil {
		t.Errorf("expected unknown driver error")
	}
}
