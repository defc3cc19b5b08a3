// Package storetest checks the behaviour every store backend must have.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/atlasdatatech/layersync/server/store"
)

func record(mapName, id string, rank int) store.Record {
	return store.Record{
		Map:           mapName,
		ID:            id,
		Name:          "layer " + id,
		DisplayOnLoad: true,
		Rank:          rank,
		Settings:      json.RawMessage(`{"name":"layer ` + id + `"}`),
		GeoJSON:       []byte(`{"type":"FeatureCollection","features":[]}`),
	}
}

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.Get(ctx, "m", "missing"); err != store.ErrNotFound {
			t.Errorf("expected ErrNotFound got %v", err)
		}
	})

	t.Run("conditional put on missing layer", func(t *testing.T) {
		if _, err := s.Put(ctx, record("m", "ghost", 0), "v0"); err != store.ErrVersionMismatch {
			t.Errorf("expected ErrVersionMismatch got %v", err)
		}
	})

	t.Run("versions", func(t *testing.T) {
		v1, err := s.Put(ctx, record("m", "a", 1), "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.Get(ctx, "m", "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != v1 || got.Name != "layer a" || string(got.GeoJSON) != `{"type":"FeatureCollection","features":[]}` {
			t.Errorf("get, got %+v", got)
		}

		v2, err := s.Put(ctx, record("m", "a", 1), v1)
		if err != nil {
			t.Fatalf("conditional put: %v", err)
		}
		if v2 == v1 {
			t.Errorf("each write must get a new version")
		}
		if _, err := s.Put(ctx, record("m", "a", 1), v1); err != store.ErrVersionMismatch {
			t.Errorf("stale put, expected ErrVersionMismatch got %v", err)
		}
		v3, err := s.Put(ctx, record("m", "a", 1), "")
		if err != nil || v3 == v2 {
			t.Errorf("unconditional overwrite: %v %v", v3, err)
		}
	})

	t.Run("one winner", func(t *testing.T) {
		v, err := s.Put(ctx, record("m", "race", 0), "")
		if err != nil {
			t.Fatal(err)
		}
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Put(ctx, record("m", "race", 0), v); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one conditional write to win, got %v", wins)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		if _, err := s.Put(ctx, record("m", "first", -1), ""); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Put(ctx, record("other", "x", 0), ""); err != nil {
			t.Fatal(err)
		}
		recs, err := s.List(ctx, "m")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, r := range recs {
			ids = append(ids, r.ID)
			if len(r.GeoJSON) != 0 {
				t.Errorf("listing must not carry geojson")
			}
		}
		expected := []string{"first", "race", "a"}
		if len(ids) != len(expected) {
			t.Fatalf("list, expected %v got %v", expected, ids)
		}
		for i := range ids {
			if ids[i] != expected[i] {
				t.Errorf("list, expected %v got %v", expected, ids)
				break
			}
		}

		if err := s.Delete(ctx, "m", "first"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "m", "first"); err != store.ErrNotFound {
			t.Errorf("second delete, expected ErrNotFound got %v", err)
		}
		if _, err := s.Get(ctx, "m", "first"); err != store.ErrNotFound {
			t.Errorf("get after delete, expected ErrNotFound got %v", err)
		}
	})
}
