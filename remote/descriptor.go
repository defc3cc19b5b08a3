// Package remote keeps a remote-mirror layer's features in step with an
// external resource.
package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Descriptor marks a layer as mirroring an external resource.
type Descriptor struct {
	URL    string `json:"url,omitempty"`
	Format string `json:"format,omitempty"`
	// Dynamic sources are re-fetched whenever asked; static ones only once.
	Dynamic bool `json:"dynamic,omitempty"`
	// Proxy routes the request through the server's caching proxy.
	Proxy bool `json:"proxy,omitempty"`
	// TTL is the proxy cache lifetime, in seconds.
	TTL TTL `json:"ttl,omitempty"`
	// From and To bound the zoom levels the data is fetched at.
	From *int `json:"from,omitempty"`
	To   *int `json:"to,omitempty"`
}

// Valid reports whether the descriptor names both a url and a format.
func (d *Descriptor) Valid() bool {
	return d != nil && strings.TrimSpace(d.URL) != "" && strings.TrimSpace(d.Format) != ""
}

// Clone returns a copy that shares nothing with d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d
	if d.From != nil {
		v := *d.From
		out.From = &v
	}
	if d.To != nil {
		v := *d.To
		out.To = &v
	}
	return &out
}

// TTL is a number of seconds. It decodes from a JSON number or a numeric
// string; the empty string means no TTL.
type TTL int

// UnmarshalJSON implements json.Unmarshaler.
func (t *TTL) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*t = 0
	case float64:
		*t = TTL(v)
	case string:
		if v == "" {
			*t = 0
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ttl %q", v)
		}
		*t = TTL(n)
	default:
		return fmt.Errorf("invalid ttl %v", v)
	}
	return nil
}

// SkipReason explains why a fetch was not issued. The empty reason means the
// fetch should go ahead.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipNotRemote  SkipReason = "not a remote layer"
	SkipLoaded     SkipReason = "static data already loaded"
	SkipHidden     SkipReason = "layer hidden"
	SkipOutOfZooms SkipReason = "outside remote data zoom range"
)

// Skip decides whether a fetch for the descriptor should be skipped. vp may
// be nil when no viewport is known.
func (d *Descriptor) Skip(dataLoaded, visible, force bool, vp *Viewport) SkipReason {
	switch {
	case !d.Valid():
		return SkipNotRemote
	case dataLoaded && !force && !d.Dynamic:
		return SkipLoaded
	case !visible:
		return SkipHidden
	}
	if vp != nil {
		if d.From != nil && vp.Zoom < *d.From {
			return SkipOutOfZooms
		}
		if d.To != nil && vp.Zoom > *d.To {
			return SkipOutOfZooms
		}
	}
	return SkipNone
}
