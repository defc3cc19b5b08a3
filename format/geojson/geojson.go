// Package geojson registers the "geojson" format.
package geojson

import (
	"context"
	"encoding/json"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
)

const Name = "geojson"

func init() {
	format.Register(Name, Parser{})
}

// Parser decodes GeoJSON documents.
type Parser struct{}

// Parse implements format.Parser.
func (Parser) Parse(_ context.Context, raw []byte) (feature.Collection, error) {
	var c feature.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return feature.Collection{}, format.ParseError{Format: Name, Err: err}
	}
	return c, nil
}
