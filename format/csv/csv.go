// Package csv registers the "csv" format: one point feature per row, located
// by a latitude and a longitude column.
package csv

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/internal/log"
)

const Name = "csv"

var (
	latColumns = []string{"lat", "latitude", "y"}
	lonColumns = []string{"lon", "lng", "long", "longitude", "x"}
)

func init() {
	format.Register(Name, Parser{})
}

// Parser reads delimited text. The delimiter is sniffed from the header line
// among ',', ';' and tab.
type Parser struct{}

// ErrMissingColumn is returned when no coordinate column could be found.
type ErrMissingColumn struct {
	Candidates []string
}

func (e ErrMissingColumn) Error() string {
	return fmt.Sprintf("no coordinate column, expected one of %v", strings.Join(e.Candidates, ", "))
}

// Parse implements format.Parser.
func (Parser) Parse(ctx context.Context, raw []byte) (feature.Collection, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	r := stdcsv.NewReader(bytes.NewReader(raw))
	r.Comma = sniffDelimiter(raw)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return feature.Collection{}, format.ParseError{Format: Name, Err: err}
	}
	latIdx := findColumn(header, latColumns)
	if latIdx < 0 {
		return feature.Collection{}, format.ParseError{Format: Name, Err: ErrMissingColumn{latColumns}}
	}
	lonIdx := findColumn(header, lonColumns)
	if lonIdx < 0 {
		return feature.Collection{}, format.ParseError{Format: Name, Err: ErrMissingColumn{lonColumns}}
	}

	var c feature.Collection
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return feature.Collection{}, ctx.Err()
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return feature.Collection{}, format.ParseError{Format: Name, Err: err}
		}
		if len(rec) <= latIdx || len(rec) <= lonIdx {
			log.Warnf("csv: line %v: too few fields, skipping", line)
			continue
		}
		lat, err := parseCoord(rec[latIdx])
		if err != nil {
			log.Warnf("csv: line %v: invalid latitude %q, skipping", line, rec[latIdx])
			continue
		}
		lon, err := parseCoord(rec[lonIdx])
		if err != nil {
			log.Warnf("csv: line %v: invalid longitude %q, skipping", line, rec[lonIdx])
			continue
		}

		props := make(map[string]interface{}, len(header))
		for i, name := range header {
			if i == latIdx || i == lonIdx || i >= len(rec) {
				continue
			}
			props[name] = rec[i]
		}
		c.Features = append(c.Features, feature.Feature{
			Geometry:   geom.Point{lon, lat},
			Properties: props,
		})
	}
	return c, nil
}

func sniffDelimiter(raw []byte) rune {
	first := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		first = raw[:i]
	}
	best, count := ',', bytes.Count(first, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(d))); n > count {
			best, count = d, n
		}
	}
	return best
}

func findColumn(header []string, candidates []string) int {
	for _, c := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				return i
			}
		}
	}
	return -1
}

// parseCoord accepts both '.' and ',' as decimal separator.
func parseCoord(s string) (float64, error) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	return strconv.ParseFloat(s, 64)
}
