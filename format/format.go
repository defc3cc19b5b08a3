// Package format is the registry of payload parsers used for remote data.
// Parsers register themselves by name from an init function:
//
//	func init() {
//		format.Register(Name, Parser{})
//	}
package format

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/atlasdatatech/layersync/feature"
)

// Parser turns raw text into a feature collection.
type Parser interface {
	Parse(ctx context.Context, raw []byte) (feature.Collection, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, raw []byte) (feature.Collection, error)

// Parse implements Parser.
func (fn ParserFunc) Parse(ctx context.Context, raw []byte) (feature.Collection, error) {
	return fn(ctx, raw)
}

var (
	mu      sync.RWMutex
	parsers = map[string]Parser{}
)

// Register makes a parser available under name. Names are case insensitive.
func Register(name string, p Parser) error {
	key := strings.ToLower(name)
	mu.Lock()
	defer mu.Unlock()
	if _, ok := parsers[key]; ok {
		return ErrAlreadyRegistered(name)
	}
	parsers[key] = p
	return nil
}

// Unregister removes a parser. Mainly used by tests.
func Unregister(name string) {
	mu.Lock()
	delete(parsers, strings.ToLower(name))
	mu.Unlock()
}

// Drivers returns the registered format names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For returns the parser registered under name.
func For(name string) (Parser, error) {
	mu.RLock()
	p, ok := parsers[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, FormatError{Name: name}
	}
	return p, nil
}

// Parse parses raw with the parser registered under name.
func Parse(ctx context.Context, raw []byte, name string) (feature.Collection, error) {
	p, err := For(name)
	if err != nil {
		return feature.Collection{}, err
	}
	c, err := p.Parse(ctx, raw)
	if err != nil {
		if _, ok := err.(ParseError); ok {
			return feature.Collection{}, err
		}
		return feature.Collection{}, ParseError{Format: name, Err: err}
	}
	return c, nil
}

// ErrAlreadyRegistered is returned when a format name is registered twice.
type ErrAlreadyRegistered string

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("format %q already registered", string(e))
}

// FormatError is returned for format names with no registered parser.
type FormatError struct {
	Name string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("unknown format %q", e.Name)
}

// ParseError wraps a parser failure on malformed input.
type ParseError struct {
	Format string
	Err    error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parsing %v: %v", e.Format, e.Err)
}

// Cause returns the underlying parser error.
func (e ParseError) Cause() error { return e.Err }
