package feature

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNilFeature is returned when a nil feature is added.
var ErrNilFeature = errors.New("feature: nil feature")

// IndexError is returned when a positional lookup falls outside the index.
type IndexError struct {
	Index int
	Len   int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("feature index %v out of range [0,%v)", e.Index, e.Len)
}

// NotFoundError is returned when a feature id is not part of the index.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("feature (%v) not found", e.ID)
}

// DuplicateError is returned when adding a feature whose id is already indexed.
type DuplicateError struct {
	ID string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("feature (%v) already indexed", e.ID)
}

// UnknownGeometryError reports an element of a payload whose geometry kind is
// not one of the supported feature variants. Materialization skips such elements.
type UnknownGeometryError struct {
	// Position of the element in the payload.
	Position int
	// FeatureID may be empty if the element carried no id.
	FeatureID string
	Type      string
	// Err is the decoding error of a malformed geometry.
	Err error
}

func (e UnknownGeometryError) Error() string {
	what := fmt.Sprintf("unknown geometry type %q", e.Type)
	if e.Err != nil {
		what = fmt.Sprintf("malformed %v geometry: %v", e.Type, e.Err)
	}
	if e.FeatureID != "" {
		return fmt.Sprintf("feature #%v (%v): %v", e.Position, e.FeatureID, what)
	}
	return fmt.Sprintf("feature #%v: %v", e.Position, what)
}
