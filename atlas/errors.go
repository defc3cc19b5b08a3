package atlas

import (
	"fmt"
	"strings"
)

type ErrMapNotFound struct {
	Name string
}

func (e ErrMapNotFound) Error() string {
	return fmt.Sprintf("atlas: map (%v) not found", e.Name)
}

type ErrLayerNotFound struct {
	Map string
	ID  string
}

func (e ErrLayerNotFound) Error() string {
	return fmt.Sprintf("atlas: layer (%v) not found in map (%v)", e.ID, e.Map)
}

// ErrConflicts is returned by SaveAll when some layers could not be saved
// because their server copy changed. Their retries are in Results.
type ErrConflicts struct {
	Map     string
	Results map[string]Result
}

func (e ErrConflicts) Error() string {
	ids := make([]string, 0, len(e.Results))
	for id := range e.Results {
		ids = append(ids, id)
	}
	return fmt.Sprintf("atlas: map (%v): conflicting layers: %v", e.Map, strings.Join(sortStrings(ids), ", "))
}

// ErrSave collects the layers whose save failed.
type ErrSave struct {
	Map    string
	Errors map[string]error
}

func (e ErrSave) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for id, err := range e.Errors {
		parts = append(parts, fmt.Sprintf("%v: %v", id, err))
	}
	return fmt.Sprintf("atlas: map (%v): %v", e.Map, strings.Join(sortStrings(parts), "; "))
}
