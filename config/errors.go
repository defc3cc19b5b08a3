package config

import "fmt"

type ErrEnvVarNotFound struct {
	VarName string
}

func (e ErrEnvVarNotFound) Error() string {
	return fmt.Sprintf("config: environment variable %q not found", e.VarName)
}

// ErrMissingValue reports a required key. Index is the 1-based position
// of the table in an array, or 0.
type ErrMissingValue struct {
	Key   string
	Map   string
	Index int
}

func (e ErrMissingValue) Error() string {
	switch {
	case e.Map != "":
		return fmt.Sprintf("config: %v is required (map %v)", e.Key, e.Map)
	case e.Index > 0:
		return fmt.Sprintf("config: %v is required (entry %v)", e.Key, e.Index)
	}
	return fmt.Sprintf("config: %v is required", e.Key)
}

type ErrInvalidValue struct {
	Key   string
	Value interface{}
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("config: invalid value for %v: %v", e.Key, e.Value)
}

type ErrDuplicateMap struct {
	Name string
}

func (e ErrDuplicateMap) Error() string {
	return fmt.Sprintf("config: map %q declared twice", e.Name)
}

type ErrDuplicateLayer struct {
	Map string
	ID  string
}

func (e ErrDuplicateLayer) Error() string {
	return fmt.Sprintf("config: layer %q declared twice in map %q", e.ID, e.Map)
}
