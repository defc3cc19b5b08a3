package server

import (
	"errors"
	"fmt"
)

var errMissing = errors.New("missing")

type ErrMapNotFound string

func (e ErrMapNotFound) Error() string {
	return fmt.Sprintf("map (%v) not found", string(e))
}

type ErrLayerNotFound struct {
	Map string
	ID  string
}

func (e ErrLayerNotFound) Error() string {
	return fmt.Sprintf("layer (%v) not found in map (%v)", e.ID, e.Map)
}

// ErrStale is answered when a save names a version that is not the stored one.
type ErrStale struct {
	Map       string
	ID        string
	Reference string
}

func (e ErrStale) Error() string {
	return fmt.Sprintf("layer (%v) of map (%v) changed since version %q", e.ID, e.Map, e.Reference)
}

type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("bad request: %v", e.Err)
}

type ErrInvalidField struct {
	Field string
	Err   error
}

func (e ErrInvalidField) Error() string {
	return fmt.Sprintf("invalid field %v: %v", e.Field, e.Err)
}
