package layer

import (
	"errors"
	"fmt"
)

var (
	// ErrSaveInFlight is returned when a save or delete is started while
	// another one is pending on the same layer.
	ErrSaveInFlight = errors.New("layer: save already in flight")
	// ErrRemoteLayer is returned for feature edits on a remote-mirror layer.
	ErrRemoteLayer = errors.New("layer: remote layers can not be edited")
	// ErrRemoved is returned by operations on a layer that left its owner.
	ErrRemoved = errors.New("layer: removed")
	// ErrNoRoutes is returned when a server operation is attempted on a
	// layer built without Routes or Transport.
	ErrNoRoutes = errors.New("layer: no routes or transport configured")
)

// ConflictError reports a save rejected because the server copy changed
// since Reference was read.
type ConflictError struct {
	LayerID   string
	Reference string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("layer (%v): server copy changed since version %q", e.LayerID, e.Reference)
}

// TransportError wraps a network or server failure. It is surfaced to the
// user and never retried automatically.
type TransportError struct {
	LayerID string
	Op      string
	Err     error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("layer (%v): %v: %v", e.LayerID, e.Op, e.Err)
}

// Cause returns the underlying error.
func (e TransportError) Cause() error { return e.Err }

// Unwrap returns the underlying error.
func (e TransportError) Unwrap() error { return e.Err }
