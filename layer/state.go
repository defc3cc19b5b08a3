package layer

import "fmt"

// State is the lifecycle state of a DataLayer.
type State int

const (
	// StateLocal is a layer that only exists in memory and has no unsaved
	// changes (a fresh or reset new layer).
	StateLocal State = iota
	// StateLoaded is in step with the last known server snapshot.
	StateLoaded
	StateDirty
	StateSaving
	// StateConflicted is a save rejected because the server copy changed.
	StateConflicted
	// StatePendingDelete is waiting for a save to issue the tombstone.
	StatePendingDelete
	// StateRemoved is terminal: the layer left its owner.
	StateRemoved
)

var stateNames = [...]string{"local", "loaded", "dirty", "saving", "conflicted", "pending-delete", "removed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Dirty reports whether the layer has changes not yet on the server.
func (s State) Dirty() bool {
	switch s {
	case StateDirty, StateSaving, StateConflicted, StatePendingDelete:
		return true
	}
	return false
}

// Event drives state transitions.
type Event int

const (
	EventLoaded Event = iota
	EventMutated
	EventSaveStarted
	EventSaved
	EventConflict
	EventSaveFailed
	EventDeleted
	EventReset
	EventRemoved
)

var eventNames = [...]string{"loaded", "mutated", "save-started", "saved", "conflict", "save-failed", "deleted", "reset", "removed"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// ErrInvalidTransition is returned for an event the current state does not accept.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("layer: invalid transition from %v on %v", e.From, e.Event)
}

// Next returns the state reached from s on e. persisted tells whether the
// layer exists on the server, which decides where a reset lands.
func (s State) Next(e Event, persisted bool) (State, error) {
	clean := StateLocal
	if persisted {
		clean = StateLoaded
	}

	switch s {
	case StateLocal, StateLoaded:
		switch e {
		case EventLoaded:
			return StateLoaded, nil
		case EventMutated:
			return StateDirty, nil
		case EventSaveStarted:
			return StateSaving, nil
		case EventDeleted:
			return StatePendingDelete, nil
		case EventReset:
			return clean, nil
		}
	case StateDirty:
		switch e {
		case EventLoaded:
			return StateLoaded, nil
		case EventMutated:
			return StateDirty, nil
		case EventSaveStarted:
			return StateSaving, nil
		case EventDeleted:
			return StatePendingDelete, nil
		case EventReset:
			return clean, nil
		}
	case StateSaving:
		switch e {
		case EventMutated:
			return StateSaving, nil
		case EventSaved:
			return StateLoaded, nil
		case EventConflict:
			return StateConflicted, nil
		case EventSaveFailed:
			return StateDirty, nil
		}
	case StateConflicted:
		switch e {
		case EventLoaded:
			return StateLoaded, nil
		case EventMutated:
			return StateConflicted, nil
		case EventSaveStarted:
			return StateSaving, nil
		case EventDeleted:
			return StatePendingDelete, nil
		case EventReset:
			return clean, nil
		}
	case StatePendingDelete:
		switch e {
		case EventMutated:
			return StatePendingDelete, nil
		case EventReset:
			return clean, nil
		case EventRemoved:
			return StateRemoved, nil
		}
	}
	return s, ErrInvalidTransition{From: s, Event: e}
}
