package register

import "fmt"

type ErrMapServerMissing struct {
	Map string
}

func (e ErrMapServerMissing) Error() string {
	return fmt.Sprintf("register: map (%v) has no server and no default server is set", e.Map)
}

type ErrLayerOptionsInvalid struct {
	Map string
	ID  string
	Err error
}

func (e ErrLayerOptionsInvalid) Error() string {
	return fmt.Sprintf("register: layer (%v) of map (%v): %v", e.ID, e.Map, e.Err)
}

type ErrLayerAlreadyExists struct {
	Map string
	ID  string
}

func (e ErrLayerAlreadyExists) Error() string {
	return fmt.Sprintf("register: layer (%v) already exists in map (%v)", e.ID, e.Map)
}

type ErrUnknownCache string

func (e ErrUnknownCache) Error() string {
	return fmt.Sprintf("register: unknown proxy cache %q", string(e))
}
