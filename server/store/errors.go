package store

import (
	"fmt"
	"strings"
)

type ErrDriverAlreadyRegistered string

func (e ErrDriverAlreadyRegistered) Error() string {
	return fmt.Sprintf("store: driver %v already registered", string(e))
}

type ErrUnknownDriver struct {
	Name  string
	Known []string
}

func (e ErrUnknownDriver) Error() string {
	return fmt.Sprintf("store: unknown driver %q (known: %v)", e.Name, strings.Join(e.Known, ", "))
}

type ErrKeyRequired string

func (e ErrKeyRequired) Error() string {
	return fmt.Sprintf("store: config key %v is required", string(e))
}

type ErrKeyType struct {
	Key      string
	Value    interface{}
	Expected string
}

func (e ErrKeyType) Error() string {
	return fmt.Sprintf("store: config key %v: expected %v, got %T", e.Key, e.Expected, e.Value)
}
