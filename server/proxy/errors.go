package proxy

import "fmt"

type ErrInvalidURL string

func (e ErrInvalidURL) Error() string {
	return fmt.Sprintf("proxy: invalid url %q", string(e))
}

type ErrInvalidTTL string

func (e ErrInvalidTTL) Error() string {
	return fmt.Sprintf("proxy: invalid ttl %q", string(e))
}
