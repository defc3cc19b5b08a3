// Package transport defines the request/response contract used to talk to the
// layer server and to remote data sources.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

const (
	// HeaderReference carries the version a save is conditioned on.
	HeaderReference = "X-Datalayer-Reference"
	// HeaderVersion carries the version of the layer returned by the server.
	HeaderVersion = "X-Datalayer-Version"
)

// Response is the part of a server response the sync engine looks at.
type Response struct {
	StatusCode int
	Header     http.Header
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Version returns the version token carried by the response, if any.
func (r *Response) Version() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(HeaderVersion)
}

// Field is one multipart form field.
type Field struct {
	Name  string
	Value string
	// Filename, when set, sends the field as a file part.
	Filename string
}

// Form is an ordered list of form fields.
type Form []Field

// Get returns the value of the first field named name.
func (f Form) Get(name string) string {
	for i := range f {
		if f[i].Name == name {
			return f[i].Value
		}
	}
	return ""
}

// Transport is the request contract. err is non nil exactly when the request
// failed or the server answered with a non success status; in the latter case
// err is a StatusError and the response is returned as well.
type Transport interface {
	Get(ctx context.Context, url string) (body []byte, resp *Response, err error)
	Post(ctx context.Context, url string, header http.Header, form Form) (body []byte, resp *Response, err error)
}

// StatusError is returned for non success statuses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%v %v: %v %v", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsPreconditionFailed reports whether err is the conflict class of error:
// the resource changed since it was last read.
func IsPreconditionFailed(err error) bool {
	se, ok := err.(StatusError)
	return ok && se.StatusCode == http.StatusPreconditionFailed
}
