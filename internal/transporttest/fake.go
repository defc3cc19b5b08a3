// Package transporttest provides a scriptable transport.Transport for tests.
package transporttest

import (
	"context"
	"net/http"
	"sync"

	"github.com/atlasdatatech/layersync/transport"
)

// Call records one request.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Form   transport.Form
}

// Reply scripts one response. A zero Status means 200. Err simulates a
// network failure and wins over Status.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
	Err    error
}

// Fake answers every request with Handler. If Gate is set, each request waits
// for a value on it before replying.
type Fake struct {
	Handler func(Call) Reply
	Gate    chan struct{}

	mu    sync.Mutex
	calls []Call
}

// Calls returns the requests seen so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many requests used method.
func (f *Fake) Count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *Fake) serve(ctx context.Context, c Call) ([]byte, *transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	var r Reply
	if f.Handler != nil {
		r = f.Handler(c)
	}
	if r.Err != nil {
		return nil, nil, r.Err
	}
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	if r.Header == nil {
		r.Header = http.Header{}
	}
	resp := &transport.Response{StatusCode: r.Status, Header: r.Header}
	if !resp.OK() {
		return r.Body, resp, transport.StatusError{Method: c.Method, URL: c.URL, StatusCode: r.Status, Body: r.Body}
	}
	return r.Body, resp, nil
}

// Get implements transport.Transport.
func (f *Fake) Get(ctx context.Context, url string) ([]byte, *transport.Response, error) {
	return f.serve(ctx, Call{Method: http.MethodGet, URL: url})
}

// Post implements transport.Transport.
func (f *Fake) Post(ctx context.Context, url string, header http.Header, form transport.Form) ([]byte, *transport.Response, error) {
	return f.serve(ctx, Call{Method: http.MethodPost, URL: url, Header: header, Form: form})
}

// Versioned returns a reply carrying version in the version header.
func Versioned(version string, body []byte) Reply {
	h := http.Header{}
	h.Set(transport.HeaderVersion, version)
	return Reply{Header: h, Body: body}
}
