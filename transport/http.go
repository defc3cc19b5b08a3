package transport

import (
	"bytes"
	"context"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
)

// HTTPClient implements Transport over net/http. Post bodies are sent as
// multipart/form-data.
type HTTPClient struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Header is added to every request, e.g. for authentication.
	Header http.Header
}

func (c *HTTPClient) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

// Get implements Transport.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, *Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building request")
	}
	return c.do(ctx, req, nil)
}

// Post implements Transport.
func (c *HTTPClient) Post(ctx context.Context, url string, header http.Header, form Form) ([]byte, *Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range form {
		if f.Filename != "" {
			w, err := mw.CreateFormFile(f.Name, f.Filename)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "form field %v", f.Name)
			}
			if _, err := w.Write([]byte(f.Value)); err != nil {
				return nil, nil, errors.Wrapf(err, "form field %v", f.Name)
			}
			continue
		}
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, nil, errors.Wrapf(err, "form field %v", f.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "closing form")
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(ctx, req, header)
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request, header http.Header) ([]byte, *Response, error) {
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req = req.WithContext(ctx)

	log.Debugf("%v %v", req.Method, req.URL)
	res, err := c.client().Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%v %v", req.Method, req.URL)
	}
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading response body")
	}
	resp := &Response{StatusCode: res.StatusCode, Header: res.Header}
	if !resp.OK() {
		return body, resp, StatusError{
			Method:     req.Method,
			URL:        redact(req.URL.String()),
			StatusCode: res.StatusCode,
			Body:       body,
		}
	}
	return body, resp, nil
}

// redact drops the query string, which may carry tokens.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
