// Package proxy is the caching proxy remote layers can fetch their data
// through. Requests look like
//
//	GET /ajax-proxy/?url=<escaped url>&ttl=<seconds>
//
// Responses are cached for ttl seconds when ttl is positive.
package proxy

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/atlasdatatech/layersync/internal/log"
)

const (
	DefaultMaxBodySize = 10 << 20
	DefaultMaxTTL      = 7 * 24 * time.Hour

	// HeaderCache is set to HIT or MISS on proxied responses.
	HeaderCache = "X-Cache"
)

// Handler proxies GET requests.
type Handler struct {
	Client *http.Client
	// Cache is optional.
	Cache Cache
	// MaxTTL caps the requested ttl.
	MaxTTL time.Duration
	// MaxBodySize is the largest upstream body proxied, in bytes.
	MaxBodySize int64
}

func (h *Handler) client() *http.Client {
	if h.Client == nil {
		return http.DefaultClient
	}
	return h.Client
}

// entries are stored as content type, newline, body
func encodeEntry(contentType string, body []byte) []byte {
	return append([]byte(contentType+"\n"), body...)
}

func decodeEntry(b []byte) (string, []byte) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return "", b
	}
	return string(b[:i]), b[i+1:]
}

func (h *Handler) ttl(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidTTL(raw)
	}
	ttl := time.Duration(n) * time.Second
	max := h.MaxTTL
	if max == 0 {
		max = DefaultMaxTTL
	}
	if ttl > max {
		ttl = max
	}
	return ttl, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target := r.URL.Query().Get("url")
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, ErrInvalidURL(target).Error(), http.StatusBadRequest)
		return
	}
	ttl, err := h.ttl(r.URL.Query().Get("ttl"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := "proxy:" + target
	if h.Cache != nil && ttl > 0 {
		val, hit, err := h.Cache.Get(key)
		if err != nil {
			log.Warnf("proxy: cache get %v: %v", target, err)
		}
		if hit {
			ct, body := decodeEntry(val)
			write(w, ct, "HIT", body)
			return
		}
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req = req.WithContext(r.Context())
	resp, err := h.client().Do(req)
	if err != nil {
		log.Errorf("proxy: %v: %v", target, err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("proxy: %v: upstream status %v", target, resp.StatusCode)
		http.Error(w, "upstream status "+resp.Status, http.StatusBadGateway)
		return
	}

	max := h.MaxBodySize
	if max == 0 {
		max = DefaultMaxBodySize
	}
	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		http.Error(w, "reading upstream body failed", http.StatusBadGateway)
		return
	}
	if int64(len(body)) > max {
		http.Error(w, "upstream body too large", http.StatusBadGateway)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if h.Cache != nil && ttl > 0 {
		if err := h.Cache.Set(key, encodeEntry(ct, body), ttl); err != nil {
			log.Warnf("proxy: cache set %v: %v", target, err)
		}
	}
	write(w, ct, "MISS", body)
}

func write(w http.ResponseWriter, contentType, cache string, body []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set(HeaderCache, cache)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
