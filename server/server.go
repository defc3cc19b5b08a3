// Package server is the reference layer server: it stores layers under
// optimistic concurrency and serves the caching proxy used by remote layers.
package server

import (
	"net/http"
	"strings"

	"github.com/dimfeld/httptreemux"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server/store"
)

const (
	// MaxUploadSize is the default limit of a save request body.
	MaxUploadSize = 32 << 20

	// url params
	paramMap   = "map"
	paramLayer = "layer"
)

var (
	// Version is the version of the software, reported in responses. It
	// is set from the build.
	Version = "version not set"
)

// Server holds what the handlers share.
type Server struct {
	Store store.Store
	// Proxy serves /ajax-proxy/ when set.
	Proxy http.Handler
	// Maps restricts the maps served. Empty serves any map name.
	Maps []string
	// CORSAllowedOrigin is sent as Access-Control-Allow-Origin. Empty
	// disables the header.
	CORSAllowedOrigin string
	// MaxUploadSize limits save bodies; 0 means the package default.
	MaxUploadSize int64
}

func (s *Server) servesMap(name string) bool {
	if len(s.Maps) == 0 {
		return true
	}
	for _, m := range s.Maps {
		if m == name {
			return true
		}
	}
	return false
}

// NewRouter sets up the routes.
func (s *Server) NewRouter() *httptreemux.TreeMux {
	r := httptreemux.New()
	group := r.NewGroup("/")

	group.UsingContext().Handler(http.MethodGet, "/map/:map/datalayers/", s.headers(HandleListLayers{s}))
	group.UsingContext().Handler(http.MethodGet, "/map/:map/datalayer/:layer/", s.headers(HandleGetLayer{s}))
	group.UsingContext().Handler(http.MethodPost, "/map/:map/datalayer/:layer/update/", s.headers(HandleSaveLayer{s}))
	group.UsingContext().Handler(http.MethodPost, "/map/:map/datalayer/:layer/delete/", s.headers(HandleDeleteLayer{s}))
	if s.Proxy != nil {
		group.UsingContext().Handler(http.MethodGet, "/ajax-proxy/", s.headers(s.Proxy))
	}
	for _, p := range []string{"/map/:map/datalayers/", "/map/:map/datalayer/:layer/", "/map/:map/datalayer/:layer/update/", "/map/:map/datalayer/:layer/delete/", "/ajax-proxy/"} {
		group.UsingContext().Handler(http.MethodOptions, p, s.headers(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	}
	return r
}

// headers sets the common response headers.
func (s *Server) headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.CORSAllowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.CORSAllowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", headerReference}, ", "))
			w.Header().Set("Access-Control-Expose-Headers", headerVersion)
		}
		w.Header().Set("X-Powered-By", "layersync "+Version)
		log.Debugf("%v %v", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// Start starts the server on addr in a goroutine and returns it.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.NewRouter()}
	go func() {
		log.Infof("starting layersync server on %v", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("server: %v", err)
		}
	}()
	return srv
}
