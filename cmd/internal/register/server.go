package register

import (
	"net/http"

	"github.com/atlasdatatech/layersync/config"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server/proxy"
	"github.com/atlasdatatech/layersync/server/proxy/redis"
	"github.com/atlasdatatech/layersync/server/store"
)

// Store opens the configured store backend. The backend package must have
// been imported for its driver to be registered.
func Store(cfg config.Config) (store.Store, error) {
	name := cfg.StoreType()
	log.Infof("store: %v", name)
	return store.For(name, store.Config(cfg.Store))
}

// Cache builds the configured proxy cache.
func Cache(cfg config.Proxy) (proxy.Cache, error) {
	switch cfg.Cache {
	case "", "memory":
		return proxy.NewMemoryCache(cfg.MaxEntries), nil
	case "redis":
		return redis.New(redis.Options{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return nil, ErrUnknownCache(cfg.Cache)
}

// Proxy builds the caching proxy handler, or returns nil when it is disabled.
func Proxy(cfg config.Proxy) (http.Handler, error) {
	if cfg.Disabled {
		return nil, nil
	}
	cache, err := Cache(cfg)
	if err != nil {
		return nil, err
	}
	return &proxy.Handler{
		Cache:       cache,
		MaxTTL:      cfg.MaxTTL.Duration,
		MaxBodySize: cfg.MaxBody,
	}, nil
}
