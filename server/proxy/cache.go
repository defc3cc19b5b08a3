package proxy

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache keeps proxied responses. A zero ttl means no expiry.
type Cache interface {
	Get(key string) (val []byte, hit bool, err error)
	Set(key string, val []byte, ttl time.Duration) error
}

// MemoryCache is a Cache in process memory. Expired entries are purged in
// the background and whenever the cache is full.
type MemoryCache struct {
	// MaxEntries bounds the cache size; 0 means no bound.
	MaxEntries int

	// serializes the bound check with the insert
	mu    sync.Mutex
	items *gocache.Cache
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		MaxEntries: maxEntries,
		items:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	val, ok := v.([]byte)
	return val, ok, nil
}

func (c *MemoryCache) Set(key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MaxEntries > 0 && c.items.ItemCount() >= c.MaxEntries {
		if _, present := c.items.Get(key); !present {
			c.evict()
		}
	}
	c.items.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

// evict drops expired entries, then the entry closest to expiry if the
// cache is still full.
func (c *MemoryCache) evict() {
	c.items.DeleteExpired()
	if c.items.ItemCount() < c.MaxEntries {
		return
	}
	var (
		victim string
		soon   int64
	)
	for k, it := range c.items.Items() {
		switch {
		case victim == "":
			victim, soon = k, it.Expiration
		case it.Expiration == 0:
		case soon == 0 || it.Expiration < soon:
			victim, soon = k, it.Expiration
		}
	}
	c.items.Delete(victim)
}
