// Package redis is a proxy cache on a redis server.
package redis

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
)

const (
	DefaultAddress = "127.0.0.1:6379"
	DefaultPrefix  = "layersync:"
)

// Options configures the redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
	// KeyPrefix namespaces the cache keys.
	KeyPrefix string
}

// Cache implements proxy.Cache.
type Cache struct {
	Client *redis.Client
	Prefix string
}

// New connects to redis and checks the connection.
func New(opts Options) (*Cache, error) {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping().Result(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %v", opts.Address)
	}
	log.Infof("proxy cache: redis at %v (db %v)", opts.Address, opts.DB)
	return &Cache{Client: client, Prefix: opts.KeyPrefix}, nil
}

func (c *Cache) Get(key string) ([]byte, bool, error) {
	val, err := c.Client.Get(c.Prefix + key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return val, true, nil
}

func (c *Cache) Set(key string, val []byte, ttl time.Duration) error {
	return c.Client.Set(c.Prefix+key, val, ttl).Err()
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.Client.Close()
}
