// Package config loads the layersync TOML configuration.
package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/remote"
)

const (
	DefaultPort         = ":8080"
	DefaultStore        = "memory"
	DefaultProxyCache   = "memory"
	DefaultProxyEntries = 1024
)

// Config is the whole configuration file.
type Config struct {
	// LocationName is the file or url the config was read from.
	LocationName string `toml:"-"`

	Webserver Webserver              `toml:"webserver"`
	Store     map[string]interface{} `toml:"store"`
	Proxy     Proxy                  `toml:"proxy"`
	Maps      []Map                  `toml:"maps"`
}

type Webserver struct {
	Port              string `toml:"port"`
	Hostname          string `toml:"hostname"`
	CORSAllowedOrigin string `toml:"cors_allowed_origin"`
	// MaxUploadSize is in bytes.
	MaxUploadSize int64 `toml:"max_upload_size"`
}

// Proxy configures the caching proxy.
type Proxy struct {
	Disabled bool `toml:"disabled"`
	// Cache is memory or redis.
	Cache         string   `toml:"cache"`
	MaxEntries    int      `toml:"max_entries"`
	RedisAddress  string   `toml:"redis_address"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	MaxTTL        Duration `toml:"max_ttl"`
	MaxBody       int64    `toml:"max_body"`
}

// Map is a map served, or synced by the command line client.
type Map struct {
	Name string `toml:"name"`
	// Server is the base url of the layer server. Empty means this server.
	Server string  `toml:"server"`
	Locale string  `toml:"locale"`
	Layers []Layer `toml:"layers"`
}

// Layer pre-declares a layer of a map.
type Layer struct {
	ID            string             `toml:"id"`
	Name          string             `toml:"name"`
	DisplayOnLoad *bool              `toml:"display_on_load"`
	SortKey       string             `toml:"sort_key"`
	Color         string             `toml:"color"`
	EditMode      string             `toml:"edit_mode"`
	RemoteData    *remote.Descriptor `toml:"remote_data"`
}

// Duration decodes from strings such as "1h30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var envVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substitute replaces ${VAR} with the value of the environment variable.
func substitute(b []byte) ([]byte, error) {
	var missing error
	out := envVar.ReplaceAllFunc(b, func(m []byte) []byte {
		name := string(envVar.FindSubmatch(m)[1])
		v, ok := os.LookupEnv(name)
		if !ok {
			if missing == nil {
				missing = ErrEnvVarNotFound{VarName: name}
			}
			return m
		}
		return []byte(v)
	})
	return out, missing
}

// Load reads and validates the config in reader.
func Load(reader io.Reader) (conf Config, err error) {
	b, err := ioutil.ReadAll(reader)
	if err != nil {
		return conf, err
	}
	if b, err = substitute(b); err != nil {
		return conf, err
	}

	md, err := toml.DecodeReader(bytes.NewReader(b), &conf)
	if err != nil {
		return conf, err
	}
	for _, key := range md.Undecoded() {
		log.Warnf("config: unknown key %v", key)
	}

	conf.setDefaults()
	return conf, conf.Validate()
}

// LoadFromPath reads the config file at path.
func LoadFromPath(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	conf, err := Load(f)
	conf.LocationName = path
	return conf, err
}

func (c *Config) setDefaults() {
	if c.Webserver.Port == "" {
		c.Webserver.Port = DefaultPort
	}
	if c.Store == nil {
		c.Store = map[string]interface{}{}
	}
	if _, ok := c.Store["type"]; !ok {
		c.Store["type"] = DefaultStore
	}
	if c.Proxy.Cache == "" {
		c.Proxy.Cache = DefaultProxyCache
	}
	if c.Proxy.MaxEntries == 0 {
		c.Proxy.MaxEntries = DefaultProxyEntries
	}
}

// StoreType returns the store backend name.
func (c Config) StoreType() string {
	s, _ := c.Store["type"].(string)
	return s
}

// Validate checks the config for errors.
func (c Config) Validate() error {
	if _, ok := c.Store["type"].(string); !ok {
		return ErrInvalidValue{Key: "store.type", Value: c.Store["type"]}
	}
	switch c.Proxy.Cache {
	case "memory":
	case "redis":
		if c.Proxy.RedisAddress == "" {
			return ErrMissingValue{Key: "proxy.redis_address"}
		}
	default:
		return ErrInvalidValue{Key: "proxy.cache", Value: c.Proxy.Cache}
	}
	if c.Proxy.MaxTTL.Duration < 0 {
		return ErrInvalidValue{Key: "proxy.max_ttl", Value: c.Proxy.MaxTTL.Duration}
	}

	maps := map[string]bool{}
	for i, m := range c.Maps {
		if m.Name == "" {
			return ErrMissingValue{Key: "maps.name", Index: i + 1}
		}
		if maps[m.Name] {
			return ErrDuplicateMap{Name: m.Name}
		}
		maps[m.Name] = true

		layers := map[string]bool{}
		for _, l := range m.Layers {
			if l.ID == "" {
				return ErrMissingValue{Key: "maps.layers.id", Map: m.Name}
			}
			if layers[l.ID] {
				return ErrDuplicateLayer{Map: m.Name, ID: l.ID}
			}
			layers[l.ID] = true
			if l.RemoteData != nil && !l.RemoteData.Valid() {
				return ErrInvalidValue{Key: "maps.layers.remote_data", Value: l.ID}
			}
		}
	}
	return nil
}
