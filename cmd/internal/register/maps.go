package register

import (
	"github.com/atlasdatatech/layersync/atlas"
	"github.com/atlasdatatech/layersync/config"
	"github.com/atlasdatatech/layersync/layer"
	"github.com/atlasdatatech/layersync/transport"
)

func mapFromConfigMap(cfg config.Map, defaultServer string, t transport.Transport) *atlas.Map {
	server := cfg.Server
	if server == "" {
		server = defaultServer
	}
	newMap := atlas.NewMap(cfg.Name, server, t)
	newMap.Locale = cfg.Locale
	return newMap
}

// LayerOptions converts a declared layer into layer options.
func LayerOptions(cfg config.Layer) layer.Options {
	var o layer.Options
	if cfg.Name != "" {
		o.Name = layer.String(cfg.Name)
	}
	if cfg.DisplayOnLoad != nil {
		o.DisplayOnLoad = layer.Bool(*cfg.DisplayOnLoad)
	}
	if cfg.SortKey != "" {
		o.SortKey = layer.String(cfg.SortKey)
	}
	if cfg.Color != "" {
		o.Color = layer.String(cfg.Color)
	}
	if cfg.EditMode != "" {
		o.EditMode = layer.String(cfg.EditMode)
	}
	if cfg.RemoteData != nil {
		o.RemoteData = cfg.RemoteData.Clone()
	}
	return o
}

// FindLayer returns the declared layer with the given id.
func FindLayer(cfg config.Map, id string) (config.Layer, bool) {
	for i := range cfg.Layers {
		if cfg.Layers[i].ID == id {
			return cfg.Layers[i], true
		}
	}
	return config.Layer{}, false
}

// Layer creates a declared layer in m. The layer is new: it is created on
// the server by its first save.
func Layer(m *atlas.Map, cfg config.Layer) (*layer.DataLayer, error) {
	if _, err := m.LayerByID(cfg.ID); err == nil {
		return nil, ErrLayerAlreadyExists{Map: m.Name, ID: cfg.ID}
	}
	opts := LayerOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, ErrLayerOptionsInvalid{Map: m.Name, ID: cfg.ID, Err: err}
	}
	return m.NewLayer(layer.Config{ID: cfg.ID, Options: opts}), nil
}

// Maps registers maps with the atlas. Declared layers are checked but not
// created: they only seed layers the server does not have yet.
func Maps(a *atlas.Atlas, maps []config.Map, defaultServer string, t transport.Transport) error {
	for _, m := range maps {
		newMap := mapFromConfigMap(m, defaultServer, t)
		if newMap.Server == "" {
			return ErrMapServerMissing{Map: m.Name}
		}
		for _, l := range m.Layers {
			if err := LayerOptions(l).Validate(); err != nil {
				return ErrLayerOptionsInvalid{Map: m.Name, ID: l.ID, Err: err}
			}
		}
		a.AddMap(newMap)
	}
	return nil
}
