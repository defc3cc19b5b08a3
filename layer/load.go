package layer

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/format/geojson"
	"github.com/atlasdatatech/layersync/internal/log"
)

func (l *DataLayer) online() bool {
	return l.routes != nil && l.transport != nil
}

// FetchMetadataAndData loads options and features from the server. It does
// nothing for a layer that was never saved, and a call made while a load is
// already running returns immediately.
//
// Server options replace the local ones, except for a locally set edit mode.
// Remote layers get their features from their remote source instead of the
// server payload.
func (l *DataLayer) FetchMetadataAndData(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.state == StateRemoved:
		l.mu.Unlock()
		return ErrRemoved
	case !l.persisted:
		l.loaded = true
		l.mu.Unlock()
		return nil
	case !l.online():
		l.mu.Unlock()
		return ErrNoRoutes
	case l.loading:
		l.mu.Unlock()
		log.Debugf("layer %v: load already in flight", l.id)
		return nil
	case l.saving:
		l.mu.Unlock()
		return ErrSaveInFlight
	}
	l.loading = true
	url := l.routes.DataURL(l.id)
	l.mu.Unlock()

	var (
		c       feature.Collection
		opts    Options
		hasOpts bool
	)
	body, resp, err := l.transport.Get(ctx, url)
	if err != nil {
		err = TransportError{LayerID: l.id, Op: "load", Err: err}
	} else if perr := json.Unmarshal(body, &c); perr != nil {
		err = format.ParseError{Format: geojson.Name, Err: errors.Wrap(perr, "layer payload")}
	} else if opts, hasOpts, perr = OptionsFromCollection(&c); perr != nil {
		err = format.ParseError{Format: geojson.Name, Err: errors.Wrap(perr, "layer options")}
	}

	l.mu.Lock()
	l.loading = false
	if err != nil {
		l.mu.Unlock()
		log.Errorf("layer %v: load: %v", l.id, err)
		l.notifier.Warn(l, err)
		return err
	}
	if l.state == StateRemoved {
		l.mu.Unlock()
		return ErrRemoved
	}

	if hasOpts {
		if l.options.EditMode != nil {
			opts.EditMode = String(*l.options.EditMode)
		}
		l.options = opts
	}
	if v := resp.Version(); v != "" {
		l.referenceVersion = v
	}
	isRemote := l.options.IsRemote()
	var skipped []feature.UnknownGeometryError
	if !isRemote {
		skipped = l.replaceFeaturesLocked(c)
	}
	l.loaded = true
	l.gen++
	l.backupLocked(l.options, l.features.Features())

	notify := func() {}
	if _, terr := l.state.Next(EventLoaded, l.persisted); terr == nil {
		notify, _ = l.apply(EventLoaded)
	}
	l.mu.Unlock()

	notify()
	l.warnSkipped(skipped)
	l.renderer.Rebuild(l)
	log.Infof("layer %v: loaded at version %q", l.id, l.ReferenceVersion())

	if isRemote {
		return l.FetchRemoteData(ctx, false)
	}
	return nil
}
