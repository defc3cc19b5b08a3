package layer

import (
	"context"

	"github.com/atlasdatatech/layersync/format"
	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/remote"
)

// FetchRemoteData refreshes a remote layer from its source. The fetch is
// skipped for non remote layers, for static sources already loaded (unless
// force is set), for hidden layers and outside the source zoom range. A
// call made while a fetch is running returns immediately.
//
// The feature set is replaced only once the payload parsed; on failure the
// previous features are kept.
func (l *DataLayer) FetchRemoteData(ctx context.Context, force bool) error {
	l.mu.Lock()
	if l.state == StateRemoved {
		l.mu.Unlock()
		return ErrRemoved
	}
	d := l.options.RemoteData.Clone()
	var vp *remote.Viewport
	if l.viewport != nil {
		v := *l.viewport
		vp = &v
	}
	if reason := d.Skip(l.dataLoaded, l.visible, force, vp); reason != remote.SkipNone {
		l.mu.Unlock()
		log.Debugf("layer %v: remote fetch skipped: %v", l.id, reason)
		return nil
	}
	if l.fetching {
		l.mu.Unlock()
		log.Debugf("layer %v: remote fetch already in flight", l.id)
		return nil
	}
	if l.fetcher == nil || l.fetcher.Transport == nil {
		l.mu.Unlock()
		log.Warnf("layer %v: remote fetch: %v", l.id, ErrNoRoutes)
		return ErrNoRoutes
	}
	l.fetching = true
	fetcher := l.fetcher
	l.mu.Unlock()

	c, err := fetcher.Fetch(ctx, d, vp)

	l.mu.Lock()
	l.fetching = false
	if err != nil {
		l.mu.Unlock()
		switch err.(type) {
		case format.FormatError, format.ParseError:
		default:
			err = TransportError{LayerID: l.id, Op: "fetch remote data", Err: err}
		}
		log.Warnf("layer %v: %v", l.id, err)
		l.notifier.Warn(l, err)
		return err
	}
	if l.state == StateRemoved {
		l.mu.Unlock()
		return ErrRemoved
	}
	skipped := l.replaceFeaturesLocked(c)
	n := l.features.Len()
	l.mu.Unlock()

	l.warnSkipped(skipped)
	l.renderer.Redraw(l, nil)
	log.Debugf("layer %v: %v remote features", l.id, n)
	return nil
}

// SetViewport records the current viewport, used to fill url templates of
// remote sources. Dynamic remote layers are refreshed.
func (l *DataLayer) SetViewport(ctx context.Context, vp remote.Viewport) error {
	l.mu.Lock()
	l.viewport = &vp
	dynamic := l.options.RemoteData.Valid() && l.options.RemoteData.Dynamic
	l.mu.Unlock()
	if !dynamic {
		return nil
	}
	return l.FetchRemoteData(ctx, false)
}
