package layer

import (
	"context"

	"github.com/atlasdatatech/layersync/internal/log"
)

// Show makes the layer visible. The first show of a persisted layer loads
// it from the server; remote layers are then fetched.
func (l *DataLayer) Show(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateRemoved {
		l.mu.Unlock()
		return ErrRemoved
	}
	if l.visible {
		l.mu.Unlock()
		return nil
	}
	l.visible = true
	needLoad := !l.loaded
	l.mu.Unlock()

	l.renderer.LayersChanged()
	if needLoad {
		return l.FetchMetadataAndData(ctx)
	}
	return l.FetchRemoteData(ctx, false)
}

// Hide makes the layer invisible.
func (l *DataLayer) Hide() {
	l.mu.Lock()
	changed := l.visible
	l.visible = false
	l.mu.Unlock()
	if changed {
		l.renderer.LayersChanged()
	}
}

// Toggle flips visibility.
func (l *DataLayer) Toggle(ctx context.Context) error {
	if l.IsVisible() {
		l.Hide()
		return nil
	}
	return l.Show(ctx)
}

// ReplaceOptions sets all options at once and reacts to every field that
// changed.
func (l *DataLayer) ReplaceOptions(ctx context.Context, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	var fields []string
	err := l.mutate(func() error {
		fields = changedFields(l.options, o)
		l.options = o.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	return l.EditFieldChanged(ctx, fields...)
}

// MergeOptions sets the fields present in patch, leaving the others alone.
func (l *DataLayer) MergeOptions(ctx context.Context, patch Options) error {
	var fields []string
	err := l.mutate(func() error {
		merged := l.options.Merge(patch)
		if err := merged.Validate(); err != nil {
			return err
		}
		fields = changedFields(l.options, merged)
		l.options = merged
		return nil
	})
	if err != nil {
		return err
	}
	return l.EditFieldChanged(ctx, fields...)
}

// Clone returns a deep copy of the layer under a fresh id, connected to the
// same owner. The copy was never saved and starts dirty.
func (l *DataLayer) Clone() *DataLayer {
	l.mu.Lock()
	opts := l.options.Clone()
	features := cloneFeatures(l.features.Features())
	l.mu.Unlock()

	opts.Name = String("Clone of " + opts.GetName())
	c := New(l.owner, Config{
		Options:   opts,
		Routes:    l.routes,
		Transport: l.transport,
		Fetcher:   l.fetcher,
		Renderer:  l.renderer,
		Notifier:  l.notifier,
		Locale:    l.locale,
	})
	c.mu.Lock()
	for _, f := range features {
		if err := c.features.Add(f); err != nil {
			log.Warnf("layer %v: clone: %v", c.id, err)
		}
	}
	c.gen++
	notify, _ := c.apply(EventMutated)
	c.mu.Unlock()
	notify()
	return c
}

// Reset drops unsaved changes, restoring the options and features of the
// last save or load. It also cancels a pending delete. Remote layers are
// fetched again.
func (l *DataLayer) Reset(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.state == StateRemoved:
		l.mu.Unlock()
		return ErrRemoved
	case l.saving:
		l.mu.Unlock()
		return ErrSaveInFlight
	}
	if l.state == StatePendingDelete {
		l.visible = l.visibleBeforeDelete
	}
	l.options = l.backupOptions.Clone()
	l.features.Clear()
	for _, f := range cloneFeatures(l.backupFeatures) {
		if err := l.features.Add(f); err != nil {
			log.Warnf("layer %v: reset: %v", l.id, err)
		}
	}
	l.features.Reindex(l.options.GetSortKey(), l.locale)
	l.gen++
	notify, err := l.apply(EventReset)
	isRemote := l.options.IsRemote()
	l.mu.Unlock()
	notify()
	if err != nil {
		return err
	}

	log.Debugf("layer %v: reset", l.id)
	l.renderer.Rebuild(l)
	if isRemote {
		return l.FetchRemoteData(ctx, true)
	}
	return nil
}

// MarkDeleted schedules the layer for deletion on the next save and hides
// it. Reset cancels it.
func (l *DataLayer) MarkDeleted() error {
	l.mu.Lock()
	switch {
	case l.state == StateRemoved:
		l.mu.Unlock()
		return ErrRemoved
	case l.saving:
		l.mu.Unlock()
		return ErrSaveInFlight
	case l.state == StatePendingDelete:
		l.mu.Unlock()
		return nil
	}
	notify, err := l.apply(EventDeleted)
	if err == nil {
		l.visibleBeforeDelete = l.visible
		l.visible = false
	}
	l.mu.Unlock()
	notify()
	if err == nil {
		l.renderer.LayersChanged()
	}
	return err
}

// Touch marks the layer dirty without changing it, e.g. after its rank
// changed.
func (l *DataLayer) Touch() error {
	return l.mutate(func() error { return nil })
}
