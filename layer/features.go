package layer

import (
	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/internal/log"
)

// Len is the number of features.
func (l *DataLayer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.features.Len()
}

// Feature returns a copy of the feature with the given id.
func (l *DataLayer) Feature(id string) (*feature.Feature, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.features.ByID(id)
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// FeatureAt returns a copy of the feature at position i; -1 is the last one.
func (l *DataLayer) FeatureAt(i int) (*feature.Feature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.features.ByIndex(i)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// Features returns copies of the features, in display order.
func (l *DataLayer) Features() []*feature.Feature {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneFeatures(l.features.Features())
}

// FeatureIDs returns the ids in display order.
func (l *DataLayer) FeatureIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.features.IDs()
}

// Properties returns the indexed property names.
func (l *DataLayer) Properties() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.features.Properties()
}

// DeindexProperty drops name from the property index, for callers that
// removed it from every feature.
func (l *DataLayer) DeindexProperty(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.features.Deindex(name)
}

// PruneProperties rebuilds the property index from the features.
func (l *DataLayer) PruneProperties() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.features.Prune()
}

// DistinctValues returns the sorted distinct values of a property, for
// building filters.
func (l *DataLayer) DistinctValues(name string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.features.DistinctSortedValues(name, l.locale)
}

func (l *DataLayer) editable() error {
	if l.options.IsRemote() {
		return ErrRemoteLayer
	}
	return nil
}

// AddFeature appends f. A missing id is generated.
func (l *DataLayer) AddFeature(f *feature.Feature) error {
	if f == nil {
		return feature.ErrNilFeature
	}
	if _, err := feature.KindOf(f.Geometry); err != nil {
		return feature.UnknownGeometryError{FeatureID: f.ID, Type: string(f.Kind())}
	}
	return l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		nf := f.Clone()
		if nf.ID == "" {
			nf.ID = feature.NewID()
		}
		if nf.Properties == nil {
			nf.Properties = map[string]interface{}{}
		}
		return l.features.Add(nf)
	})
}

// RemoveFeature drops the feature with the given id.
func (l *DataLayer) RemoveFeature(id string) error {
	return l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		return l.features.RemoveID(id)
	})
}

// UpdateFeature edits a feature in place through fn. The id can not change.
func (l *DataLayer) UpdateFeature(id string, fn func(f *feature.Feature)) error {
	return l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		f, ok := l.features.ByID(id)
		if !ok {
			return feature.NotFoundError{ID: id}
		}
		fn(f)
		f.ID = id
		if f.Properties == nil {
			f.Properties = map[string]interface{}{}
		}
		l.features.IndexProperties(f)
		return nil
	})
}

// TransferFeature disconnects a feature from l and connects it to dst. Both
// layers become dirty.
func (l *DataLayer) TransferFeature(id string, dst *DataLayer) error {
	var moved *feature.Feature
	err := l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		f, ok := l.features.ByID(id)
		if !ok {
			return feature.NotFoundError{ID: id}
		}
		moved = f
		return l.features.RemoveID(id)
	})
	if err != nil {
		return err
	}
	if err := dst.AddFeature(moved); err != nil {
		// put it back where it came from
		l.mu.Lock()
		if aerr := l.features.Add(moved); aerr != nil {
			log.Warnf("layer %v: restoring feature %v: %v", l.id, id, aerr)
		}
		l.features.Reindex(l.options.GetSortKey(), l.locale)
		l.mu.Unlock()
		return err
	}
	return nil
}

// Import adds the features of a payload, keeping the current ones. Elements
// with unsupported geometry are skipped and reported.
func (l *DataLayer) Import(c feature.Collection) ([]feature.UnknownGeometryError, error) {
	features, skipped := feature.Materialize(c)
	err := l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		for _, f := range features {
			if _, exists := l.features.ByID(f.ID); exists {
				f.ID = feature.NewID()
			}
			if err := l.features.Add(f); err != nil {
				return err
			}
		}
		l.features.Reindex(l.options.GetSortKey(), l.locale)
		l.dataLoaded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.warnSkipped(skipped)
	l.renderer.Redraw(l, nil)
	return skipped, nil
}

// Empty removes every feature. Remote layers can not be emptied.
func (l *DataLayer) Empty() error {
	err := l.mutate(func() error {
		if err := l.editable(); err != nil {
			return err
		}
		l.features.Clear()
		return nil
	})
	if err == nil {
		l.renderer.Redraw(l, nil)
	}
	return err
}
