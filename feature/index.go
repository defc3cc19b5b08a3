package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ReservedPrefix marks property names that are never indexed.
const ReservedPrefix = "_"

// Index keeps an ordered sequence of feature ids alongside the id-keyed
// features and the set of scalar property names seen on them.
//
// The set of ids in the order sequence is always the key set of the feature
// map. Index is not safe for concurrent use; its owner serializes access.
type Index struct {
	order []string
	byID  map[string]*Feature
	props map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byID:  map[string]*Feature{},
		props: map[string]struct{}{},
	}
}

// Len is the number of indexed features.
func (idx *Index) Len() int { return len(idx.order) }

// Add appends f to the order and indexes its scalar property names.
func (idx *Index) Add(f *Feature) error {
	if f == nil {
		return ErrNilFeature
	}
	if f.ID == "" {
		return fmt.Errorf("feature without id")
	}
	if _, ok := idx.byID[f.ID]; ok {
		return DuplicateError{ID: f.ID}
	}
	idx.byID[f.ID] = f
	idx.order = append(idx.order, f.ID)
	idx.indexProperties(f)
	return nil
}

// Remove drops f from the index.
func (idx *Index) Remove(f *Feature) error {
	if f == nil {
		return ErrNilFeature
	}
	return idx.RemoveID(f.ID)
}

// RemoveID drops the feature with the given id from the index.
func (idx *Index) RemoveID(id string) error {
	if _, ok := idx.byID[id]; !ok {
		return NotFoundError{ID: id}
	}
	delete(idx.byID, id)
	for i := range idx.order {
		if idx.order[i] == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear empties the index, including the property set.
func (idx *Index) Clear() {
	idx.order = nil
	idx.byID = map[string]*Feature{}
	idx.props = map[string]struct{}{}
}

// ByID returns the feature with the given id.
func (idx *Index) ByID(id string) (*Feature, bool) {
	f, ok := idx.byID[id]
	return f, ok
}

// ByIndex returns the feature at position i. Negative positions count from
// the end, -1 being the last feature.
func (idx *Index) ByIndex(i int) (*Feature, error) {
	n := len(idx.order)
	pos := i
	if pos < 0 {
		pos = n + pos
	}
	if pos < 0 || pos >= n {
		return nil, IndexError{Index: i, Len: n}
	}
	return idx.byID[idx.order[pos]], nil
}

// IDs returns a copy of the order sequence.
func (idx *Index) IDs() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Features returns the indexed features in order.
func (idx *Index) Features() []*Feature {
	out := make([]*Feature, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.byID[id])
	}
	return out
}

// Each calls fn for every feature in order, stopping at the first error.
func (idx *Index) Each(fn func(*Feature) error) error {
	for _, f := range idx.Features() {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Reindex sorts the order sequence by sortKey. sortKey is a comma separated
// list of property names; a leading "-" reverses that key. Features missing a
// value sort first. Ties keep their current relative order.
func (idx *Index) Reindex(sortKey, locale string) {
	keys := splitSortKey(sortKey)
	if len(keys) == 0 || len(idx.order) < 2 {
		return
	}
	cmp := newComparer(locale)
	sort.SliceStable(idx.order, func(i, j int) bool {
		a, b := idx.byID[idx.order[i]], idx.byID[idx.order[j]]
		return compareFeatures(cmp, a, b, keys) < 0
	})
}

type sortKey struct {
	name    string
	reverse bool
}

func splitSortKey(s string) []sortKey {
	var keys []sortKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := sortKey{name: part}
		if strings.HasPrefix(part, "-") {
			k.name, k.reverse = part[1:], true
		}
		keys = append(keys, k)
	}
	return keys
}

func compareFeatures(cmp *comparer, a, b *Feature, keys []sortKey) int {
	for _, k := range keys {
		va, vb := valueString(a.Properties[k.name]), valueString(b.Properties[k.name])
		var score int
		switch {
		case va == "" && vb == "":
			score = 0
		case va == "":
			score = -1
		case vb == "":
			score = 1
		default:
			score = cmp.compare(va, vb)
		}
		if score == 0 {
			continue
		}
		if k.reverse {
			return -score
		}
		return score
	}
	return 0
}

// comparer is a locale aware, numeric aware string comparison.
type comparer struct {
	col *collate.Collator
}

func newComparer(locale string) *comparer {
	tag := language.Und
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			tag = t
		}
	}
	return &comparer{col: collate.New(tag, collate.Loose, collate.Numeric)}
}

func (c *comparer) compare(a, b string) int {
	return c.col.CompareString(a, b)
}

// NaturalSort sorts values in place with the locale aware natural order.
func NaturalSort(values []string, locale string) {
	cmp := newComparer(locale)
	sort.SliceStable(values, func(i, j int) bool {
		return cmp.compare(values[i], values[j]) < 0
	})
}

// valueString renders a property value for sorting and filtering.
func valueString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// isScalar reports whether v is a string, number or boolean.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func (idx *Index) indexProperties(f *Feature) {
	for name, v := range f.Properties {
		if strings.HasPrefix(name, ReservedPrefix) || !isScalar(v) {
			continue
		}
		idx.props[name] = struct{}{}
	}
}

// Properties returns the sorted set of indexed property names.
func (idx *Index) Properties() []string {
	out := make([]string, 0, len(idx.props))
	for name := range idx.props {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasProperty reports whether name is in the property set.
func (idx *Index) HasProperty(name string) bool {
	_, ok := idx.props[name]
	return ok
}

// IndexProperties adds the scalar property names of f to the property set.
// Used after a feature's properties were edited in place.
func (idx *Index) IndexProperties(f *Feature) {
	idx.indexProperties(f)
}

// Deindex removes name from the property set. Callers use it when they know a
// property was removed from every feature.
func (idx *Index) Deindex(name string) {
	delete(idx.props, name)
}

// Prune rebuilds the property set from the current features.
func (idx *Index) Prune() {
	idx.props = map[string]struct{}{}
	for _, f := range idx.byID {
		idx.indexProperties(f)
	}
}

// DistinctSortedValues collects the values of the named property across all
// features, removes duplicates and sorts them naturally.
func (idx *Index) DistinctSortedValues(name, locale string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range idx.order {
		v, ok := idx.byID[id].Properties[name]
		if !ok || v == nil {
			continue
		}
		s := valueString(v)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	NaturalSort(out, locale)
	return out
}
