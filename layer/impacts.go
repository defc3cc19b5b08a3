package layer

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Impact is what has to happen after an option changed.
type Impact string

const (
	// ImpactUI only touches presentation outside the map: captions,
	// browser, legends.
	ImpactUI Impact = "ui"
	// ImpactData means the geometries have to be redrawn.
	ImpactData Impact = "data"
	// ImpactRemoteData means the remote source has to be fetched again.
	ImpactRemoteData Impact = "remote-data"
	// ImpactRebuild means the display layer has to be recreated.
	ImpactRebuild Impact = "rebuild"
)

// fieldImpacts maps option paths to their impacts. Unknown option paths
// are assumed to change the rendering.
var fieldImpacts = map[string][]Impact{
	"options.name":          {ImpactUI},
	"options.description":   {ImpactUI},
	"options.displayOnLoad": {ImpactUI},
	"options.browsable":     {ImpactUI},
	"options.inCaption":     {ImpactUI},
	"options.editMode":      {ImpactUI},
	"options.type":          {ImpactUI, ImpactRebuild},
	"options.color":         {ImpactData},
	"options.fillColor":     {ImpactData},
	"options.opacity":       {ImpactData},
	"options.weight":        {ImpactData},
	"options.labelKey":      {ImpactData},
	"options.sortKey":       {ImpactUI, ImpactData},
	"options.fromZoom":      {ImpactData},
	"options.toZoom":        {ImpactData},
}

// ImpactsOf returns the sorted impacts of a field path.
func ImpactsOf(fields ...string) []Impact {
	set := map[Impact]struct{}{}
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "options.remoteData"):
			set[ImpactRemoteData] = struct{}{}
		case strings.HasPrefix(f, "options."):
			impacts, ok := fieldImpacts[f]
			if !ok {
				impacts = []Impact{ImpactData}
			}
			for _, i := range impacts {
				set[i] = struct{}{}
			}
		default:
			// feature properties
			set[ImpactData] = struct{}{}
		}
	}
	out := make([]Impact, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EditFieldChanged reacts to edited fields: option paths like
// "options.color" or feature property names. Remote data changes refetch
// the source, bypassing the already loaded check.
func (l *DataLayer) EditFieldChanged(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	impacts := map[Impact]bool{}
	for _, i := range ImpactsOf(fields...) {
		impacts[i] = true
	}

	if contains(fields, "options.sortKey") {
		l.mu.Lock()
		l.features.Reindex(l.options.GetSortKey(), l.locale)
		l.mu.Unlock()
	}
	if impacts[ImpactUI] {
		l.renderer.LayersChanged()
	}
	switch {
	case impacts[ImpactRebuild]:
		l.renderer.Rebuild(l)
	case impacts[ImpactData]:
		l.renderer.Redraw(l, fields)
	}
	if impacts[ImpactRemoteData] {
		return l.FetchRemoteData(ctx, true)
	}
	return nil
}

// changedFields lists the option paths whose value differs between a and b.
func changedFields(a, b Options) []string {
	seen := map[string]struct{}{}
	for _, f := range append(a.Fields(), b.Fields()...) {
		seen[f] = struct{}{}
	}
	av, bv := flatten(a), flatten(b)
	var out []string
	for f := range seen {
		if !reflect.DeepEqual(av[f], bv[f]) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// flatten maps option paths, as returned by Fields, to their values.
func flatten(o Options) map[string]interface{} {
	m := map[string]interface{}{}
	raw, err := o.MarshalJSON()
	if err != nil {
		return m
	}
	var top map[string]interface{}
	if err := json.Unmarshal(raw, &top); err != nil {
		return m
	}
	for k, v := range top {
		if k == "remoteData" {
			if rd, ok := v.(map[string]interface{}); ok {
				for rk, rv := range rd {
					m["options.remoteData."+rk] = rv
				}
				continue
			}
		}
		m["options."+k] = v
	}
	return m
}

func contains(ss []string, s string) bool {
	for i := range ss {
		if ss[i] == s {
			return true
		}
	}
	return false
}
