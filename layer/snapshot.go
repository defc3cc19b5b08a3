package layer

import (
	"encoding/json"
	"strconv"

	"github.com/atlasdatatech/layersync/feature"
	"github.com/atlasdatatech/layersync/transport"
)

const (
	// OptionsMember is the collection member carrying the layer options.
	OptionsMember = "_umap_options"
	// legacyOptionsMember is the name older servers used for OptionsMember.
	legacyOptionsMember = "_storage"
)

// Form field names of a save request.
const (
	FieldName          = "name"
	FieldDisplayOnLoad = "display_on_load"
	FieldRank          = "rank"
	FieldSettings      = "settings"
	FieldGeoJSON       = "geojson"
)

// Snapshot is the full serializable state of a layer: options and every
// feature. Saves always send a whole snapshot, never a diff.
type Snapshot struct {
	LayerID  string
	Options  Options
	Features []*feature.Feature
}

// settings is the options object as stored on the server, with the layer id.
func (s Snapshot) settings() (map[string]interface{}, error) {
	raw, err := json.Marshal(s.Options)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["id"] = s.LayerID
	return m, nil
}

// Collection returns the features with the options envelope attached.
func (s Snapshot) Collection() (feature.Collection, error) {
	c := feature.NewCollection(s.Features)
	settings, err := s.settings()
	if err != nil {
		return c, err
	}
	err = c.SetMember(OptionsMember, settings)
	return c, err
}

// Form encodes the snapshot as the fields of a save request.
func (s Snapshot) Form(rank int) (transport.Form, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	c, err := s.Collection()
	if err != nil {
		return nil, err
	}
	geojson, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return transport.Form{
		{Name: FieldName, Value: s.Options.GetName()},
		{Name: FieldDisplayOnLoad, Value: strconv.FormatBool(s.Options.GetDisplayOnLoad())},
		{Name: FieldRank, Value: strconv.Itoa(rank)},
		{Name: FieldSettings, Value: string(settingsJSON)},
		{Name: FieldGeoJSON, Value: string(geojson), Filename: "blob"},
	}, nil
}

// OptionsFromCollection reads the options envelope of a payload, accepting
// the legacy member name. It reports false if there is no envelope.
func OptionsFromCollection(c *feature.Collection) (Options, bool, error) {
	var o Options
	for _, name := range []string{OptionsMember, legacyOptionsMember} {
		ok, err := c.Member(name, &o)
		if err != nil {
			return Options{}, true, err
		}
		if ok {
			return o, true, nil
		}
	}
	return Options{}, false, nil
}

func cloneFeatures(fs []*feature.Feature) []*feature.Feature {
	out := make([]*feature.Feature, len(fs))
	for i := range fs {
		out[i] = fs[i].Clone()
	}
	return out
}
