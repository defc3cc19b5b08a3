package layer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/go-playground/colors.v1"

	"github.com/atlasdatatech/layersync/remote"
)

// Edit modes.
const (
	EditModeDisabled = "disabled"
	EditModeSimple   = "simple"
	EditModeAdvanced = "advanced"
)

// DefaultSortKey is used when a layer has no sort key.
const DefaultSortKey = "name"

// Options is the configuration bag of a layer. Unset fields are nil; keys this
// version does not know about are kept in Extra and written back untouched.
type Options struct {
	Name          *string            `json:"name,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Type          *string            `json:"type,omitempty"`
	DisplayOnLoad *bool              `json:"displayOnLoad,omitempty"`
	Browsable     *bool              `json:"browsable,omitempty"`
	InCaption     *bool              `json:"inCaption,omitempty"`
	Color         *string            `json:"color,omitempty"`
	FillColor     *string            `json:"fillColor,omitempty"`
	Opacity       *float64           `json:"opacity,omitempty"`
	Weight        *float64           `json:"weight,omitempty"`
	SortKey       *string            `json:"sortKey,omitempty"`
	LabelKey      *string            `json:"labelKey,omitempty"`
	FromZoom      *int               `json:"fromZoom,omitempty"`
	ToZoom        *int               `json:"toZoom,omitempty"`
	EditMode      *string            `json:"editMode,omitempty"`
	RemoteData    *remote.Descriptor `json:"remoteData,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

// optionKeys are the json names of the typed fields, plus "id" which travels
// in the envelope but belongs to the layer.
var optionKeys = func() map[string]struct{} {
	keys := map[string]struct{}{"id": {}}
	t := reflect.TypeOf(Options{})
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

type optionsAlias Options

// MarshalJSON implements json.Marshaler.
func (o Options) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(optionsAlias(o))
	if err != nil {
		return nil, err
	}
	if len(o.Extra) == 0 {
		return raw, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for k, v := range o.Extra {
		if _, known := optionKeys[k]; known {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler. Legacy keys are reconciled.
func (o *Options) UnmarshalJSON(data []byte) error {
	var a optionsAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*o = Options(a)
	o.Extra = nil
	for k, v := range m {
		if _, known := optionKeys[k]; known {
			continue
		}
		if o.Extra == nil {
			o.Extra = map[string]interface{}{}
		}
		o.Extra[k] = v
	}
	o.migrate()
	return nil
}

// migrate folds legacy aliases into their current fields.
func (o *Options) migrate() {
	if v, ok := o.Extra["hidden"].(bool); ok {
		if o.DisplayOnLoad == nil {
			show := !v
			o.DisplayOnLoad = &show
		}
		delete(o.Extra, "hidden")
	}
	for alias, target := range map[string]**int{"minZoom": &o.FromZoom, "maxZoom": &o.ToZoom} {
		v, ok := o.Extra[alias].(float64)
		if !ok {
			continue
		}
		if *target == nil {
			z := int(v)
			*target = &z
		}
		delete(o.Extra, alias)
	}
	if len(o.Extra) == 0 {
		o.Extra = nil
	}
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	raw, err := json.Marshal(o)
	if err != nil {
		// Options only holds json values, so this is a programming error.
		panic(fmt.Sprintf("layer: cloning options: %v", err))
	}
	var out Options
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("layer: cloning options: %v", err))
	}
	return out
}

// Merge returns o with every field set in patch overriding the one in o.
// RemoteData is replaced as a whole; Extra is merged key by key.
func (o Options) Merge(patch Options) Options {
	out := o.Clone()
	p := patch.Clone()
	ov, pv := reflect.ValueOf(&out).Elem(), reflect.ValueOf(p)
	for i := 0; i < pv.NumField(); i++ {
		f := pv.Field(i)
		if f.Kind() != reflect.Ptr || f.IsNil() {
			continue
		}
		ov.Field(i).Set(f)
	}
	for k, v := range p.Extra {
		if out.Extra == nil {
			out.Extra = map[string]interface{}{}
		}
		out.Extra[k] = v
	}
	return out
}

// Fields returns the option paths ("options.<key>") set in o, sorted. It is
// used to tell which subsystems an edit impacts.
func (o Options) Fields() []string {
	var out []string
	v, t := reflect.ValueOf(o), reflect.TypeOf(o)
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.Ptr || f.IsNil() {
			continue
		}
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name == "remoteData" {
			out = append(out, remoteDataFields(f.Interface().(*remote.Descriptor))...)
			continue
		}
		out = append(out, "options."+name)
	}
	for k := range o.Extra {
		out = append(out, "options."+k)
	}
	sort.Strings(out)
	return out
}

func remoteDataFields(d *remote.Descriptor) []string {
	raw, _ := json.Marshal(d)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	if len(m) == 0 {
		return []string{"options.remoteData"}
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, "options.remoteData."+k)
	}
	return out
}

// IsRemote reports whether the options describe a remote-mirror layer.
func (o Options) IsRemote() bool {
	return o.RemoteData.Valid()
}

// GetName returns the layer name, or "".
func (o Options) GetName() string {
	if o.Name == nil {
		return ""
	}
	return *o.Name
}

// GetDisplayOnLoad defaults to true.
func (o Options) GetDisplayOnLoad() bool {
	if o.DisplayOnLoad == nil {
		return true
	}
	return *o.DisplayOnLoad
}

// GetSortKey defaults to DefaultSortKey.
func (o Options) GetSortKey() string {
	if o.SortKey == nil || *o.SortKey == "" {
		return DefaultSortKey
	}
	return *o.SortKey
}

// GetEditMode defaults to EditModeAdvanced.
func (o Options) GetEditMode() string {
	if o.EditMode == nil || *o.EditMode == "" {
		return EditModeAdvanced
	}
	return *o.EditMode
}

// ErrInvalidOption reports an option value that failed validation.
type ErrInvalidOption struct {
	Field string
	Value interface{}
	Err   error
}

func (e ErrInvalidOption) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid option %v (%v): %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid option %v (%v)", e.Field, e.Value)
}

// Validate checks the typed fields. CSS colour names are accepted as they
// are; hex and rgb() notations must parse.
func (o Options) Validate() error {
	for field, c := range map[string]*string{"color": o.Color, "fillColor": o.FillColor} {
		if c == nil || *c == "" || isColorName(*c) {
			continue
		}
		if _, err := colors.Parse(*c); err != nil {
			return ErrInvalidOption{Field: field, Value: *c, Err: err}
		}
	}
	if o.Opacity != nil && (*o.Opacity < 0 || *o.Opacity > 1) {
		return ErrInvalidOption{Field: "opacity", Value: *o.Opacity}
	}
	if o.Weight != nil && *o.Weight < 0 {
		return ErrInvalidOption{Field: "weight", Value: *o.Weight}
	}
	if o.FromZoom != nil && o.ToZoom != nil && *o.FromZoom > *o.ToZoom {
		return ErrInvalidOption{Field: "fromZoom", Value: *o.FromZoom, Err: fmt.Errorf("greater than toZoom (%v)", *o.ToZoom)}
	}
	if o.EditMode != nil {
		switch *o.EditMode {
		case "", EditModeDisabled, EditModeSimple, EditModeAdvanced:
		default:
			return ErrInvalidOption{Field: "editMode", Value: *o.EditMode}
		}
	}
	if d := o.RemoteData; d != nil && d.URL != "" && d.Format == "" {
		return ErrInvalidOption{Field: "remoteData.format", Value: "", Err: fmt.Errorf("required with remoteData.url")}
	}
	return nil
}

func isColorName(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// String, Bool, Float and Int return pointers to their argument. They make
// option literals readable.
func String(s string) *string  { return &s }
func Bool(b bool) *bool        { return &b }
func Float(f float64) *float64 { return &f }
func Int(i int) *int           { return &i }
