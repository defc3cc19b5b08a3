package store

// Config is the raw config table of a backend, as decoded from TOML.
type Config map[string]interface{}

func (c Config) lookup(key string, def interface{}) (interface{}, error) {
	v, ok := c[key]
	if !ok || v == nil {
		if def == nil {
			return nil, ErrKeyRequired(key)
		}
		return def, nil
	}
	return v, nil
}

// String returns the string under key. def is used when the key is absent;
// a nil def makes the key required.
func (c Config) String(key string, def *string) (string, error) {
	var d interface{}
	if def != nil {
		d = *def
	}
	v, err := c.lookup(key, d)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrKeyType{Key: key, Value: v, Expected: "string"}
	}
	return s, nil
}

// Int returns the integer under key. TOML integers decode as int64.
func (c Config) Int(key string, def *int) (int, error) {
	var d interface{}
	if def != nil {
		d = *def
	}
	v, err := c.lookup(key, d)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, ErrKeyType{Key: key, Value: v, Expected: "int"}
}

// Bool returns the boolean under key.
func (c Config) Bool(key string, def *bool) (bool, error) {
	var d interface{}
	if def != nil {
		d = *def
	}
	v, err := c.lookup(key, d)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, ErrKeyType{Key: key, Value: v, Expected: "bool"}
	}
	return b, nil
}
