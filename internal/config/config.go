// Package config loads per-engine hyperparameter structs from YAML,
// replacing the source's opaque string-keyed hyperparameter dicts
// (spec.md §9) with one explicit configuration type per engine while
// still letting a CLI driver override individual fields by name (e.g.
// --set move_avg=5), the way ad hoc experiment scripts tend to need to.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Raw is a loaded-but-untyped YAML document: a set of named sections
// (one per engine/stage), each itself a string-keyed map of values.
type Raw map[string]map[string]interface{}

// Load reads a YAML file of the form:
//
//	preprocess: {subsequent_nr: 24, ...}
//	spc: {move_avg: 5, quantiles: [10, 90]}
//	threshold: {interp_len: 10000}
func Load(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return raw, nil
}

// Section returns the named section, or nil if absent.
func (r Raw) Section(name string) map[string]interface{} {
	if r == nil {
		return nil
	}
	return r[name]
}

// Override applies a single "section.field=value" assignment on top of an
// already-loaded Raw document, coercing value with spf13/cast since CLI
// overrides always arrive as strings but the target fields are typed
// (float64, int, bool).
func (r Raw) Override(section, field, value string) error {
	if r == nil {
		return fmt.Errorf("override %s.%s: config not loaded", section, field)
	}
	sec, ok := r[section]
	if !ok {
		sec = map[string]interface{}{}
		r[section] = sec
	}

	// Coerce against the existing value's type when one is present, so a
	// numeric field stays numeric and a boolean field stays boolean.
	if existing, ok := sec[field]; ok {
		switch existing.(type) {
		case int:
			n, err := cast.ToIntE(value)
			if err != nil {
				return fmt.Errorf("override %s.%s: %w", section, field, err)
			}
			sec[field] = n
			return nil
		case float64:
			f, err := cast.ToFloat64E(value)
			if err != nil {
				return fmt.Errorf("override %s.%s: %w", section, field, err)
			}
			sec[field] = f
			return nil
		case bool:
			b, err := cast.ToBoolE(value)
			if err != nil {
				return fmt.Errorf("override %s.%s: %w", section, field, err)
			}
			sec[field] = b
			return nil
		}
	}
	sec[field] = value
	return nil
}

// Float64 extracts a float64 field, coercing via cast since YAML may have
// decoded it as int when the value happened to be a whole number.
func Float64(sec map[string]interface{}, field string, def float64) float64 {
	v, ok := sec[field]
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Int extracts an int field via cast.
func Int(sec map[string]interface{}, field string, def int) int {
	v, ok := sec[field]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// Bool extracts a bool field via cast.
func Bool(sec map[string]interface{}, field string, def bool) bool {
	v, ok := sec[field]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// String extracts a string field via cast.
func String(sec map[string]interface{}, field string, def string) string {
	v, ok := sec[field]
	if !ok {
		return def
	}
	return cast.ToString(v)
}
