package registry

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// TypeKey Key of a Record holding the component type name.
const TypeKey = "type"

var (
	// ErrMissingType Record has no usable "type" key
	ErrMissingType = errors.New("record has no type")
	// ErrFieldType Record value has unexpected type
	ErrFieldType = errors.New("unexpected record value type")
)

// Record Declarative description of a component: a string-keyed map where
// the "type" key names the component and the rest are its arguments.
type Record map[string]interface{}

// Type Returns the component type name of the record.
func (r Record) Type() (string, error) {
	v, ok := r[TypeKey]
	if !ok {
		return "", ErrMissingType
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.Wrapf(ErrMissingType, "type is %T", v)
	}
	return s, nil
}

// Has Reports whether the record holds the key.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys Returns sorted keys of the record.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone Returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return cloneValue(r).(Record)
}

// Without Returns a shallow copy of the record without listed keys.
func (r Record) Without(keys ...string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Record:
		out := make(Record, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i := range t {
			out[i] = t[i].Clone()
		}
		return out
	default:
		return v
	}
}

// String Returns string value under the key or the fallback when absent.
func (r Record) String(key, fallback string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldErr(key, "string", v)
	}
	return s, nil
}

// Int Returns integer value under the key or the fallback when absent.
// Integral floats are accepted.
func (r Record) Int(key string, fallback int) (int, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fieldErr(key, "int", v)
	}
	return n, nil
}

// Float Returns float value under the key or the fallback when absent.
func (r Record) Float(key string, fallback float64) (float64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fieldErr(key, "float", v)
	}
	return f, nil
}

// Bool Returns boolean value under the key or the fallback when absent.
func (r Record) Bool(key string, fallback bool) (bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fieldErr(key, "bool", v)
	}
	return b, nil
}

// Strings Returns list of strings under the key. A single string is promoted to a list.
func (r Record) Strings(key string) ([]string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return append([]string(nil), t...), nil
	case []interface{}:
		out := make([]string, len(t))
		for i := range t {
			s, ok := t[i].(string)
			if !ok {
				return nil, fieldErr(fmt.Sprintf("%s[%d]", key, i), "string", t[i])
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fieldErr(key, "[]string", v)
	}
}

// Ints Returns list of integers under the key. A single integer is promoted to a list.
func (r Record) Ints(key string) ([]int, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	if n, ok := toInt(v); ok {
		return []int{n}, nil
	}
	switch t := v.(type) {
	case []int:
		return append([]int(nil), t...), nil
	case []interface{}:
		out := make([]int, len(t))
		for i := range t {
			n, ok := toInt(t[i])
			if !ok {
				return nil, fieldErr(fmt.Sprintf("%s[%d]", key, i), "int", t[i])
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fieldErr(key, "[]int", v)
	}
}

// Floats Returns list of floats under the key. A single number is promoted to a list.
func (r Record) Floats(key string) ([]float64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	if f, ok := toFloat(v); ok {
		return []float64{f}, nil
	}
	switch t := v.(type) {
	case []float64:
		return append([]float64(nil), t...), nil
	case []interface{}:
		out := make([]float64, len(t))
		for i := range t {
			f, ok := toFloat(t[i])
			if !ok {
				return nil, fieldErr(fmt.Sprintf("%s[%d]", key, i), "float", t[i])
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fieldErr(key, "[]float", v)
	}
}

// Record Returns nested record under the key. Nil when absent.
func (r Record) Record(key string) (Record, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	rec, ok := AsRecord(v)
	if !ok {
		return nil, fieldErr(key, "record", v)
	}
	return rec, nil
}

// Records Returns list of nested records under the key.
func (r Record) Records(key string) ([]Record, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []Record:
		return t, nil
	case []interface{}:
		out := make([]Record, len(t))
		for i := range t {
			rec, ok := AsRecord(t[i])
			if !ok {
				return nil, fieldErr(fmt.Sprintf("%s[%d]", key, i), "record", t[i])
			}
			out[i] = rec
		}
		return out, nil
	default:
		return nil, fieldErr(key, "[]record", v)
	}
}

// StringMap Returns string to string mapping under the key.
func (r Record) StringMap(key string) (map[string]string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, nil
	default:
		rec, ok := AsRecord(v)
		if !ok {
			return nil, fieldErr(key, "map[string]string", v)
		}
		out := make(map[string]string, len(rec))
		for k, item := range rec {
			s, ok := item.(string)
			if !ok {
				return nil, fieldErr(key+"."+k, "string", item)
			}
			out[k] = s
		}
		return out, nil
	}
}

// AsRecord Converts map-like values produced by YAML decoding into Record.
func AsRecord(v interface{}) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]interface{}:
		return Record(t), true
	case map[interface{}]interface{}:
		out := make(Record, len(t))
		for k, item := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case float32:
		if float64(t) != math.Trunc(float64(t)) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

func fieldErr(key, want string, got interface{}) error {
	return errors.Wrapf(ErrFieldType, "key '%s': want %s, got %T", key, want, got)
}
