package input

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Controls is a snapshot of operator inputs (stick axes, buttons) taken at
// one instant. The engine never interprets it; the actuator does.
type Controls map[string]any

// Sample is one timestamped control snapshot.
type Sample struct {
	RecordedAt float64  `json:"recorded_at"` // seconds since the session started
	Controls   Controls `json:"controls"`
}

// NewSample builds a Sample from a deep, normalised copy of controls so
// later mutation by the caller cannot reach the recorded value.
func NewSample(recordedAt float64, controls map[string]any) Sample {
	return Sample{
		RecordedAt: recordedAt,
		Controls:   NormalizeControls(controls),
	}
}

// Equal reports whether two samples carry the same timestamp and the same
// control values.
func (s Sample) Equal(o Sample) bool {
	if s.RecordedAt != o.RecordedAt {
		return false
	}
	return reflect.DeepEqual(NormalizeControls(s.Controls), NormalizeControls(o.Controls))
}

// Float returns the numeric control named key, or 0 when it is missing or
// not a number.
func (c Controls) Float(key string) float64 {
	f, _ := toFloat(c[key])
	return f
}

// NormalizeControls returns a deep copy of c in which every number is a
// float64, every nested object (any string-keyed map) is a map[string]any
// and every list (any slice or array) is a []any. Both codecs decode into exactly this shape. A nil map yields an
// empty, non-nil Controls.
func NormalizeControls(c map[string]any) Controls {
	out := make(Controls, len(c))
	for k, v := range c {
		out[k] = normalize(v)
	}
	return out
}

// CloneControls is NormalizeControls for an existing Controls value.
func CloneControls(c Controls) Controls {
	return NormalizeControls(c)
}

func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch t := v.(type) {
	case nil, bool, string:
		return v
	case Controls:
		return map[string]any(NormalizeControls(t))
	case map[string]any:
		return map[string]any(NormalizeControls(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return normalizeValue(reflect.ValueOf(v))
}

// normalizeValue handles typed containers ([]bool, [3]float32,
// map[string]int, ...) and pointers. Anything else is kept as-is.
func normalizeValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.Interface {
				k = k.Elem()
			}
			if k.Kind() != reflect.String {
				continue
			}
			m[k.String()] = normalize(iter.Value().Interface())
		}
		return m
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Struct:
		// Structs take the shape their JSON encoding gives them.
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return rv.Interface()
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return rv.Interface()
		}
		return normalize(out)
	default:
		return rv.Interface()
	}
}

// NonFinite returns the path of the first NaN or infinite number in c,
// for example "axes[2]" or "trigger".
func NonFinite(c Controls) (string, bool) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if path, ok := nonFinite(k, normalize(c[k])); ok {
			return path, true
		}
	}
	return "", false
}

func nonFinite(path string, v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return path, true
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if p, ok := nonFinite(path+"."+k, t[k]); ok {
				return p, true
			}
		}
	case []any:
		for i, e := range t {
			if p, ok := nonFinite(path+"["+strconv.Itoa(i)+"]", e); ok {
				return p, true
			}
		}
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
