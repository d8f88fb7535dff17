package types

import "reflect"

// Params maps request field names to scalar values.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Compact returns a copy of p without nil values. Non-nil pointers are
// dereferenced so the copy only holds plain scalars.
func (p Params) Compact() Params {
	out := make(Params, len(p))
	for k, v := range p {
		value, ok := scalar(v)
		if !ok {
			continue
		}
		out[k] = value
	}
	return out
}

// Merge copies the non-nil entries of src into p, skipping any reserved fields.
func (p Params) Merge(src Params, reserved ...string) {
	for k, v := range src.Compact() {
		if isReserved(k, reserved) {
			continue
		}
		p[k] = v
	}
}

// String returns the value of a string field, or "" when absent.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

func isReserved(key string, reserved []string) bool {
	for _, r := range reserved {
		if key == r {
			return true
		}
	}
	return false
}

func scalar(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	return rv.Interface(), true
}
