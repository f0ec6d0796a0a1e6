package observable

import "reflect"

// Value is the keyed record held by a Container.
type Value map[string]any

// Clone returns a shallow copy of v. A nil Value clones to an empty one.
func (v Value) Clone() Value {
	out := make(Value, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Keys returns the top-level keys of v as a DependencySet.
func (v Value) Keys() DependencySet {
	set := make(DependencySet, len(v))
	for k := range v {
		set[k] = struct{}{}
	}
	return set
}

// asValue converts a resolved update into a Value.
// Only keyed mappings are accepted: Value, map[string]any, and map[any]any
// whose keys are all strings (what YAML decoders hand back).
func asValue(raw any) (Value, error) {
	switch m := raw.(type) {
	case Value:
		if m == nil {
			return nil, newInvalidValueError(raw)
		}
		return m, nil
	case map[string]any:
		if m == nil {
			return nil, newInvalidValueError(raw)
		}
		return Value(m), nil
	case map[any]any:
		if m == nil {
			return nil, newInvalidValueError(raw)
		}
		out := make(Value, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, newInvalidValueError(raw)
			}
			out[key] = val
		}
		return out, nil
	default:
		return nil, newInvalidValueError(raw)
	}
}

// typeName describes raw for error messages.
func typeName(raw any) string {
	if raw == nil {
		return "nil"
	}
	t := reflect.TypeOf(raw)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "array (" + t.String() + ")"
	case reflect.Map:
		if reflect.ValueOf(raw).IsNil() {
			return "nil map (" + t.String() + ")"
		}
	}
	return t.String()
}
