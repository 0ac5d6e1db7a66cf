package state

import (
	"math"
	"reflect"
	"regexp"
	"time"
)

// Equal reports structural equality between two JSON-like values.
// Object keys are order-independent, array elements are order-dependent,
// times compare by instant, and regular expressions compare by source.
// Numeric values compare by magnitude across integer and float kinds, so
// int(1) and float64(1) are equal the way they are after a JSON round
// trip. NaN compares equal to NaN so that re-setting a NaN leaf does not
// register as a change.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case *regexp.Regexp:
		bv, ok := b.(*regexp.Regexp)
		if !ok || av == nil || bv == nil {
			return ok && av == bv
		}
		return av.String() == bv.String()
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, value := range av {
			other, present := bv[key]
			if !present || !Equal(value, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}

	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		if !bok {
			return false
		}
		if math.IsNaN(af) && math.IsNaN(bf) {
			return true
		}
		return af == bf
	}

	return reflect.DeepEqual(a, b)
}

// Clone returns a deep copy of a JSON-like value. Maps and slices are
// copied recursively; primitives, times, and regular expressions (which
// are immutable once compiled) pass through unchanged. Other map and
// slice kinds fall back to a reflective copy.
func Clone(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return CloneTree(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = Clone(v[i])
		}
		return out
	case string, bool, time.Time, *regexp.Regexp,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return cloneReflect(rv).Interface()
	}
	return value
}

// CloneTree deep-copies a state tree, preserving nil.
func CloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = Clone(value)
	}
	return out
}

func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneReflect(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	default:
		return v
	}
}

func asFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
