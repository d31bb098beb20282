package document

import (
	"math"
	"reflect"
)

// NormalizeOption tunes NormalizeFilters.
type NormalizeOption func(*normalizeOptions)

type normalizeOptions struct {
	keepFalsyScalars bool
}

// KeepFalsyScalars keeps scalar filters whose value is 0, "" or false.
// Nil scalars are still dropped.
func KeepFalsyScalars() NormalizeOption {
	return func(o *normalizeOptions) {
		o.keepFalsyScalars = true
	}
}

// NormalizeFilters removes filters that must not reach the backing store and
// returns the survivors in input order together with the dropped ones.
//
// List values lose their nil, "" and empty-list elements and the filter is
// dropped when nothing remains. Scalar values are dropped when nil or falsy
// (0, "", false, NaN) unless KeepFalsyScalars is given. Callers cannot filter
// by a falsy scalar under the default rule.
func NormalizeFilters(filters []Filter, opts ...NormalizeOption) (kept, dropped []Filter) {
	var o normalizeOptions
	for _, opt := range opts {
		opt(&o)
	}

	kept = make([]Filter, 0, len(filters))
	for _, f := range filters {
		switch v := f.Value.(type) {
		case List:
			cleaned := compactList(v.Vs)
			if len(cleaned) == 0 {
				dropped = append(dropped, f)
				continue
			}
			f.Value = List{Vs: cleaned}
			kept = append(kept, f)
		case Scalar:
			if isNil(v.V) || (!o.keepFalsyScalars && IsFalsy(v.V)) {
				dropped = append(dropped, f)
				continue
			}
			kept = append(kept, f)
		default:
			dropped = append(dropped, f)
		}
	}
	return kept, dropped
}

func compactList(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if isEmptyElement(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// isEmptyElement reports list elements that count as undefined: nil, empty
// strings and empty nested lists. 0 and false are kept.
func isEmptyElement(v any) bool {
	if isNil(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if _, isBytes := v.([]byte); !isBytes {
			return rv.Len() == 0
		}
	}
	return false
}

// IsFalsy reports whether v is nil, false, an empty string, a numeric zero or NaN.
func IsFalsy(v any) bool {
	if isNil(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
