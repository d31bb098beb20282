// Package eval evaluates document queries in process. Backends that cannot
// express a query natively (the in-memory store, DynamoDB scans) share it so
// filters, ordering and cursor resumption behave the same everywhere.
package eval

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Values of different types order by type rank first:
// null < bool < number < timestamp < string < bytes < array < map.
const (
	rankNull = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankBytes
	rankArray
	rankMap
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNull
	}
	switch v.(type) {
	case bool:
		return rankBool
	case time.Time, *time.Time:
		return rankTime
	case string:
		return rankString
	case []byte:
		return rankBytes
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rankNumber
	case reflect.Bool:
		return rankBool
	case reflect.String:
		return rankString
	case reflect.Slice, reflect.Array:
		return rankArray
	case reflect.Map:
		return rankMap
	case reflect.Ptr:
		if rv.IsNil() {
			return rankNull
		}
		return rank(rv.Elem().Interface())
	}
	return rankOther
}

// Comparable reports whether a and b share a type rank, which range
// operators require.
func Comparable(a, b any) bool {
	return rank(a) == rank(b)
}

// Equal reports whether a and b hold the same value. Numbers compare by value
// regardless of their Go type.
func Equal(a, b any) bool {
	return rank(a) == rank(b) && Compare(a, b) == 0
}

// Compare orders two values, returning -1, 0 or 1. Non-nil pointers compare
// by the value they point to and nil pointers as null.
func Compare(a, b any) int {
	a, b = deref(a), deref(b)
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ab, bb := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		return compareNumbers(a, b)
	case rankTime:
		ta, tb := asTime(a), asTime(b)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String())
	case rankBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankArray:
		la, lb := AsList(a), AsList(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := Compare(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(la), len(lb))
	case rankMap:
		return compareMaps(a, b)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return v
	}
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func compareNumbers(a, b any) int {
	ia, aInt := asInt64(a)
	ib, bInt := asInt64(b)
	if aInt && bInt {
		return cmpInt64(ia, ib)
	}
	fa, fb := asFloat(a), asFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func compareMaps(a, b any) int {
	ma, mb := asMap(a), asMap(b)
	ka, kb := sortedKeys(ma), sortedKeys(mb)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := Compare(ma[ka[i]], mb[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

// AsList returns the elements of a slice or array value, or nil.
func AsList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return nil
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	rv := reflect.ValueOf(v)
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func asFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		return *t
	}
	return time.Time{}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
