package document

import (
	"fmt"
	"reflect"
)

// Operator is a comparison understood by the backing document store.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpLess             Operator = "<"
	OpLessOrEqual      Operator = "<="
	OpGreater          Operator = ">"
	OpGreaterOrEqual   Operator = ">="
	OpIn               Operator = "in"
	OpNotIn            Operator = "not-in"
	OpArrayContains    Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
)

// Operators returns every supported operator.
func Operators() []Operator {
	return []Operator{
		OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpIn, OpNotIn, OpArrayContains, OpArrayContainsAny,
	}
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpIn, OpNotIn, OpArrayContains, OpArrayContainsAny:
		return true
	}
	return false
}

// ParseOperator converts text to an Operator. "=" is accepted as "==".
func ParseOperator(s string) (Operator, error) {
	if s == "=" {
		return OpEqual, nil
	}
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// FilterValue is the value side of a Filter: either a Scalar or a List.
type FilterValue interface {
	// Raw returns the value in the shape handed to the backing store.
	Raw() any
	isFilterValue()
}

// Scalar is a single filter value.
type Scalar struct {
	V any
}

// List is a filter value made of several elements, used by membership
// operators such as "in" and "array-contains-any".
type List struct {
	Vs []any
}

func (s Scalar) Raw() any    { return s.V }
func (Scalar) isFilterValue() {}

func (l List) Raw() any    { return l.Vs }
func (List) isFilterValue() {}

// Filter is a single (field, operator, value) condition.
type Filter struct {
	Field string
	Op    Operator
	Value FilterValue
}

// Where builds a Filter, choosing List for slice and array values and Scalar
// for everything else. []byte is treated as a scalar.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: ValueOf(value)}
}

// ValueOf wraps a dynamic value into its FilterValue variant.
func ValueOf(value any) FilterValue {
	switch v := value.(type) {
	case FilterValue:
		return v
	case nil:
		return Scalar{}
	case []byte:
		return Scalar{V: v}
	case []any:
		return List{Vs: v}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return List{}
		}
		vs := make([]any, rv.Len())
		for i := range vs {
			vs[i] = rv.Index(i).Interface()
		}
		return List{Vs: vs}
	default:
		return Scalar{V: value}
	}
}

func (f Filter) String() string {
	var raw any
	if f.Value != nil {
		raw = f.Value.Raw()
	}
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, raw)
}
