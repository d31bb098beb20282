package eval

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/store"
)

// Condition is a single where clause.
type Condition struct {
	Field string
	Op    document.Operator
	Value any
}

// Plan accumulates query builder calls. Its methods return modified copies so
// a Plan can back an immutable store.Query.
type Plan struct {
	Conditions []Condition
	OrderBy    string
	Limit      int
	After      document.Cursor
}

// Where returns a copy of the plan with an extra condition.
func (p Plan) Where(field string, op document.Operator, value any) Plan {
	p.Conditions = append(slices.Clip(p.Conditions), Condition{Field: field, Op: op, Value: value})
	return p
}

// WithOrderBy returns a copy of the plan sorted by field.
func (p Plan) WithOrderBy(field string) Plan {
	p.OrderBy = field
	return p
}

// WithLimit returns a copy of the plan bounded to n documents.
func (p Plan) WithLimit(n int) Plan {
	p.Limit = n
	return p
}

// WithStartAfter returns a copy of the plan resuming after cursor.
func (p Plan) WithStartAfter(cursor document.Cursor) Plan {
	p.After = cursor
	return p
}

// LookupFunc fetches a single document by handle, used to resolve cursors.
type LookupFunc func(handle string) (store.Snapshot, bool, error)

// Execute filters, orders, resumes and limits docs according to the plan.
// Without OrderBy documents are ordered by handle. With OrderBy, documents
// lacking the field are excluded and ties break on the handle.
func Execute(p Plan, docs []store.Snapshot, lookup LookupFunc) ([]store.Snapshot, error) {
	for _, c := range p.Conditions {
		if !c.Op.Valid() {
			return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("unsupported operator %q", c.Op))
		}
	}

	out := make([]store.Snapshot, 0, len(docs))
	for _, d := range docs {
		if !d.Exists || !MatchAll(d.Data, p.Conditions) {
			continue
		}
		if p.OrderBy != "" {
			if _, ok := Lookup(d.Data, p.OrderBy); !ok {
				continue
			}
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], p.OrderBy)
	})

	if !p.After.IsZero() {
		handle, err := p.After.Handle()
		if err != nil {
			return nil, store.Mark(store.ErrInvalidArgument, err)
		}
		anchor, found, err := lookup(handle)
		if err != nil {
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
		if !found {
			return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("cursor document %q not found", handle))
		}
		if p.OrderBy != "" {
			if _, ok := Lookup(anchor.Data, p.OrderBy); !ok {
				return nil, store.Mark(store.ErrInvalidArgument,
					fmt.Errorf("cursor document %q has no field %q", handle, p.OrderBy))
			}
		}
		start := sort.Search(len(out), func(i int) bool {
			return less(anchor, out[i], p.OrderBy)
		})
		out = out[start:]
	}

	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func less(a, b store.Snapshot, orderBy string) bool {
	if orderBy != "" {
		av, _ := Lookup(a.Data, orderBy)
		bv, _ := Lookup(b.Data, orderBy)
		if c := Compare(av, bv); c != 0 {
			return c < 0
		}
	}
	return a.ID < b.ID
}

// MatchAll reports whether data satisfies every condition.
func MatchAll(data map[string]any, conds []Condition) bool {
	for _, c := range conds {
		if !Match(data, c) {
			return false
		}
	}
	return true
}

// Match reports whether data satisfies c. A missing field never matches;
// "!=" and "not-in" also exclude null values.
func Match(data map[string]any, c Condition) bool {
	v, ok := Lookup(data, c.Field)
	if !ok {
		return false
	}
	v = deref(v)
	switch c.Op {
	case document.OpEqual:
		return Equal(v, c.Value)
	case document.OpNotEqual:
		return v != nil && !Equal(v, c.Value)
	case document.OpLess:
		return Comparable(v, c.Value) && Compare(v, c.Value) < 0
	case document.OpLessOrEqual:
		return Comparable(v, c.Value) && Compare(v, c.Value) <= 0
	case document.OpGreater:
		return Comparable(v, c.Value) && Compare(v, c.Value) > 0
	case document.OpGreaterOrEqual:
		return Comparable(v, c.Value) && Compare(v, c.Value) >= 0
	case document.OpIn:
		return containsEqual(candidates(c.Value), v)
	case document.OpNotIn:
		return v != nil && !containsEqual(candidates(c.Value), v)
	case document.OpArrayContains:
		return containsEqual(AsList(v), c.Value)
	case document.OpArrayContainsAny:
		elems := AsList(v)
		for _, want := range candidates(c.Value) {
			if containsEqual(elems, want) {
				return true
			}
		}
		return false
	}
	return false
}

func candidates(v any) []any {
	if list := AsList(v); list != nil {
		return list
	}
	return []any{v}
}

func containsEqual(list []any, v any) bool {
	for _, e := range list {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// Lookup resolves a dotted field path through nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	if v, ok := data[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
