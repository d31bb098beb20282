package eval

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/store"
)

func snap(id string, data map[string]any) store.Snapshot {
	return store.Snapshot{ID: id, Exists: true, Data: data}
}

func lookupIn(docs []store.Snapshot) LookupFunc {
	return func(handle string) (store.Snapshot, bool, error) {
		for _, d := range docs {
			if d.ID == handle {
				return d, true, nil
			}
		}
		return store.Snapshot{}, false, nil
	}
}

func ids(docs []store.Snapshot) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestCompare_TypeOrderAndNumbers(t *testing.T) {
	now := time.Now()
	ordered := []any{nil, false, true, -1, 0.5, int64(2), now, "a", "b", []byte("x"), []any{1}, map[string]any{"k": 1}}
	for i := 0; i+1 < len(ordered); i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Fatalf("expected %v < %v", ordered[i], ordered[i+1])
		}
	}
	if !Equal(int32(3), 3.0) {
		t.Fatal("numbers of different Go types must compare by value")
	}
	if Equal("3", 3) {
		t.Fatal("string and number must not be equal")
	}
}

func TestMatch_Operators(t *testing.T) {
	active, retries, nickname := true, 3, "lace"
	var unset *int
	data := map[string]any{
		"active":   &active,
		"retries":  &retries,
		"nickname": &nickname,
		"unset":    unset,
		"age":      30,
		"name":     "ada",
		"tags":     []any{"go", "db"},
		"owner":    nil,
		"profile":  map[string]any{"city": "turin"},
	}
	tests := []struct {
		cond Condition
		want bool
	}{
		{Condition{"age", document.OpEqual, int64(30)}, true},
		{Condition{"age", document.OpNotEqual, 31}, true},
		{Condition{"owner", document.OpNotEqual, "x"}, false},
		{Condition{"age", document.OpLess, 31}, true},
		{Condition{"age", document.OpLessOrEqual, 30}, true},
		{Condition{"age", document.OpGreater, "10"}, false},
		{Condition{"age", document.OpGreaterOrEqual, 30.0}, true},
		{Condition{"name", document.OpIn, []any{"bob", "ada"}}, true},
		{Condition{"name", document.OpNotIn, []any{"bob"}}, true},
		{Condition{"tags", document.OpArrayContains, "go"}, true},
		{Condition{"tags", document.OpArrayContains, "rust"}, false},
		{Condition{"tags", document.OpArrayContainsAny, []any{"rust", "db"}}, true},
		{Condition{"name", document.OpArrayContains, "a"}, false},
		{Condition{"missing", document.OpEqual, nil}, false},
		{Condition{"profile.city", document.OpEqual, "turin"}, true},
		{Condition{"active", document.OpEqual, true}, true},
		{Condition{"active", document.OpNotEqual, false}, true},
		{Condition{"active", document.OpLess, true}, false},
		{Condition{"retries", document.OpEqual, 3}, true},
		{Condition{"retries", document.OpGreater, int64(2)}, true},
		{Condition{"retries", document.OpIn, []any{1, 3}}, true},
		{Condition{"age", document.OpEqual, &retries}, false},
		{Condition{"age", document.OpGreater, &retries}, true},
		{Condition{"nickname", document.OpEqual, "lace"}, true},
		{Condition{"unset", document.OpEqual, nil}, true},
		{Condition{"unset", document.OpNotEqual, 1}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s %v", tt.cond.Field, tt.cond.Op, tt.cond.Value), func(t *testing.T) {
			if got := Match(data, tt.cond); got != tt.want {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecute_OrderCursorLimit(t *testing.T) {
	var docs []store.Snapshot
	for i := 10; i >= 1; i-- {
		docs = append(docs, snap(fmt.Sprintf("doc-%02d", i), map[string]any{"seq": i}))
	}
	docs = append(docs, snap("no-seq", map[string]any{"other": 1}))

	first, err := Execute(Plan{}.WithOrderBy("seq").WithLimit(4), docs, lookupIn(docs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(first); fmt.Sprint(got) != "[doc-01 doc-02 doc-03 doc-04]" {
		t.Fatalf("unexpected first page: %v", got)
	}

	second, err := Execute(Plan{}.WithOrderBy("seq").WithLimit(4).WithStartAfter(document.NewCursor("doc-04")), docs, lookupIn(docs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(second); fmt.Sprint(got) != "[doc-05 doc-06 doc-07 doc-08]" {
		t.Fatalf("unexpected second page: %v", got)
	}
}

func TestExecute_DefaultOrderIsHandle(t *testing.T) {
	docs := []store.Snapshot{snap("c", nil), snap("a", nil), snap("b", nil), {ID: "ghost"}}
	out, err := Execute(Plan{}, docs, lookupIn(docs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ids(out)) != "[a b c]" {
		t.Fatalf("unexpected order: %v", ids(out))
	}
}

func TestExecute_MissingCursorDocument(t *testing.T) {
	docs := []store.Snapshot{snap("a", map[string]any{"seq": 1})}
	_, err := Execute(Plan{}.WithStartAfter(document.NewCursor("gone")), docs, lookupIn(docs))
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExecute_RejectsUnknownOperator(t *testing.T) {
	_, err := Execute(Plan{}.Where("a", "~=", 1), nil, lookupIn(nil))
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPlan_Immutable(t *testing.T) {
	base := Plan{}.Where("a", document.OpEqual, 1)
	left := base.Where("b", document.OpEqual, 2)
	right := base.Where("c", document.OpEqual, 3)
	if len(base.Conditions) != 1 || left.Conditions[1].Field != "b" || right.Conditions[1].Field != "c" {
		t.Fatalf("plans share state: base=%v left=%v right=%v", base.Conditions, left.Conditions, right.Conditions)
	}
}
