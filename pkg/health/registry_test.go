package health

import (
	"context"
	"reflect"
	"testing"
	"time"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Name: m.name, Status: m.status, Timestamp: time.Now()}
}

func (m *mockChecker) Name() string { return m.name }

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry(&mockChecker{name: "store", status: StatusUnhealthy})
	r.Register(&mockChecker{name: "store", status: StatusHealthy})

	if names := r.Names(); !reflect.DeepEqual(names, []string{"store"}) {
		t.Fatalf("expected one checker, got %v", names)
	}
	if result := r.Check(context.Background()); result.Status != StatusHealthy {
		t.Fatalf("expected replacement checker to run, got %s", result.Status)
	}
}

func TestRegistry_CheckAggregates(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for i, s := range tt.statuses {
				r.Register(&mockChecker{name: string(rune('c' - i)), status: s})
			}

			result := r.Check(context.Background())
			if result.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, result.Status)
			}
			if result.IsHealthy() != (tt.want == StatusHealthy) {
				t.Fatalf("IsHealthy mismatch for %s", result.Status)
			}
			if len(result.Checks) != len(tt.statuses) {
				t.Fatalf("expected %d results, got %d", len(tt.statuses), len(result.Checks))
			}
			for i := 1; i < len(result.Checks); i++ {
				if result.Checks[i-1].Name > result.Checks[i].Name {
					t.Fatalf("results not sorted: %v", result.Checks)
				}
			}
		})
	}
}

func TestRegistry_Names_Sorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "store"} {
		r.Register(&mockChecker{name: name, status: StatusHealthy})
	}
	want := []string{"alpha", "store", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
