// Package health runs readiness checks against the document store and the
// guards in front of it.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string         `json:"name" yaml:"name"`
	Status    Status         `json:"status" yaml:"status"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Checker is implemented by every health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Registry holds checkers by name.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry(checkers ...Checker) *Registry {
	r := &Registry{checkers: make(map[string]Checker, len(checkers))}
	for _, c := range checkers {
		r.Register(c)
	}
	return r
}

// Register adds a checker, replacing any checker with the same name.
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// Names returns the registered checker names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every checker concurrently and reports the worst status.
// Results are ordered by name.
func (r *Registry) Check(ctx context.Context) AggregatedResult {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()
	sort.Slice(checkers, func(i, j int) bool { return checkers[i].Name() < checkers[j].Name() })

	start := time.Now()
	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, res := range results {
		if res.Status.rank() > overall.rank() {
			overall = res.Status
		}
	}
	return AggregatedResult{
		Status:    overall,
		Checks:    results,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

// AggregatedResult represents the aggregated result of all health checks
type AggregatedResult struct {
	Status    Status        `json:"status" yaml:"status"`
	Checks    []CheckResult `json:"checks" yaml:"checks"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// IsHealthy returns true if the overall status is healthy
func (r AggregatedResult) IsHealthy() bool {
	return r.Status == StatusHealthy
}
