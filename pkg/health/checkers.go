package health

import (
	"context"
	"time"

	"github.com/nimburion/docgate/pkg/resilience"
	"github.com/nimburion/docgate/pkg/store"
)

// DefaultTimeout bounds a single check when none is configured.
const DefaultTimeout = 5 * time.Second

// ClientProvider hands out the connected store client.
type ClientProvider interface {
	Client() (store.Client, error)
}

// StoreChecker pings the document store behind a provider. A provider that
// has not connected yet reports unhealthy without touching the network.
type StoreChecker struct {
	provider ClientProvider
	timeout  time.Duration
}

// NewStoreChecker creates the "store" check.
func NewStoreChecker(provider ClientProvider, timeout time.Duration) *StoreChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StoreChecker{provider: provider, timeout: timeout}
}

func (c *StoreChecker) Name() string { return "store" }

// Check pings the backend and reports its name and, on failure, the error kind.
func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.Name(), Metadata: map[string]any{"initialized": false}}

	client, err := c.provider.Client()
	if err == nil {
		result.Metadata["initialized"] = true
		result.Metadata["backend"] = client.Backend()

		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = client.HealthCheck(pingCtx)
		cancel()
	}

	result.Timestamp = time.Now()
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Metadata["kind"] = string(store.Classify(err))
		return result
	}
	result.Status = StatusHealthy
	result.Message = "OK"
	return result
}

// BreakerSource exposes a circuit breaker state. ok is false when no breaker
// is configured.
type BreakerSource interface {
	BreakerState() (state resilience.State, ok bool)
}

// BreakerChecker reports the breaker in front of the store: open is
// unhealthy, half-open is degraded.
type BreakerChecker struct {
	source BreakerSource
}

// NewBreakerChecker creates the "store_breaker" check.
func NewBreakerChecker(source BreakerSource) *BreakerChecker {
	return &BreakerChecker{source: source}
}

func (c *BreakerChecker) Name() string { return "store_breaker" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Timestamp: time.Now(), Status: StatusHealthy}
	state, ok := c.source.BreakerState()
	if !ok {
		result.Message = "no breaker configured"
		return result
	}

	result.Metadata = map[string]any{"state": state.String()}
	switch state {
	case resilience.StateOpen:
		result.Status = StatusUnhealthy
		result.Error = resilience.ErrOpen.Error()
	case resilience.StateHalfOpen:
		result.Status = StatusDegraded
		result.Message = "probing backend"
	default:
		result.Message = "OK"
	}
	return result
}
