// Package gateway owns the connection to the document store and exposes
// single-document reads and writes plus the counter lookup.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/nimburion/docgate/pkg/config"
	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/observability/metrics"
	"github.com/nimburion/docgate/pkg/observability/tracing"
	"github.com/nimburion/docgate/pkg/resilience"
	"github.com/nimburion/docgate/pkg/store"
)

// DefaultCounterField is the field ReadCount reads when none is configured.
const DefaultCounterField = "count"

// ErrNotInitialized is returned by every operation before Initialize succeeds.
var ErrNotInitialized = errors.New("document store not initialized")

// DialFunc connects the backend described by cfg.
type DialFunc func(ctx context.Context, cfg config.StoreConfig) (store.Client, error)

// Option configures a Gateway.
type Option func(*Gateway)

// WithCounterField overrides the field ReadCount reads.
func WithCounterField(field string) Option {
	return func(g *Gateway) {
		g.counterField = field
	}
}

// WithClient starts the gateway already initialized with client.
func WithClient(client store.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithBreaker guards every backend call with b. It takes precedence over
// store.breaker in the config passed to Initialize.
func WithBreaker(b *resilience.Breaker) Option {
	return func(g *Gateway) {
		g.breaker = b
	}
}

// Gateway is the explicit connection handle. Construct one per process and
// pass it down; Initialize opens the connection at most once.
type Gateway struct {
	mu           sync.RWMutex
	dial         DialFunc
	client       store.Client
	counterField string
	breaker      *resilience.Breaker
	logger       logger.Logger
}

// New creates an uninitialized gateway.
func New(dial DialFunc, log logger.Logger, opts ...Option) *Gateway {
	g := &Gateway{dial: dial, logger: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize connects the backend. Once a connection exists further calls are
// no-ops, whatever cfg they pass. A failed dial leaves the gateway
// uninitialized so a later call can retry.
func (g *Gateway) Initialize(ctx context.Context, cfg config.StoreConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return nil
	}
	if g.dial == nil {
		return fmt.Errorf("initialize document store: no dialer configured")
	}

	client, err := g.connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize document store: %w", err)
	}
	if client == nil {
		return fmt.Errorf("initialize document store: dialer returned no client")
	}

	g.client = client
	if g.counterField == "" {
		g.counterField = cfg.CounterField
	}
	if g.breaker == nil && cfg.Breaker.Enabled {
		g.breaker = resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown, resilience.CountIf(countsAsOutage))
	}
	g.logger.Info("document store initialized", "backend", client.Backend(), "breaker", g.breaker != nil)
	return nil
}

// connect dials within cfg.ConnectTimeout. A client that arrives after the
// deadline is closed.
func (g *Gateway) connect(ctx context.Context, cfg config.StoreConfig) (store.Client, error) {
	result := make(chan store.Client, 1)
	err := resilience.WithTimeout(ctx, cfg.ConnectTimeout, func(ctx context.Context) error {
		client, err := g.dial(ctx, cfg)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			if client != nil {
				_ = client.Close()
			}
			return ctx.Err()
		default:
		}
		result <- client
		return nil
	})
	if errors.Is(err, resilience.ErrTimeout) {
		return nil, store.Mark(store.ErrUnavailable, fmt.Errorf("connect timed out after %s: %w", cfg.ConnectTimeout, err))
	}
	if err != nil {
		return nil, err
	}
	return <-result, nil
}

// Client returns the connected store client.
func (g *Gateway) Client() (store.Client, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client == nil {
		return nil, ErrNotInitialized
	}
	return g.client, nil
}

// BreakerState reports the circuit breaker state. ok is false when no
// breaker is configured.
func (g *Gateway) BreakerState() (state resilience.State, ok bool) {
	g.mu.RLock()
	b := g.breaker
	g.mu.RUnlock()
	if b == nil {
		return resilience.StateClosed, false
	}
	return b.State(), true
}

// Initialized reports whether a connection exists.
func (g *Gateway) Initialized() bool {
	_, err := g.Client()
	return err == nil
}

// ReadByID fetches one document. A handle id is a point lookup; a legacy id
// matches the numeric "id" field. A missing document yields (nil, nil).
func (g *Gateway) ReadByID(ctx context.Context, table string, id document.ID) (doc *document.Document, err error) {
	ctx, done := g.observe(ctx, tracing.OpRead, "read_by_id", table)
	defer func() { done(err) }()

	col, err := g.collection(table)
	if err != nil {
		return nil, err
	}

	if id.IsLegacy() {
		var snaps []store.Snapshot
		err := g.Guard(func() (err error) {
			snaps, err = col.Query().
				Where(document.LegacyIDField, document.OpEqual, id.Legacy()).
				Limit(1).
				Documents(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("read %s by legacy id %d: %w", table, id.Legacy(), err)
		}
		for _, snap := range snaps {
			if snap.Exists {
				d := snap.Document()
				return &d, nil
			}
		}
		return nil, nil
	}

	var snap store.Snapshot
	err = g.Guard(func() (err error) {
		snap, err = col.Doc(id.Handle()).Get(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", table, id.Handle(), err)
	}
	if !snap.Exists {
		return nil, nil
	}
	d := snap.Document()
	return &d, nil
}

// Write creates the document at handle or fully overwrites it.
func (g *Gateway) Write(ctx context.Context, table, handle string, fields map[string]any) Result {
	return g.mutate(ctx, tracing.OpWrite, "write", table, func(ctx context.Context, col store.CollectionRef) error {
		return col.Doc(handle).Set(ctx, fields)
	})
}

// Update merges fields into an existing document.
func (g *Gateway) Update(ctx context.Context, table, handle string, fields map[string]any) Result {
	return g.mutate(ctx, tracing.OpUpdate, "update", table, func(ctx context.Context, col store.CollectionRef) error {
		return col.Doc(handle).Update(ctx, fields)
	})
}

// Add writes fields under a store-assigned handle and returns it.
func (g *Gateway) Add(ctx context.Context, table string, fields map[string]any) (string, Result) {
	var handle string
	res := g.mutate(ctx, tracing.OpInsert, "add", table, func(ctx context.Context, col store.CollectionRef) error {
		ref := col.NewDoc()
		if err := ref.Set(ctx, fields); err != nil {
			return err
		}
		handle = ref.ID()
		return nil
	})
	return handle, res
}

// Delete removes the document at handle. Deleting a missing document succeeds.
func (g *Gateway) Delete(ctx context.Context, table, handle string) Result {
	return g.mutate(ctx, tracing.OpDelete, "delete", table, func(ctx context.Context, col store.CollectionRef) error {
		return col.Doc(handle).Delete(ctx)
	})
}

// ReadCount returns the counter field of the document at handle, or 0 when
// the document or the field is absent. The value is trusted as maintained
// elsewhere; no live count is computed.
func (g *Gateway) ReadCount(ctx context.Context, table, handle string) (int64, error) {
	doc, err := g.ReadByID(ctx, table, document.HandleID(handle))
	if err != nil || doc == nil {
		return 0, err
	}
	field := g.counter()
	v, ok := doc.Get(field)
	if !ok || v == nil {
		return 0, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, store.Mark(store.ErrInvalidArgument, fmt.Errorf("counter %s/%s.%s: %w", table, handle, field, err))
	}
	return n, nil
}

// HealthCheck pings the backend.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	client, err := g.Client()
	if err != nil {
		return err
	}
	return client.HealthCheck(ctx)
}

// Close releases the backend connection. A closed gateway is not reopened by
// Initialize; construct a new Gateway instead.
func (g *Gateway) Close() error {
	client, err := g.Client()
	if err != nil {
		return nil
	}
	return client.Close()
}

func (g *Gateway) collection(table string) (store.CollectionRef, error) {
	client, err := g.Client()
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("table is required"))
	}
	return client.Collection(table), nil
}

func (g *Gateway) counter() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.counterField == "" {
		return DefaultCounterField
	}
	return g.counterField
}

func (g *Gateway) mutate(ctx context.Context, op tracing.Operation, name, table string, fn func(context.Context, store.CollectionRef) error) Result {
	ctx, done := g.observe(ctx, op, name, table)

	col, err := g.collection(table)
	if err == nil {
		err = g.Guard(func() error { return fn(ctx, col) })
	}
	done(err)

	if err != nil {
		g.logger.WithContext(ctx).Warn("document store operation failed", "operation", name, "table", table, "error", err)
		return Failed(err)
	}
	return Succeeded()
}

// Guard runs fn through the breaker when one is configured. An open breaker
// rejects fn with an error that classifies as unavailable.
func (g *Gateway) Guard(fn func() error) error {
	g.mu.RLock()
	b := g.breaker
	g.mu.RUnlock()
	if b == nil {
		return fn()
	}
	err := b.Execute(fn)
	if errors.Is(err, resilience.ErrOpen) {
		return store.Mark(store.ErrUnavailable, err)
	}
	return err
}

// countsAsOutage limits the breaker to failures that say the backend itself
// is unhealthy.
func countsAsOutage(err error) bool {
	return store.Classify(err) == store.KindUnavailable
}

// observe opens a span and returns a func that ends it and records metrics.
func (g *Gateway) observe(ctx context.Context, op tracing.Operation, name, table string) (context.Context, func(error)) {
	start := time.Now()
	var opts []tracing.SpanOption
	if client, err := g.Client(); err == nil {
		opts = append(opts, tracing.Backend(client.Backend()))
	}
	ctx, span := tracing.StartStoreSpan(ctx, op, table, opts...)
	return ctx, func(err error) {
		tracing.Finish(span, err)
		metrics.RecordStoreOperation(name, table, err, time.Since(start))
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("value %v is not finite", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported counter type %T", v)
	}
}
