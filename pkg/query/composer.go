// Package query turns a declarative QuerySpec into a filtered, sorted and
// paginated read against the document store.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/observability/metrics"
	"github.com/nimburion/docgate/pkg/observability/tracing"
	"github.com/nimburion/docgate/pkg/store"
)

// ClientProvider hands out the connected store client. *gateway.Gateway
// implements it.
type ClientProvider interface {
	Client() (store.Client, error)
}

// Guarder runs backend calls through a circuit breaker. A ClientProvider that
// also implements Guarder has every query executed through Guard.
type Guarder interface {
	Guard(fn func() error) error
}

// ClientProviderFunc adapts a function to ClientProvider.
type ClientProviderFunc func() (store.Client, error)

func (f ClientProviderFunc) Client() (store.Client, error) { return f() }

// Static provides a fixed client.
func Static(client store.Client) ClientProvider {
	return ClientProviderFunc(func() (store.Client, error) { return client, nil })
}

// Option configures a Composer.
type Option func(*Composer)

// WithFalsyScalars keeps scalar filters whose value is 0, "" or false instead
// of dropping them. Nil scalars are still dropped.
func WithFalsyScalars() Option {
	return func(c *Composer) {
		c.normalize = append(c.normalize, document.KeepFalsyScalars())
	}
}

// Composer executes QuerySpecs.
type Composer struct {
	provider  ClientProvider
	logger    logger.Logger
	normalize []document.NormalizeOption
}

// NewComposer creates a Composer reading through provider.
func NewComposer(provider ClientProvider, log logger.Logger, opts ...Option) *Composer {
	c := &Composer{provider: provider, logger: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes spec and returns one page. The page cursor references the last
// document the store returned, before missing documents are filtered out, and
// is empty when nothing was returned. Store errors are returned wrapped, never
// retried.
func (c *Composer) Run(ctx context.Context, spec document.QuerySpec) (page *document.PageResult, err error) {
	if spec.Table == "" {
		return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("query table is required"))
	}
	client, err := c.provider.Client()
	if err != nil {
		return nil, err
	}

	kept, dropped := document.NormalizeFilters(spec.Filters, c.normalize...)
	if len(dropped) > 0 {
		metrics.RecordDroppedFilters(spec.Table, len(dropped))
		for _, f := range dropped {
			c.logger.WithContext(ctx).Debug("query filter dropped", "table", spec.Table, "filter", f.String())
		}
	}

	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, tracing.OpQuery, spec.Table,
		tracing.Backend(client.Backend()),
		tracing.QueryText(describe(kept, spec)),
		tracing.Filters(len(kept), len(dropped)),
	)
	defer func() {
		tracing.Finish(span, err)
		metrics.RecordStoreOperation("query", spec.Table, err, time.Since(start))
	}()

	q := client.Collection(spec.Table).Query()
	if spec.Limit > 0 {
		q = q.Limit(spec.Limit)
	}
	for _, f := range kept {
		q = q.Where(f.Field, f.Op, f.Value.Raw())
	}
	if spec.SortingField != "" {
		q = q.OrderBy(spec.SortingField)
	}
	if !spec.Cursor.IsZero() {
		q = q.StartAfter(spec.Cursor)
	}

	var snaps []store.Snapshot
	err = c.guard(func() (err error) {
		snaps, err = q.Documents(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Table, err)
	}

	page = &document.PageResult{Data: make([]document.Document, 0, len(snaps))}
	for _, snap := range snaps {
		if !snap.Exists {
			continue
		}
		page.Data = append(page.Data, snap.Document())
	}
	if len(snaps) > 0 {
		page.Cursor = document.NewCursor(snaps[len(snaps)-1].ID)
	}
	return page, nil
}

func (c *Composer) guard(fn func() error) error {
	if g, ok := c.provider.(Guarder); ok {
		return g.Guard(fn)
	}
	return fn()
}

// ReadManyByID fetches the documents whose legacy numeric id is in ids with a
// single membership query. An empty ids list returns no documents without
// contacting the store.
func (c *Composer) ReadManyByID(ctx context.Context, table string, ids []int64) ([]document.Document, error) {
	if len(ids) == 0 {
		return []document.Document{}, nil
	}
	page, err := c.Run(ctx, document.QuerySpec{
		Table:   table,
		Filters: []document.Filter{document.Where(document.LegacyIDField, document.OpIn, ids)},
	})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// ReadAll returns every document of table. The read is unbounded.
func (c *Composer) ReadAll(ctx context.Context, table string) ([]document.Document, error) {
	page, err := c.Run(ctx, document.QuerySpec{Table: table})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// describe renders the applied query for span attributes.
func describe(filters []document.Filter, spec document.QuerySpec) string {
	parts := make([]string, 0, len(filters)+3)
	for _, f := range filters {
		parts = append(parts, f.String())
	}
	if spec.SortingField != "" {
		parts = append(parts, "order by "+spec.SortingField)
	}
	if spec.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit %d", spec.Limit))
	}
	if !spec.Cursor.IsZero() {
		parts = append(parts, "start after "+spec.Cursor.String())
	}
	return strings.Join(parts, "; ")
}
