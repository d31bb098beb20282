// Package memory is an in-process document store implementing the store
// contract. It backs tests and local runs that have no external database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/eval"
)

// BackendName identifies this backend in logs, spans and metrics.
const BackendName = "memory"

// Client keeps every collection in memory.
type Client struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]any
	logger logger.Logger
	closed bool
}

// NewClient creates an empty in-memory store.
func NewClient(log logger.Logger) *Client {
	if log != nil {
		log.Info("In-memory document store initialized")
	}
	return &Client{
		tables: make(map[string]map[string]map[string]any),
		logger: log,
	}
}

func (c *Client) Backend() string { return BackendName }

func (c *Client) HealthCheck(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("memory health check failed: %w", store.ErrClosed)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) Collection(name string) store.CollectionRef {
	return &collection{client: c, name: name}
}

// get returns a copy of the stored document. Callers hold at least a read lock.
func (c *Client) get(table, handle string) (store.Snapshot, bool) {
	data, ok := c.tables[table][handle]
	if !ok {
		return store.Snapshot{ID: handle}, false
	}
	return store.Snapshot{ID: handle, Exists: true, Data: cloneMap(data)}, true
}

func (c *Client) checkOpen() error {
	if c.closed {
		return store.ErrClosed
	}
	return nil
}

type collection struct {
	client *Client
	name   string
}

func (col *collection) Doc(handle string) store.DocumentRef {
	return &docRef{client: col.client, table: col.name, handle: handle}
}

func (col *collection) NewDoc() store.DocumentRef {
	return col.Doc(uuid.NewString())
}

func (col *collection) Query() store.Query {
	return &query{client: col.client, table: col.name}
}

type docRef struct {
	client *Client
	table  string
	handle string
}

func (d *docRef) ID() string { return d.handle }

func (d *docRef) Get(context.Context) (store.Snapshot, error) {
	d.client.mu.RLock()
	defer d.client.mu.RUnlock()
	if err := d.client.checkOpen(); err != nil {
		return store.Snapshot{}, err
	}
	snap, _ := d.client.get(d.table, d.handle)
	return snap, nil
}

func (d *docRef) Set(_ context.Context, fields map[string]any) error {
	if d.handle == "" {
		return store.Mark(store.ErrInvalidArgument, fmt.Errorf("document handle is required"))
	}
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	if err := d.client.checkOpen(); err != nil {
		return err
	}
	table, ok := d.client.tables[d.table]
	if !ok {
		table = make(map[string]map[string]any)
		d.client.tables[d.table] = table
	}
	table[d.handle] = cloneMap(fields)
	return nil
}

func (d *docRef) Update(_ context.Context, fields map[string]any) error {
	if len(fields) == 0 {
		return store.Mark(store.ErrInvalidArgument, fmt.Errorf("update requires at least one field"))
	}
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	if err := d.client.checkOpen(); err != nil {
		return err
	}
	current, ok := d.client.tables[d.table][d.handle]
	if !ok {
		return store.Mark(store.ErrNotFound, fmt.Errorf("%s/%s", d.table, d.handle))
	}
	for k, v := range fields {
		current[k] = cloneValue(v)
	}
	return nil
}

func (d *docRef) Delete(context.Context) error {
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	if err := d.client.checkOpen(); err != nil {
		return err
	}
	delete(d.client.tables[d.table], d.handle)
	return nil
}

type query struct {
	client *Client
	table  string
	plan   eval.Plan
}

func (q *query) with(p eval.Plan) store.Query {
	return &query{client: q.client, table: q.table, plan: p}
}

func (q *query) Where(field string, op document.Operator, value any) store.Query {
	return q.with(q.plan.Where(field, op, value))
}

func (q *query) OrderBy(field string) store.Query { return q.with(q.plan.WithOrderBy(field)) }

func (q *query) Limit(n int) store.Query { return q.with(q.plan.WithLimit(n)) }

func (q *query) StartAfter(cursor document.Cursor) store.Query {
	return q.with(q.plan.WithStartAfter(cursor))
}

func (q *query) Documents(context.Context) ([]store.Snapshot, error) {
	q.client.mu.RLock()
	defer q.client.mu.RUnlock()
	if err := q.client.checkOpen(); err != nil {
		return nil, err
	}

	table := q.client.tables[q.table]
	docs := make([]store.Snapshot, 0, len(table))
	for handle := range table {
		snap, _ := q.client.get(q.table, handle)
		docs = append(docs, snap)
	}
	return eval.Execute(q.plan, docs, func(handle string) (store.Snapshot, bool, error) {
		snap, ok := q.client.get(q.table, handle)
		return snap, ok, nil
	})
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}
