package firestore

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/eval"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BackendName identifies this backend in logs, spans and metrics.
const BackendName = "firestore"

// Client implements store.Client on Cloud Firestore. Filters, ordering,
// limits and cursors are all evaluated by Firestore itself.
type Client struct {
	adapter *Adapter
	logger  logger.Logger
}

// NewClient wraps a connected adapter.
func NewClient(adapter *Adapter, log logger.Logger) (*Client, error) {
	if adapter == nil {
		return nil, fmt.Errorf("firestore adapter is required")
	}
	return &Client{adapter: adapter, logger: log}, nil
}

func (c *Client) Backend() string { return BackendName }

func (c *Client) HealthCheck(ctx context.Context) error { return c.adapter.HealthCheck(ctx) }

func (c *Client) Close() error { return c.adapter.Close() }

func (c *Client) Collection(name string) store.CollectionRef {
	return &collection{client: c, ref: c.adapter.collection(name)}
}

func (c *Client) run(ctx context.Context, fn func(context.Context) error) error {
	return c.adapter.run(ctx, fn)
}

type collection struct {
	client *Client
	ref    *firestore.CollectionRef
}

func (col *collection) Doc(handle string) store.DocumentRef {
	return &docRef{client: col.client, ref: col.ref.Doc(handle)}
}

func (col *collection) NewDoc() store.DocumentRef {
	return &docRef{client: col.client, ref: col.ref.NewDoc()}
}

func (col *collection) Query() store.Query {
	return &query{col: col}
}

type docRef struct {
	client *Client
	ref    *firestore.DocumentRef
}

func (d *docRef) ID() string { return d.ref.ID }

func (d *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	var out store.Snapshot
	err := d.client.run(ctx, func(ctx context.Context) error {
		snap, err := d.ref.Get(ctx)
		if status.Code(err) == codes.NotFound {
			out = store.Snapshot{ID: d.ref.ID}
			return nil
		}
		if err != nil {
			return classify(err)
		}
		out = toSnapshot(snap)
		return nil
	})
	return out, err
}

func (d *docRef) Set(ctx context.Context, fields map[string]any) error {
	return d.client.run(ctx, func(ctx context.Context) error {
		_, err := d.ref.Set(ctx, fields)
		return classify(err)
	})
}

// Update merges fields. Keys are field paths, so "a.b" updates a nested field.
func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	updates := toUpdates(fields)
	if len(updates) == 0 {
		return store.Mark(store.ErrInvalidArgument, fmt.Errorf("update requires at least one field"))
	}
	return d.client.run(ctx, func(ctx context.Context) error {
		_, err := d.ref.Update(ctx, updates)
		return classify(err)
	})
}

func (d *docRef) Delete(ctx context.Context) error {
	return d.client.run(ctx, func(ctx context.Context) error {
		_, err := d.ref.Delete(ctx)
		return classify(err)
	})
}

type query struct {
	col  *collection
	plan eval.Plan
}

func (q *query) with(p eval.Plan) store.Query { return &query{col: q.col, plan: p} }

func (q *query) Where(field string, op document.Operator, value any) store.Query {
	return q.with(q.plan.Where(field, op, value))
}

func (q *query) OrderBy(field string) store.Query { return q.with(q.plan.WithOrderBy(field)) }

func (q *query) Limit(n int) store.Query { return q.with(q.plan.WithLimit(n)) }

func (q *query) StartAfter(cursor document.Cursor) store.Query {
	return q.with(q.plan.WithStartAfter(cursor))
}

func (q *query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	for _, c := range q.plan.Conditions {
		if !c.Op.Valid() {
			return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("unsupported operator %q", c.Op))
		}
	}

	var out []store.Snapshot
	err := q.col.client.run(ctx, func(ctx context.Context) error {
		fq := q.col.ref.Query
		for _, c := range q.plan.Conditions {
			fq = fq.Where(c.Field, string(c.Op), c.Value)
		}
		if q.plan.OrderBy != "" {
			fq = fq.OrderBy(q.plan.OrderBy, firestore.Asc)
		}
		if q.plan.Limit > 0 {
			fq = fq.Limit(q.plan.Limit)
		}
		if !q.plan.After.IsZero() {
			anchor, err := q.anchor(ctx)
			if err != nil {
				return err
			}
			fq = fq.StartAfter(anchor)
		}

		snaps, err := fq.Documents(ctx).GetAll()
		if err != nil {
			return classify(err)
		}
		out = make([]store.Snapshot, 0, len(snaps))
		for _, snap := range snaps {
			out = append(out, toSnapshot(snap))
		}
		return nil
	})
	return out, err
}

// anchor fetches the snapshot the cursor points at.
func (q *query) anchor(ctx context.Context) (*firestore.DocumentSnapshot, error) {
	handle, err := q.plan.After.Handle()
	if err != nil {
		return nil, store.Mark(store.ErrInvalidArgument, err)
	}
	snap, err := q.col.ref.Doc(handle).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("cursor document %q not found", handle))
	}
	if err != nil {
		return nil, fmt.Errorf("resolve cursor: %w", classify(err))
	}
	return snap, nil
}

func toSnapshot(snap *firestore.DocumentSnapshot) store.Snapshot {
	return store.Snapshot{ID: snap.Ref.ID, Exists: snap.Exists(), Data: snap.Data()}
}

// toUpdates turns a field map into Firestore updates in a stable order.
func toUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	updates := make([]firestore.Update, 0, len(paths))
	for _, path := range paths {
		updates = append(updates, firestore.Update{Path: path, Value: fields[path]})
	}
	return updates
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return store.Mark(store.ErrNotFound, err)
	case codes.AlreadyExists:
		return store.Mark(store.ErrAlreadyExists, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return store.Mark(store.ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return store.Mark(store.ErrUnavailable, err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return store.Mark(store.ErrInvalidArgument, err)
	}
	return err
}
