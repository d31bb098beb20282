package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/eval"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BackendName identifies this backend in logs, spans and metrics.
const BackendName = "mongodb"

const idKey = "_id"

// Executor is the subset of the adapter the document client needs.
type Executor interface {
	FindOne(ctx context.Context, collection string, filter interface{}, result interface{}) error
	Find(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOptions) ([]bson.M, error)
	ReplaceOne(ctx context.Context, collection string, filter, doc interface{}) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Client implements store.Client on MongoDB. The document handle is the _id.
type Client struct {
	exec   Executor
	logger logger.Logger
}

// NewClient wraps an executor, usually an *Adapter.
func NewClient(exec Executor, log logger.Logger) (*Client, error) {
	if exec == nil {
		return nil, fmt.Errorf("mongodb executor is required")
	}
	return &Client{exec: exec, logger: log}, nil
}

func (c *Client) Backend() string { return BackendName }

func (c *Client) HealthCheck(ctx context.Context) error { return c.exec.HealthCheck(ctx) }

func (c *Client) Close() error { return c.exec.Close() }

func (c *Client) Collection(name string) store.CollectionRef {
	return &collection{client: c, name: name}
}

// findByHandle returns the raw document with the given handle, or nil.
func (c *Client) findByHandle(ctx context.Context, table, handle string) (bson.M, error) {
	out := bson.M{}
	err := c.exec.FindOne(ctx, table, handleFilter(handle), &out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

type collection struct {
	client *Client
	name   string
}

func (col *collection) Doc(handle string) store.DocumentRef {
	return &docRef{client: col.client, table: col.name, handle: handle}
}

func (col *collection) NewDoc() store.DocumentRef {
	return col.Doc(primitive.NewObjectID().Hex())
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

func (d *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	raw, err := d.client.findByHandle(ctx, d.table, d.handle)
	if err != nil {
		return store.Snapshot{}, err
	}
	if raw == nil {
		return store.Snapshot{ID: d.handle}, nil
	}
	return toSnapshot(raw), nil
}

func (d *docRef) Set(ctx context.Context, fields map[string]any) error {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc[idKey] = d.handle
	_, err := d.client.exec.ReplaceOne(ctx, d.table, bson.M{idKey: d.handle}, doc)
	return classify(err)
}

func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	if len(fields) == 0 {
		return store.Mark(store.ErrInvalidArgument, fmt.Errorf("update requires at least one field"))
	}
	res, err := d.client.exec.UpdateOne(ctx, d.table, handleFilter(d.handle), bson.M{"$set": bson.M(fields)})
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return store.Mark(store.ErrNotFound, fmt.Errorf("%s/%s", d.table, d.handle))
	}
	return nil
}

func (d *docRef) Delete(ctx context.Context) error {
	_, err := d.client.exec.DeleteOne(ctx, d.table, handleFilter(d.handle))
	return classify(err)
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

func (q *query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	clauses, err := buildClauses(q.plan.Conditions)
	if err != nil {
		return nil, err
	}

	sort := bson.D{{Key: idKey, Value: 1}}
	if q.plan.OrderBy != "" {
		clauses = append(clauses, bson.M{q.plan.OrderBy: bson.M{"$exists": true}})
		sort = bson.D{{Key: q.plan.OrderBy, Value: 1}, {Key: idKey, Value: 1}}
	}

	if !q.plan.After.IsZero() {
		resume, err := q.resumeClause(ctx)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, resume)
	}

	opts := options.Find().SetSort(sort)
	if q.plan.Limit > 0 {
		opts.SetLimit(int64(q.plan.Limit))
	}

	raw, err := q.client.exec.Find(ctx, q.table, combine(clauses), opts)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]store.Snapshot, 0, len(raw))
	for _, doc := range raw {
		out = append(out, toSnapshot(doc))
	}
	return out, nil
}

// resumeClause selects documents strictly after the cursor document in
// (orderBy, _id) order.
func (q *query) resumeClause(ctx context.Context) (bson.M, error) {
	handle, err := q.plan.After.Handle()
	if err != nil {
		return nil, store.Mark(store.ErrInvalidArgument, err)
	}
	anchor, err := q.client.findByHandle(ctx, q.table, handle)
	if err != nil {
		return nil, fmt.Errorf("resolve cursor: %w", err)
	}
	if anchor == nil {
		return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("cursor document %q not found", handle))
	}
	anchorID := anchor[idKey]
	if q.plan.OrderBy == "" {
		return bson.M{idKey: bson.M{"$gt": anchorID}}, nil
	}
	value, ok := anchor[q.plan.OrderBy]
	if !ok {
		return nil, store.Mark(store.ErrInvalidArgument,
			fmt.Errorf("cursor document %q has no field %q", handle, q.plan.OrderBy))
	}
	return bson.M{"$or": bson.A{
		bson.M{q.plan.OrderBy: bson.M{"$gt": value}},
		bson.M{q.plan.OrderBy: value, idKey: bson.M{"$gt": anchorID}},
	}}, nil
}

// buildClauses translates conditions into MongoDB filter clauses joined by $and.
func buildClauses(conds []eval.Condition) ([]bson.M, error) {
	clauses := make([]bson.M, 0, len(conds))
	for _, c := range conds {
		switch c.Op {
		case document.OpEqual:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$eq": c.Value}})
		case document.OpNotEqual:
			clauses = append(clauses,
				bson.M{c.Field: bson.M{"$ne": c.Value}},
				bson.M{c.Field: bson.M{"$ne": nil}})
		case document.OpLess:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$lt": c.Value}})
		case document.OpLessOrEqual:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$lte": c.Value}})
		case document.OpGreater:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$gt": c.Value}})
		case document.OpGreaterOrEqual:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$gte": c.Value}})
		case document.OpIn:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$in": asArray(c.Value)}})
		case document.OpNotIn:
			clauses = append(clauses,
				bson.M{c.Field: bson.M{"$nin": asArray(c.Value)}},
				bson.M{c.Field: bson.M{"$ne": nil}})
		case document.OpArrayContains:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$elemMatch": bson.M{"$eq": c.Value}}})
		case document.OpArrayContainsAny:
			clauses = append(clauses, bson.M{c.Field: bson.M{"$elemMatch": bson.M{"$in": asArray(c.Value)}}})
		default:
			return nil, store.Mark(store.ErrInvalidArgument, fmt.Errorf("unsupported operator %q", c.Op))
		}
	}
	return clauses, nil
}

func combine(clauses []bson.M) bson.M {
	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	}
	and := make(bson.A, len(clauses))
	for i, c := range clauses {
		and[i] = c
	}
	return bson.M{"$and": and}
}

func asArray(v any) bson.A {
	if list := eval.AsList(v); list != nil {
		return bson.A(list)
	}
	return bson.A{v}
}

// handleFilter matches a handle stored either as a string or as an ObjectID.
func handleFilter(handle string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(handle); err == nil {
		return bson.M{idKey: bson.M{"$in": bson.A{handle, oid}}}
	}
	return bson.M{idKey: handle}
}

func toSnapshot(raw bson.M) store.Snapshot {
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == idKey {
			continue
		}
		data[k] = fromBSON(v)
	}
	return store.Snapshot{ID: handleOf(raw[idKey]), Exists: true, Data: data}
}

func handleOf(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case nil:
		return ""
	}
	return fmt.Sprint(id)
}

// fromBSON converts driver container types into plain Go values.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Binary:
		return t.Data
	}
	return v
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.Mark(store.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return store.Mark(store.ErrAlreadyExists, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return store.Mark(store.ErrUnavailable, err)
	case errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Code == 18):
		return store.Mark(store.ErrPermissionDenied, err)
	}
	return err
}
