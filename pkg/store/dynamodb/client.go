package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/observability/logger"
	"github.com/nimburion/docgate/pkg/store"
	"github.com/nimburion/docgate/pkg/store/eval"
)

// BackendName identifies this backend in logs, spans and metrics.
const BackendName = "dynamodb"

// DefaultKeyAttribute is the partition key attribute holding the document handle.
const DefaultKeyAttribute = "pk"

// maxInValues is the DynamoDB limit on IN operands.
const maxInValues = 100

// Executor is the subset of the adapter the document client needs.
type Executor interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Client implements store.Client on DynamoDB. Each collection is a table
// keyed by a string partition key holding the document handle.
//
// Queries push filters down as a scan FilterExpression where DynamoDB can
// express them, then order, resume and limit in process.
type Client struct {
	exec   Executor
	key    string
	logger logger.Logger
}

// NewClient wraps an executor, usually an *Adapter. An empty keyAttribute
// selects DefaultKeyAttribute.
func NewClient(exec Executor, keyAttribute string, log logger.Logger) (*Client, error) {
	if exec == nil {
		return nil, fmt.Errorf("dynamodb executor is required")
	}
	if keyAttribute == "" {
		keyAttribute = DefaultKeyAttribute
	}
	return &Client{exec: exec, key: keyAttribute, logger: log}, nil
}

func (c *Client) Backend() string { return BackendName }

func (c *Client) HealthCheck(ctx context.Context) error { return c.exec.HealthCheck(ctx) }

func (c *Client) Close() error { return c.exec.Close() }

func (c *Client) Collection(name string) store.CollectionRef {
	return &collection{client: c, table: name}
}

func (c *Client) keyOf(handle string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{c.key: &types.AttributeValueMemberS{Value: handle}}
}

func (c *Client) get(ctx context.Context, table, handle string) (store.Snapshot, error) {
	out, err := c.exec.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            c.keyOf(handle),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return store.Snapshot{}, classify(err)
	}
	if out.Item == nil {
		return store.Snapshot{ID: handle}, nil
	}
	return c.toSnapshot(out.Item)
}

func (c *Client) toSnapshot(item map[string]types.AttributeValue) (store.Snapshot, error) {
	var handle string
	if key, ok := item[c.key].(*types.AttributeValueMemberS); ok {
		handle = key.Value
	}
	data := map[string]any{}
	if err := attributevalue.UnmarshalMap(item, &data); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode item %q: %w", handle, err)
	}
	delete(data, c.key)
	return store.Snapshot{ID: handle, Exists: true, Data: data}, nil
}

type collection struct {
	client *Client
	table  string
}

func (col *collection) Doc(handle string) store.DocumentRef {
	return &docRef{client: col.client, table: col.table, handle: handle}
}

func (col *collection) NewDoc() store.DocumentRef { return col.Doc(uuid.NewString()) }

func (col *collection) Query() store.Query { return &query{client: col.client, table: col.table} }

type docRef struct {
	client *Client
	table  string
	handle string
}

func (d *docRef) ID() string { return d.handle }

func (d *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	return d.client.get(ctx, d.table, d.handle)
}

func (d *docRef) Set(ctx context.Context, fields map[string]any) error {
	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return store.Mark(store.ErrInvalidArgument, err)
	}
	item[d.client.key] = &types.AttributeValueMemberS{Value: d.handle}
	_, err = d.client.exec.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return classify(err)
}

func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	if len(fields) == 0 {
		return store.Mark(store.ErrInvalidArgument, fmt.Errorf("update requires at least one field"))
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(fields[name]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(d.client.key))).
		Build()
	if err != nil {
		return store.Mark(store.ErrInvalidArgument, err)
	}

	_, err = d.client.exec.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.table),
		Key:                       d.client.keyOf(d.handle),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.Mark(store.ErrNotFound, fmt.Errorf("%s/%s", d.table, d.handle))
	}
	return classify(err)
}

func (d *docRef) Delete(ctx context.Context) error {
	_, err := d.client.exec.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.client.keyOf(d.handle),
	})
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
	input, err := q.scanInput()
	if err != nil {
		return nil, err
	}
	items, err := q.client.exec.Scan(ctx, input)
	if err != nil {
		return nil, classify(err)
	}

	docs := make([]store.Snapshot, 0, len(items))
	for _, item := range items {
		snap, err := q.client.toSnapshot(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, snap)
	}

	lookup := func(handle string) (store.Snapshot, bool, error) {
		snap, err := q.client.get(ctx, q.table, handle)
		return snap, snap.Exists, err
	}
	return eval.Execute(q.plan, docs, lookup)
}

func (q *query) scanInput() (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(q.table),
		ConsistentRead: aws.Bool(true),
	}
	cond, ok, err := pushdown(q.plan.Conditions)
	if err != nil || !ok {
		return input, err
	}
	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return nil, store.Mark(store.ErrInvalidArgument, err)
	}
	input.FilterExpression = expr.Filter()
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()
	return input, nil
}

// pushdown builds a scan filter from the conditions DynamoDB can evaluate.
// Conditions it cannot express are left to the in-process evaluator, which
// re-checks every condition anyway.
func pushdown(conds []eval.Condition) (expression.ConditionBuilder, bool, error) {
	var parts []expression.ConditionBuilder
	for _, c := range conds {
		if !c.Op.Valid() {
			return expression.ConditionBuilder{}, false,
				store.Mark(store.ErrInvalidArgument, fmt.Errorf("unsupported operator %q", c.Op))
		}
		if cond, ok := conditionFor(c); ok {
			parts = append(parts, cond)
		}
	}
	switch len(parts) {
	case 0:
		return expression.ConditionBuilder{}, false, nil
	case 1:
		return parts[0], true, nil
	}
	return expression.And(parts[0], parts[1], parts[2:]...), true, nil
}

func conditionFor(c eval.Condition) (expression.ConditionBuilder, bool) {
	name := expression.Name(c.Field)
	present := name.AttributeExists().And(expression.Not(name.AttributeType(expression.Null)))

	switch c.Op {
	case document.OpEqual:
		return name.Equal(expression.Value(c.Value)), true
	case document.OpNotEqual:
		return name.NotEqual(expression.Value(c.Value)).And(present), true
	case document.OpLess:
		return name.LessThan(expression.Value(c.Value)), true
	case document.OpLessOrEqual:
		return name.LessThanEqual(expression.Value(c.Value)), true
	case document.OpGreater:
		return name.GreaterThan(expression.Value(c.Value)), true
	case document.OpGreaterOrEqual:
		return name.GreaterThanEqual(expression.Value(c.Value)), true
	case document.OpIn, document.OpNotIn:
		operands := operandsOf(c.Value)
		if len(operands) == 0 || len(operands) > maxInValues {
			return expression.ConditionBuilder{}, false
		}
		in := name.In(operands[0], operands[1:]...)
		if c.Op == document.OpNotIn {
			return expression.Not(in).And(present), true
		}
		return in, true
	case document.OpArrayContains:
		s, ok := c.Value.(string)
		if !ok {
			return expression.ConditionBuilder{}, false
		}
		return name.Contains(s), true
	case document.OpArrayContainsAny:
		var alts []expression.ConditionBuilder
		for _, v := range eval.AsList(c.Value) {
			s, ok := v.(string)
			if !ok {
				return expression.ConditionBuilder{}, false
			}
			alts = append(alts, name.Contains(s))
		}
		switch len(alts) {
		case 0:
			return expression.ConditionBuilder{}, false
		case 1:
			return alts[0], true
		}
		return expression.Or(alts[0], alts[1], alts[2:]...), true
	}
	return expression.ConditionBuilder{}, false
}

func operandsOf(v any) []expression.OperandBuilder {
	list := eval.AsList(v)
	out := make([]expression.OperandBuilder, len(list))
	for i, e := range list {
		out[i] = expression.Value(e)
	}
	return out
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return store.Mark(store.ErrUnavailable, err)
	}
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return store.Mark(store.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return store.Mark(store.ErrPermissionDenied, err)
		case code == "ValidationException":
			return store.Mark(store.ErrInvalidArgument, err)
		case code == "RequestLimitExceeded" || code == "ThrottlingException" ||
			strings.HasPrefix(code, "ServiceUnavailable") || code == "InternalServerError":
			return store.Mark(store.ErrUnavailable, err)
		}
	}
	return err
}
