// Package tracing provides OpenTelemetry tracing for document store operations.
package tracing

import (
	"context"

	"github.com/nimburion/docgate/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for store spans.
const TracerName = "github.com/nimburion/docgate"

// Operation names a traced store operation.
type Operation string

const (
	OpQuery  Operation = "query"
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Span attribute keys.
const (
	AttrSystem         = attribute.Key("db.system")
	AttrCollection     = attribute.Key("db.collection.name")
	AttrOperation      = attribute.Key("db.operation.name")
	AttrQueryText      = attribute.Key("db.query.text")
	AttrFilterCount    = attribute.Key("docgate.filter_count")
	AttrDroppedFilters = attribute.Key("docgate.dropped_filters")
	AttrErrorKind      = attribute.Key("docgate.error_kind")
)

// SpanOption adds attributes to a store span.
type SpanOption func(*[]attribute.KeyValue)

// Backend records the store backend, e.g. "firestore".
func Backend(name string) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, AttrSystem.String(name))
	}
}

// QueryText records a readable rendering of the query.
func QueryText(text string) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, AttrQueryText.String(text))
	}
}

// Filters records how many filters were applied and how many were dropped.
func Filters(applied, dropped int) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, AttrFilterCount.Int(applied), AttrDroppedFilters.Int(dropped))
	}
}

// StartStoreSpan starts a client span named "<op> <collection>".
func StartStoreSpan(ctx context.Context, op Operation, collection string, opts ...SpanOption) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{AttrOperation.String(string(op))}
	name := string(op)
	if collection != "" {
		attrs = append(attrs, AttrCollection.String(collection))
		name += " " + collection
	}
	for _, opt := range opts {
		opt(&attrs)
	}
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// Finish sets the span status from err and ends it. Failed spans carry the
// store error kind.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorKind.String(string(store.Classify(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
