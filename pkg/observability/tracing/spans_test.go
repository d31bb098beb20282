package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nimburion/docgate/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	return recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]any {
	out := make(map[attribute.Key]any)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value.AsInterface()
	}
	return out
}

func TestStartStoreSpan(t *testing.T) {
	recorder := recordSpans(t)

	tests := []struct {
		name       string
		op         Operation
		collection string
		opts       []SpanOption
		wantName   string
		wantAttrs  map[attribute.Key]any
	}{
		{
			name:      "no collection",
			op:        OpRead,
			wantName:  "read",
			wantAttrs: map[attribute.Key]any{AttrOperation: "read"},
		},
		{
			name:       "write",
			op:         OpWrite,
			collection: "users",
			opts:       []SpanOption{Backend("memory")},
			wantName:   "write users",
			wantAttrs: map[attribute.Key]any{
				AttrOperation:  "write",
				AttrCollection: "users",
				AttrSystem:     "memory",
			},
		},
		{
			name:       "query",
			op:         OpQuery,
			collection: "orders",
			opts:       []SpanOption{Backend("firestore"), QueryText("status == paid"), Filters(1, 2)},
			wantName:   "query orders",
			wantAttrs: map[attribute.Key]any{
				AttrSystem:         "firestore",
				AttrQueryText:      "status == paid",
				AttrFilterCount:    int64(1),
				AttrDroppedFilters: int64(2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.Reset()

			_, span := StartStoreSpan(context.Background(), tt.op, tt.collection, tt.opts...)
			span.End()

			ended := recorder.Ended()
			if len(ended) != 1 {
				t.Fatalf("expected 1 span, got %d", len(ended))
			}
			if ended[0].Name() != tt.wantName {
				t.Errorf("expected span name %q, got %q", tt.wantName, ended[0].Name())
			}
			if ended[0].SpanKind() != trace.SpanKindClient {
				t.Errorf("expected client span, got %v", ended[0].SpanKind())
			}
			got := attrs(ended[0])
			for key, want := range tt.wantAttrs {
				if got[key] != want {
					t.Errorf("attribute %s = %v, want %v", key, got[key], want)
				}
			}
		})
	}
}

func TestFinish(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	_, ok := StartStoreSpan(ctx, OpRead, "users")
	Finish(ok, nil)
	_, failed := StartStoreSpan(ctx, OpUpdate, "users")
	Finish(failed, fmt.Errorf("update users/u1: %w", store.ErrNotFound))

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", ended[0].Status().Code)
	}
	if _, present := attrs(ended[0])[AttrErrorKind]; present {
		t.Error("successful span must not carry an error kind")
	}

	if ended[1].Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", ended[1].Status().Code)
	}
	if got := attrs(ended[1])[AttrErrorKind]; got != string(store.KindNotFound) {
		t.Errorf("expected error kind not_found, got %v", got)
	}
	events := ended[1].Events()
	if len(events) != 1 || events[0].Name != "exception" {
		t.Errorf("expected one exception event, got %+v", events)
	}
}

func TestFinish_UnknownError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartStoreSpan(context.Background(), OpDelete, "users")
	Finish(span, errors.New("boom"))

	if got := attrs(recorder.Ended()[0])[AttrErrorKind]; got != string(store.KindUnknown) {
		t.Errorf("expected error kind unknown, got %v", got)
	}
}
