// Package logger defines the structured logging contract shared by docgate
// packages, with a zap implementation in zap.go.
package logger

import "context"

// Logger writes leveled entries. Every method takes a message followed by
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child that adds args to every entry.
	With(args ...any) Logger

	// WithContext returns a child tagged with the operation ID in ctx, if any.
	WithContext(ctx context.Context) Logger
}

type operationIDKey struct{}

// ContextWithOperationID stores id for WithContext to pick up.
func ContextWithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationIDFromContext returns the ID stored by ContextWithOperationID, or "".
func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(operationIDKey{}).(string)
	return id
}
