package store

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors backends attach to their native errors so callers can use
// errors.Is without knowing the backend.
var (
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("store unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrClosed           = errors.New("store client is closed")
)

// Kind classifies a backend failure.
type Kind string

const (
	KindNone             Kind = ""
	KindNotFound         Kind = "not_found"
	KindAlreadyExists    Kind = "already_exists"
	KindPermissionDenied Kind = "permission_denied"
	KindUnavailable      Kind = "unavailable"
	KindInvalidArgument  Kind = "invalid_argument"
	KindUnknown          Kind = "unknown"
)

// Mark attaches the sentinel to a native error, keeping both in the chain.
func Mark(sentinel, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Classify maps an error to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrClosed),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindUnavailable
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindUnknown
	}
}
