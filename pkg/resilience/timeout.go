package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that fn outlived its deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout gives fn a context that expires after d and returns as soon as
// either fn finishes or the deadline passes, so an fn that ignores its
// context cannot hold the caller. A non-positive d runs fn inline.
// Cancellation of ctx itself is returned as ctx.Err(), not ErrTimeout.
func WithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(runCtx) }()

	select {
	case err := <-result:
		return err
	case <-runCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrTimeout
}
