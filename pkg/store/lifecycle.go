package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Guard records whether a backend adapter has been closed. The zero value
// is open.
type Guard struct {
	mu     sync.RWMutex
	closed bool
}

// Open returns ErrClosed, naming the backend, once Shutdown has run.
func (g *Guard) Open(backend string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("%s: %w", backend, ErrClosed)
	}
	return nil
}

// Shutdown closes the guard and reports whether this call was the first.
func (g *Guard) Shutdown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

// Bound gives ctx a deadline d from now. A ctx that already carries a
// deadline, or a non-positive d, is returned unchanged.
func Bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
