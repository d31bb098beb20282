package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGuard(t *testing.T) {
	var g Guard
	if err := g.Open("mongodb"); err != nil {
		t.Fatalf("zero guard must be open, got %v", err)
	}
	if !g.Shutdown() {
		t.Fatal("first Shutdown must report true")
	}
	if g.Shutdown() {
		t.Fatal("second Shutdown must report false")
	}

	err := g.Open("mongodb")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if !strings.Contains(err.Error(), "mongodb") {
		t.Errorf("expected backend in error, got %v", err)
	}
	if Classify(err) != KindUnavailable {
		t.Errorf("closed adapter must classify as unavailable, got %s", Classify(err))
	}
}

func TestBound(t *testing.T) {
	t.Run("adds deadline", func(t *testing.T) {
		ctx, cancel := Bound(context.Background(), 2*time.Second)
		defer cancel()
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected deadline")
		}
		if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
			t.Fatalf("unexpected remaining time %v", remaining)
		}
	})

	t.Run("keeps caller deadline", func(t *testing.T) {
		parent, parentCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer parentCancel()
		ctx, cancel := Bound(parent, time.Hour)
		defer cancel()
		want, _ := parent.Deadline()
		if got, _ := ctx.Deadline(); !got.Equal(want) {
			t.Fatalf("expected caller deadline %v, got %v", want, got)
		}
	})

	t.Run("zero duration", func(t *testing.T) {
		ctx, cancel := Bound(context.Background(), 0)
		defer cancel()
		if _, ok := ctx.Deadline(); ok {
			t.Fatal("zero duration must not add a deadline")
		}
	})
}
