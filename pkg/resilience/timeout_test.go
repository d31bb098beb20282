package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWithTimeout_Completes(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestWithTimeout_PropagatesError(t *testing.T) {
	want := errors.New("dial failed")
	err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	err := WithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWithTimeout_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.Canceled) && err != nil {
		t.Fatalf("expected context.Canceled or nil, got %v", err)
	}
}

func TestWithTimeout_ParentDeadlineFirst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	err := WithTimeout(ctx, time.Hour, func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected the caller's deadline error, got %v", err)
	}
}

func TestWithTimeout_ZeroRunsInline(t *testing.T) {
	err := WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

// Property 1: Fast functions never time out
func TestProperty_FastFunctionsComplete(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	properties.Property("result is returned unchanged", prop.ForAll(
		func(msg string) bool {
			want := errors.New(msg)
			err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
				return want
			})
			return errors.Is(err, want)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
