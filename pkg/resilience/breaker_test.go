package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_InitialState(t *testing.T) {
	b := NewBreaker(3, time.Second)

	if b.State() != StateClosed {
		t.Errorf("expected initial state closed, got %v", b.State())
	}
	if b.Failures() != 0 {
		t.Errorf("expected no failures, got %d", b.Failures())
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		if err := b.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("open breaker must not run the call")
	}
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	_ = b.Execute(succeed)
	_ = b.Execute(fail)

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
	if b.Failures() != 1 {
		t.Errorf("expected 1 failure after reset, got %d", b.Failures())
	}
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := NewBreaker(1, time.Minute, WithClock(clock.Now))

	_ = b.Execute(fail)
	if err := b.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen during cooldown, got %v", err)
	}

	clock.Advance(time.Minute)
	if err := b.Execute(fail); !errors.Is(err, errBackend) {
		t.Fatalf("expected trial call to run, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("failed trial should reopen, got %v", b.State())
	}

	clock.Advance(time.Minute)
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("expected trial success, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("successful trial should close, got %v", b.State())
	}
}

func TestBreaker_HalfOpenAdmitsOneCall(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := NewBreaker(1, time.Minute, WithClock(clock.Now))

	_ = b.Execute(fail)
	clock.Advance(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open during trial, got %v", b.State())
	}
	ran := false
	err := b.Execute(func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while trial is in flight, got %v", err)
	}
	if ran {
		t.Fatal("second call must not run while half-open")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial call error = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("successful trial should close, got %v", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("closed breaker rejected call: %v", err)
	}
}

func TestBreaker_CountIf(t *testing.T) {
	errNotFound := errors.New("not found")
	b := NewBreaker(1, time.Minute, CountIf(func(err error) bool { return errors.Is(err, errBackend) }))

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("uncounted errors must not open the breaker, got %v", b.State())
	}

	_ = b.Execute(fail)
	if b.State() != StateOpen {
		t.Errorf("counted error should open the breaker, got %v", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	_ = b.Execute(fail)
	b.Reset()

	if b.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %v", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Errorf("expected call to run after reset, got %v", err)
	}
}

func TestNewBreaker_ClampsMaxFailures(t *testing.T) {
	b := NewBreaker(0, time.Hour)
	_ = b.Execute(fail)
	if b.State() != StateOpen {
		t.Errorf("expected one failure to open, got %v", b.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
