// Package resilience guards calls to the document store backend.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all calls through
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses
	StateOpen
	// StateHalfOpen lets a single trial call through to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// CountIf restricts which errors count as failures. Errors it rejects are
// returned to the caller and reset the failure streak, so a missing document
// or a bad filter never opens the circuit.
func CountIf(fn func(error) bool) BreakerOption {
	return func(b *Breaker) {
		b.isFailure = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// Breaker opens after maxFailures consecutive counted failures and stays
// open for cooldown before letting one trial call through. Calls arriving
// while the trial is in flight are rejected.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	isFailure   func(error) bool
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool
}

// NewBreaker creates a closed breaker. maxFailures below 1 is treated as 1.
func NewBreaker(maxFailures int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	b := &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		isFailure:   func(err error) bool { return err != nil },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	trial, ok := b.allow()
	if !ok {
		return ErrOpen
	}
	err := fn()
	b.record(err, trial)
	return err
}

// allow reports whether a call may run and whether it is the half-open trial.
func (b *Breaker) allow() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, false
		}
		b.state = StateHalfOpen
	}
	if b.trialing {
		return false, false
	}
	b.trialing = true
	return true, true
}

func (b *Breaker) record(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialing = false
	}
	if err == nil || !b.isFailure(err) {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports open until the next call tries it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trialing = false
}
