// Package circuit implements a sliding-window circuit breaker that gates a worker's exchange I/O.
package circuit

import (
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of failures within Window that opens the circuit.
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=1"`
	Window           time.Duration `yaml:"window" json:"window" validate:"gt=0"`
	Cooldown         time.Duration `yaml:"cooldown" json:"cooldown" validate:"gt=0"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Window:           60 * time.Second,
		Cooldown:         120 * time.Second,
	}
}

// Breaker is owned by exactly one worker. The mutex only protects status reads
// from other goroutines.
type Breaker struct {
	mu       sync.Mutex
	config   Config
	now      func() time.Time
	state    State
	failures []time.Time
	openedAt time.Time
	// trialInFlight is set while the single HalfOpen trial call is outstanding.
	trialInFlight bool
	// onOpen is invoked every time the circuit transitions to Open.
	onOpen func()
}

type Option func(*Breaker)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithOnOpen registers a hook called whenever the circuit opens.
func WithOnOpen(fn func()) Option {
	return func(b *Breaker) {
		b.onOpen = fn
	}
}

// NewBreaker creates a closed breaker.
func NewBreaker(config Config, opts ...Option) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}

	b := &Breaker{
		mu:            sync.Mutex{},
		config:        config,
		now:           time.Now,
		state:         StateClosed,
		failures:      nil,
		openedAt:      time.Time{},
		trialInFlight: false,
		onOpen:        nil,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Allow reports whether an I/O attempt may proceed. Once the cooldown has elapsed
// the breaker moves to HalfOpen and admits exactly one trial until it is resolved
// by RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return false
		}

		b.state = StateHalfOpen
		b.trialInFlight = true

		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}

		b.trialInFlight = true

		return true
	}

	return false
}

// RecordSuccess closes the circuit and clears the failure history.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = nil
	b.trialInFlight = false
}

// RecordFailure registers a failed attempt.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()

	now := b.now()
	opened := false

	switch b.state {
	case StateHalfOpen:
		b.open(now)
		opened = true
	case StateOpen:
		// already open, nothing to count
	case StateClosed:
		b.failures = append(b.failures, now)
		b.prune(now)

		if len(b.failures) >= b.config.FailureThreshold {
			b.open(now)
			opened = true
		}
	}

	hook := b.onOpen
	b.mu.Unlock()

	if opened && hook != nil {
		hook()
	}
}

// IsOpen reports whether the circuit is currently rejecting calls.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state == StateOpen
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// RemainingCooldown returns how long the circuit stays open, zero if it is not open.
func (b *Breaker) RemainingCooldown() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}

	remaining := b.config.Cooldown - b.now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// FailureCount returns the number of failures inside the current window.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())

	return len(b.failures)
}

func (b *Breaker) open(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.failures = nil
	b.trialInFlight = false
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.config.Window)

	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	b.failures = kept
}
