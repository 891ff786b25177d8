// Package chat routes assistant conversations between a primary and a
// fallback provider through an explicit circuit breaker, and persists every
// turn to the local chat log.
package chat

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's position.
type BreakerState string

const (
	// StateOK means the guarded provider is trusted.
	StateOK BreakerState = "OK"

	// StateTripped means consecutive failures exceeded the threshold and
	// traffic routes to the fallback until a recovery probe succeeds.
	StateTripped BreakerState = "TRIPPED"
)

// Breaker guards one provider. It trips after a run of consecutive
// failures and lets a single probe through once the recovery interval has
// elapsed; only a recorded success closes it again.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	now       func() time.Time

	state     BreakerState
	failures  int
	trippedAt time.Time
}

// NewBreaker creates a breaker tripping after threshold consecutive
// failures, probing every recovery interval.
func NewBreaker(threshold int, recovery time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		threshold: threshold,
		recovery:  recovery,
		now:       time.Now,
		state:     StateOK,
	}
}

// Allow reports whether a request may go to the guarded provider. While
// tripped it returns true once per recovery interval, so exactly one probe
// is in flight at a time.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOK {
		return true
	}
	if b.now().Sub(b.trippedAt) >= b.recovery {
		// Re-arm the window so concurrent callers do not all probe.
		b.trippedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess closes the breaker and clears the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateOK
	b.failures = 0
}

// RecordFailure counts one failure and trips the breaker at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.state = StateTripped
		b.trippedAt = b.now()
	}
}

// State returns the breaker's current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
