// Package circuit provides a small consecutive-failure circuit breaker used
// to guard outbound dependencies (the CDC upstream, the Kafka relay).
package circuit

import (
	"sync"
	"time"
)

// Breaker opens after a run of consecutive failures and stays open for a
// cooldown period. While open, Allow returns false so callers can fail fast
// instead of piling up on a dead dependency.
type Breaker struct {
	mu sync.RWMutex

	name      string
	threshold int           // failures to trigger open
	cooldown  time.Duration // how long to stay open

	failures  int       // consecutive failures
	openUntil time.Time // when to transition from open to half-open
	isOpen    bool
}

// New creates a breaker. A threshold or cooldown of zero falls back to
// 5 failures / 30 seconds.
func New(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown}
}

// Name returns the breaker's name for log and metric labels.
func (b *Breaker) Name() string { return b.name }

// Allow returns true if the circuit is closed (healthy) or half-open (testing).
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	if !b.isOpen {
		b.mu.RUnlock()
		return true
	}
	expired := time.Now().After(b.openUntil)
	b.mu.RUnlock()

	if !expired {
		return false
	}

	// Transition to half-open - allow one request through.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isOpen && time.Now().After(b.openUntil) {
		b.isOpen = false
		b.failures = 0
	}
	return !b.isOpen
}

// RecordSuccess records a successful operation, closing the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.isOpen = false
}

// RecordFailure records a failed operation, opening the circuit once the
// consecutive-failure threshold is reached. Returns true if the circuit is
// now open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.isOpen = true
		b.openUntil = time.Now().Add(b.cooldown)
	}
	return b.isOpen
}

// IsOpen reports the current state without the half-open transition.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isOpen
}
