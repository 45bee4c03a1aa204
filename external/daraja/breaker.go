package daraja

import (
	"sync"
	"time"
)

const (
	failureThreshold = 5
	resetWindow      = 30 * time.Second
)

// CircuitBreaker is a windowed consecutive-failure counter. Once the
// threshold is reached the breaker rejects calls until the reset window
// elapses, after which it heals fully: the next call passes at full rate.
// There is no half-open probe state.
type CircuitBreaker struct {
	mu                  sync.Mutex
	consecutiveFailures int
	lastFailureAt       time.Time

	now func() time.Time // injectable for tests
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{now: time.Now}
}

// Allow reports whether a request may proceed. When the reset window has
// elapsed since the last failure, the counter is reset before evaluating.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consecutiveFailures >= failureThreshold {
		if b.now().Sub(b.lastFailureAt) < resetWindow {
			return false
		}
		b.consecutiveFailures = 0
	}
	return true
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	b.consecutiveFailures = 0
	b.mu.Unlock()
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	b.consecutiveFailures++
	b.lastFailureAt = b.now()
	b.mu.Unlock()
}
