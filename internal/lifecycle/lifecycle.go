// Package lifecycle holds the concurrency primitives shared by the
// background worker: a circuit breaker for multi-database extraction, the
// process-wide signal-creation lock, and the worker's wall-clock timeout.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// DefaultFailureThreshold is how many consecutive aggregator DB failures
// trip the circuit breaker.
const DefaultFailureThreshold = 3

// CircuitBreaker short-circuits multi-database extraction after repeated
// consecutive failures, until an explicit Reset.
type CircuitBreaker struct {
	mu                  sync.Mutex
	threshold           int
	consecutiveFailures int
	open                bool
}

// NewCircuitBreaker builds a breaker that trips after threshold
// consecutive failures. threshold <= 0 uses DefaultFailureThreshold.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &CircuitBreaker{threshold: threshold}
}

// RecordSuccess clears the consecutive-failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
}

// RecordFailure increments the consecutive-failure count, tripping the
// breaker once threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.threshold {
		cb.open = true
	}
}

// IsOpen reports whether the breaker has tripped.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Reset clears the breaker's tripped state and failure count. Used by
// tests and by operators recovering a stuck process.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = false
	cb.consecutiveFailures = 0
}

// SignalLock serialises signal-file creation across goroutines in this
// process (via mu) and across processes on the same machine (via an
// advisory file lock), so filenames stay unique and each write is atomic
// from a reader's perspective.
type SignalLock struct {
	mu    sync.Mutex
	flock *flock.Flock
}

// NewSignalLock creates a lock backed by a lockfile inside the signals
// directory.
func NewSignalLock(lockPath string) *SignalLock {
	return &SignalLock{flock: flock.New(lockPath)}
}

// Lock acquires both the in-process mutex and the cross-process file lock.
func (l *SignalLock) Lock(ctx context.Context) (func(), error) {
	l.mu.Lock()

	locked, err := l.flock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		l.mu.Unlock()
		if err == nil {
			err = context.DeadlineExceeded
		}
		return nil, err
	}

	return func() {
		_ = l.flock.Unlock()
		l.mu.Unlock()
	}, nil
}

// DefaultWorkerTimeout is the background worker's default wall-clock
// budget.
const DefaultWorkerTimeout = 30 * time.Second

// RunWithTimeout runs fn under timeout (defaulting to
// DefaultWorkerTimeout when zero) and reports whether the deadline was
// reached before fn returned. When the deadline is reached, fn's eventual
// result is discarded: the worker emits no partial signals.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) (timedOut bool, err error) {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return false, err
	case <-ctx.Done():
		return true, ctx.Err()
	}
}
