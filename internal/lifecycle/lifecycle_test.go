package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2)

	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(2)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1)

	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.False(t, cb.IsOpen())
}

func TestSignalLock_SerializesAcrossGoroutines(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "signals.lock")
	lock := NewSignalLock(lockPath)

	unlock, err := lock.Lock(context.Background())
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		defer close(released)
		unlock2, err := lock.Lock(context.Background())
		if err == nil {
			unlock2()
		}
	}()

	select {
	case <-released:
		t.Fatal("second lock should not have acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-released
}

func TestRunWithTimeout_CompletesInTime(t *testing.T) {
	timedOut, err := RunWithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})

	require.False(t, timedOut)
	require.NoError(t, err)
}

func TestRunWithTimeout_ReportsTimeout(t *testing.T) {
	timedOut, err := RunWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("should be discarded")
	})

	assert.True(t, timedOut)
	assert.Error(t, err)
}
