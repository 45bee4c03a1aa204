package daraja

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterThresholdFailures(t *testing.T) {
	now := time.Now()
	b := NewCircuitBreaker()
	b.now = func() time.Time { return now }

	for i := 0; i < failureThreshold-1; i++ {
		b.RecordFailure()
		require.True(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	require.False(t, b.Allow(), "breaker must open at the threshold")
	require.False(t, b.Allow(), "repeated checks inside the window stay open")
}

func TestCircuitBreaker_HealsAfterResetWindow(t *testing.T) {
	now := time.Now()
	b := NewCircuitBreaker()
	b.now = func() time.Time { return now }

	for i := 0; i < failureThreshold; i++ {
		b.RecordFailure()
	}
	require.False(t, b.Allow())

	// just inside the window: still open
	now = now.Add(resetWindow - time.Second)
	require.False(t, b.Allow())

	// window elapsed: self-heals and the next call passes at full rate
	now = now.Add(2 * time.Second)
	require.True(t, b.Allow())

	// healing reset the counter, so one new failure does not re-open
	b.RecordFailure()
	require.True(t, b.Allow())
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	b := NewCircuitBreaker()

	for i := 0; i < failureThreshold-1; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()

	for i := 0; i < failureThreshold-1; i++ {
		b.RecordFailure()
	}
	require.True(t, b.Allow())
}
