package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("test", 3, time.Minute)
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
	assert.Equal(t, "test", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("test", 3, time.Minute)

	// First two failures don't open
	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.Allow())

	// Third failure opens the circuit
	assert.True(t, b.RecordFailure())
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures don't open (count was reset)
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_SuccessClosesOpenCircuit(t *testing.T) {
	b := New("test", 1, time.Minute)

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)

	// Cooldown expired: the breaker lets a probe through.
	assert.True(t, b.Allow())
	assert.False(t, b.IsOpen())

	// A probe failure re-opens immediately at threshold 1.
	assert.True(t, b.RecordFailure())
	assert.False(t, b.Allow())
}

func TestBreaker_ZeroConfigFallsBackToDefaults(t *testing.T) {
	b := New("test", 0, 0)
	for range 4 {
		assert.False(t, b.RecordFailure())
	}
	assert.True(t, b.RecordFailure())
}
