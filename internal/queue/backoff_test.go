package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_BaseAndJitter(t *testing.T) {
	d := Backoff(1)
	assert.GreaterOrEqual(t, d, 10*time.Second)
	assert.Less(t, d, 10*time.Second+1000*time.Millisecond)
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	d := Backoff(3)
	assert.GreaterOrEqual(t, d, 40*time.Second)
	assert.Less(t, d, 40*time.Second+1000*time.Millisecond)
}

func TestBackoff_CappedAtFifteenMinutes(t *testing.T) {
	d := Backoff(20)
	assert.GreaterOrEqual(t, d, 15*time.Minute)
	assert.Less(t, d, 15*time.Minute+1000*time.Millisecond)
}

func TestBackoff_ClampsNonPositiveAttempt(t *testing.T) {
	d := Backoff(0)
	assert.GreaterOrEqual(t, d, 10*time.Second)
	assert.Less(t, d, 10*time.Second+1000*time.Millisecond)
}

func TestBackoff_NeverNegative(t *testing.T) {
	for _, attempt := range []int{1, 5, 15, 50, 1000} {
		assert.GreaterOrEqual(t, Backoff(attempt), time.Duration(0))
	}
}
