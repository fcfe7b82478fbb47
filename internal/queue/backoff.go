package queue

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 10 * time.Second
	backoffCap  = 15 * time.Minute
)

// Backoff computes the delay before a failed job becomes claimable again:
//
//	backoff(attempt) = min(cap, base * 2^(attempt-1)) + U[0, 1000)ms
//
// attempt is 1-based at its first failure.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exp := backoffBase
	// Guard against overflow for pathologically large attempt counts;
	// the cap makes any shift beyond ~10 irrelevant anyway.
	if attempt-1 < 32 {
		exp = backoffBase * time.Duration(1<<uint(attempt-1))
	} else {
		exp = backoffCap
	}
	if exp > backoffCap || exp < 0 {
		exp = backoffCap
	}

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	return exp + jitter
}
