// Package task holds the job-retry policy shared by internal/runner: how
// many attempts a failed job gets and how long it waits between them.
package task

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines the retry behavior for failed jobs.
type RetryPolicy struct {
	MaxAttempts    int           // Maximum number of attempts, the first one included
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
	JitterFactor   float64       // Random jitter factor (0.0 to 1.0)
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Minute,
		BackoffFactor:  2.0,
		JitterFactor:   0.1,
	}
}

// CalculateBackoff calculates the backoff duration for a given attempt number.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return p.InitialBackoff
	}

	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))

	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	if p.JitterFactor > 0 {
		jitter := backoff * p.JitterFactor * (rand.Float64()*2 - 1) // -jitter to +jitter
		backoff += jitter
	}

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}
