package connection

import (
	"math"
	"time"
)

// RetryPolicy decides when the next reconnection attempt happens.
//
// The n-th consecutive retry waits Delay * Multiplier^(n-1), capped at
// MaxDelay. With Multiplier 1 the delay is fixed. MaxAttempts 0 retries
// forever.
type RetryPolicy struct {
	Delay       time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultRetryPolicy retries every 3 seconds, forever.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Delay:      3 * time.Second,
		MaxDelay:   3 * time.Second,
		Multiplier: 1,
	}
}

// Next returns the wait before retry number n (1-based), or false when
// the policy allows no further attempts.
func (p RetryPolicy) Next(n int) (time.Duration, bool) {
	if n < 1 {
		n = 1
	}
	if p.MaxAttempts > 0 && n > p.MaxAttempts {
		return 0, false
	}

	wait := p.Delay
	if p.Multiplier > 1 {
		scaled := float64(p.Delay) * math.Pow(p.Multiplier, float64(n-1))
		switch {
		case p.MaxDelay > 0 && scaled >= float64(p.MaxDelay):
			wait = p.MaxDelay
		case scaled >= math.MaxInt64:
			wait = time.Duration(math.MaxInt64)
		default:
			wait = time.Duration(scaled)
		}
	}
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait, true
}
