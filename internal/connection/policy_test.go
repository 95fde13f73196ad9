package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRetryPolicy_Next(t *testing.T) {
	tests := []struct {
		name     string
		policy   RetryPolicy
		n        int
		wantWait time.Duration
		wantOK   bool
	}{
		{"default first", DefaultRetryPolicy(), 1, 3 * time.Second, true},
		{"default thousandth", DefaultRetryPolicy(), 1000, 3 * time.Second, true},
		{"zero treated as first", DefaultRetryPolicy(), 0, 3 * time.Second, true},
		{
			name:     "exponential",
			policy:   RetryPolicy{Delay: time.Second, MaxDelay: time.Minute, Multiplier: 2},
			n:        4,
			wantWait: 8 * time.Second,
			wantOK:   true,
		},
		{
			name:     "exponential capped",
			policy:   RetryPolicy{Delay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2},
			n:        10,
			wantWait: 10 * time.Second,
			wantOK:   true,
		},
		{
			name:     "last allowed attempt",
			policy:   RetryPolicy{Delay: time.Second, Multiplier: 1, MaxAttempts: 5},
			n:        5,
			wantWait: time.Second,
			wantOK:   true,
		},
		{
			name:   "exhausted",
			policy: RetryPolicy{Delay: time.Second, Multiplier: 1, MaxAttempts: 5},
			n:      6,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, ok := tt.policy.Next(tt.n)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantWait, wait)
			}
		})
	}
}

func TestRetryPolicy_BoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delay := time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "delay"))
		maxDelay := delay + time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "extra"))
		mult := rapid.Float64Range(1, 10).Draw(t, "multiplier")
		n := rapid.IntRange(1, 500).Draw(t, "n")

		p := RetryPolicy{Delay: delay, MaxDelay: maxDelay, Multiplier: mult}
		wait, ok := p.Next(n)
		if !ok {
			t.Fatalf("unlimited policy refused attempt %d", n)
		}
		if wait < delay || wait > maxDelay {
			t.Fatalf("wait %v outside [%v, %v]", wait, delay, maxDelay)
		}

		next, _ := p.Next(n + 1)
		if next < wait {
			t.Fatalf("wait decreased: %v then %v", wait, next)
		}
	})
}
