package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy decides how long to wait before an attempt is retried
type BackoffStrategy interface {
	// NextBackoff returns the delay before the given attempt (1-based) is retried
	NextBackoff(attempt int) time.Duration
}

// ConstantBackoff waits the same interval before every retry
type ConstantBackoff struct {
	Interval time.Duration
}

func (b *ConstantBackoff) NextBackoff(attempt int) time.Duration {
	return b.Interval
}

// ExponentialBackoff grows the delay by Multiplier per attempt, adds up to
// JitterFactor of random spread and caps the result at MaxInterval.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (b *ExponentialBackoff) NextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.JitterFactor > 0 {
		delay += rand.Float64() * b.JitterFactor * delay
	}

	if delay > float64(b.MaxInterval) {
		return b.MaxInterval
	}
	return time.Duration(delay)
}

// OrderSyncBackoff paces retries of a single order-status mirror call. The
// outbox poll is the outer retry loop and delays stay under one poll interval.
func OrderSyncBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     4 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.2,
	}
}

// ReplayBackoff paces dead-letter replays, which back off to minutes.
func ReplayBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: 1 * time.Second,
		MaxInterval:     2 * time.Minute,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}
