package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy yields the wait that follows failed attempt n.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff multiplies the delay by Multiplier after every
// attempt, capped at MaxDelay.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each delay by up to ±factor so repeated
	// failures do not synchronize (0.0 to 1.0).
	JitterFactor float64
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	return capAndJitter(d, float64(b.MaxDelay), b.JitterFactor)
}

// LinearBackoff grows the delay by a fixed Increment after every
// attempt, capped at MaxDelay.
type LinearBackoff struct {
	BaseDelay    time.Duration
	Increment    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(b.BaseDelay + b.Increment*time.Duration(attempt-1))
	return capAndJitter(d, float64(b.MaxDelay), b.JitterFactor)
}

// ConstantBackoff waits the same Delay every time.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

func capAndJitter(delay, max, factor float64) time.Duration {
	if max > 0 && delay > max {
		delay = max
	}
	if factor > 0 {
		delay += (rand.Float64()*2 - 1) * delay * factor
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Wait blocks for delay or until ctx is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
