package chain

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes retry delays: exponential growth from Initial by Factor,
// capped at Max, with a symmetric jitter fraction to avoid thundering herds.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// DefaultBackoff matches the connector's configuration defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 500 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2.0,
		Jitter:  0.1,
	}
}

// Next returns the delay for the given zero-based attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(b.Initial) * math.Pow(b.Factor, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 && delay > 0 {
		span := delay * b.Jitter
		delay += (rand.Float64() - 0.5) * 2 * span
		if delay < 0 {
			delay = float64(b.Initial)
		}
	}

	return time.Duration(delay)
}

// Sleep waits the delay for attempt, or returns early with ctx.Err() on
// cancellation.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Next(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
