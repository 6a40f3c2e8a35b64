package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff configures Retry. Zero fields take the defaults of three attempts
// starting at 200ms and capped at 5s.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 200 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	return b
}

// delay doubles per attempt with up to 10% jitter either way.
func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial << (attempt - 1)
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	jitter := time.Duration(float64(d) * 0.1 * (2*rand.Float64() - 1))
	return d + jitter
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// The last error is wrapped in the returned error.
func Retry(ctx context.Context, op string, b Backoff, fn func(context.Context) error) error {
	b = b.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", op)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
		}
		d := b.delay(attempt)
		logger.Warn("attempt failed, retrying", "attempt", attempt, "error", err, "next_delay", d)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s aborted: %w (last error: %v)", op, ctx.Err(), err)
		}
	}
}
