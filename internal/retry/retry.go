package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy is a bounded fixed-delay retry. No backoff: the upstreams here are
// either rate limits that clear on a fixed schedule or a database that is
// down for minutes, not milliseconds.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs fn up to MaxAttempts times, sleeping Delay between attempts.
// It returns the last error once attempts are exhausted, or the context
// error if the wait is cancelled.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, label string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if logger != nil {
			logger.Warn("attempt failed",
				zap.String("op", label),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return err
}
