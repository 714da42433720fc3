// Package retry implements exponential-backoff retries for outbound provider
// calls. All retry responsibility lives at the adapter layer; the analysis
// engine itself never retries.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // Maximum number of attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Exponential backoff multiplier
}

// DefaultConfig returns the default backoff schedule: 500ms, 1s, 2s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is an attempt; attempt numbering starts at 1.
type Func func(ctx context.Context, attempt int) error

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Do returns it immediately instead of
// retrying. Use it for responses that will not change on a retry, like
// a 404 for an unknown token.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do executes fn with exponential backoff until it succeeds, the attempt
// budget is exhausted, or the context is cancelled.
func Do(ctx context.Context, log zerolog.Logger, cfg Config, fn Func) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("attempts", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		var perm permanentError
		if stderrors.As(err, &perm) {
			return perm.err
		}

		if attempt >= cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoffDelay(cfg, attempt)
		log.Warn().
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("delay", delay).
			Err(err).
			Msg("operation failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoffDelay computes initialDelay * multiplier^(attempt-1), capped.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
