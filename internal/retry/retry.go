// Package retry provides exponential backoff for calls to remote providers.
package retry

import (
	"context"
	"errors"
	"time"
)

// Config configures exponential backoff retry behavior
type Config struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Initial delay between attempts
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Exponential backoff multiplier
}

// Default returns the backoff used for embedding and oracle calls
func Default() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// permanent wraps an error that must not be retried
type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err so Do returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do executes fn with exponential backoff. Retries stop on context
// cancellation or when fn returns an error wrapped with Permanent.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := max(cfg.MaxAttempts, 1)
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var p *permanent
		if errors.As(err, &p) {
			return zero, p.err
		}
		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
				if cfg.MaxDelay > 0 && backoff > cfg.MaxDelay {
					backoff = cfg.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
