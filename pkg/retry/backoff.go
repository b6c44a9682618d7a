// Package retry retries transient failures with exponential backoff.
//
//	err := retry.WithRetry(ctx, func() error {
//		resp, err := client.Do(req)
//		if err != nil {
//			return err
//		}
//		if resp.StatusCode == http.StatusNotFound {
//			return retry.Stop(errNotFound)
//		}
//		...
//	}, cfg)
//
// Returning an error wrapped with Stop ends the loop at once and
// WithRetry returns the unwrapped error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/migadu/listsearch/config"
	"github.com/migadu/listsearch/logger"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
	MaxRetries      int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      3,
	}
}

// FromConfig builds a BackoffConfig from the [retry] section.
func FromConfig(cfg config.RetryConfig) (BackoffConfig, error) {
	b := DefaultBackoffConfig()
	initial, err := cfg.GetInitialInterval()
	if err != nil {
		return b, err
	}
	maxInterval, err := cfg.GetMaxInterval()
	if err != nil {
		return b, err
	}
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	if cfg.Multiplier >= 1 {
		b.Multiplier = cfg.Multiplier
	}
	if cfg.MaxRetries >= 0 {
		b.MaxRetries = cfg.MaxRetries
	}
	return b, nil
}

// ExponentialBackoff returns the delay before the given retry attempt.
func ExponentialBackoff(cfg BackoffConfig) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return cfg.InitialInterval
		}

		interval := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt-1))
		if interval > float64(cfg.MaxInterval) {
			interval = float64(cfg.MaxInterval)
		}
		d := time.Duration(interval)

		if cfg.Jitter && d >= 2 {
			d = d/2 + time.Duration(rand.Int63n(int64(d/2)))
		}
		return d
	}
}

type RetryableFunc func() error

// StopError wraps an error to indicate that retries should stop immediately
type StopError struct {
	Err error
}

func (s StopError) Error() string {
	return s.Err.Error()
}

func (s StopError) Unwrap() error {
	return s.Err
}

// Stop wraps an error to indicate that retries should stop immediately
func Stop(err error) error {
	return StopError{Err: err}
}

// IsStopError checks if an error is a StopError
func IsStopError(err error) bool {
	var stopErr StopError
	return errors.As(err, &stopErr)
}

// WithRetry calls fn until it succeeds, returns a StopError, the retries are
// exhausted or ctx is done.
func WithRetry(ctx context.Context, fn RetryableFunc, cfg BackoffConfig) error {
	backoff := ExponentialBackoff(cfg)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}
		attempts++

		err := fn()
		if err == nil {
			return nil
		}
		var stopErr StopError
		if errors.As(err, &stopErr) {
			return stopErr.Err
		}
		lastErr = err
		if attempt < cfg.MaxRetries {
			logger.Debug("Retrying after error", "attempt", attempts, "error", err)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}
