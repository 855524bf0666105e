package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration
type Config struct {
	Enabled            bool          // Enable/disable retry logic
	MaxAttempts        int           // Maximum number of retry attempts
	InitialDelay       time.Duration // Initial delay before first retry
	MaxDelay           time.Duration // Maximum delay between retries
	Multiplier         float64       // Exponential backoff multiplier (typically 2.0)
	Jitter             bool          // Add random jitter to prevent thundering herd
	NonRetryableErrors []error       // Errors (matched with errors.Is) that stop retrying
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Backoff computes exponentially growing delays with bounded additive jitter.
// Delay(n) is non-decreasing in n as long as MaxJitter does not exceed InitialDelay.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxJitter    time.Duration

	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

// Delay returns the delay for the given zero-based attempt:
// min(MaxDelay, InitialDelay*Multiplier^attempt + jitter). Attempt 0 carries no jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if attempt > 0 && b.MaxJitter > 0 {
		delay += b.random() * float64(b.MaxJitter)
	}
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	return time.Duration(delay)
}

// Next grows current by one step. The result is never below current and never
// above MaxDelay.
func (b Backoff) Next(current time.Duration) time.Duration {
	if current < b.InitialDelay {
		return b.InitialDelay
	}
	next := float64(current) * b.Multiplier
	if b.MaxJitter > 0 {
		next += b.random() * float64(b.MaxJitter)
	}
	if next > float64(b.MaxDelay) {
		next = float64(b.MaxDelay)
	}
	if time.Duration(next) < current {
		return current
	}
	return time.Duration(next)
}

func (b Backoff) random() float64 {
	if b.Rand != nil {
		return b.Rand()
	}
	return rand.Float64()
}

// Retry executes a function with exponential backoff retry logic
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function that returns a result with exponential backoff retry logic
func RetryWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled {
		return fn()
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if isNonRetryable(err, cfg.NonRetryableErrors) {
			return zero, err
		}

		// Don't retry on last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := calculateDelay(cfg, attempt)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for exponential backoff
func calculateDelay(cfg Config, attempt int) time.Duration {
	b := Backoff{
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
	}
	if cfg.Jitter {
		// up to 25% of the initial delay
		b.MaxJitter = cfg.InitialDelay / 4
	}
	return b.Delay(attempt)
}

// isNonRetryable checks if an error is in the non-retryable errors list
func isNonRetryable(err error, nonRetryableErrors []error) bool {
	for _, nonRetryableErr := range nonRetryableErrors {
		if errors.Is(err, nonRetryableErr) {
			return true
		}
	}
	return false
}
