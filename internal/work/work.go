// Package work provides the execution policy shared by every outbound
// call in the pipeline: a fixed-size admission gate bounding in-flight
// requests, exponential-backoff retry for transient failures, and an
// explicit failure taxonomy so callers can decide between retrying,
// falling back to a smaller unit of work, or propagating.
package work

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/abelbrown/digest/internal/logging"
)

// Failure kinds. Callers classify errors at the point of origin with
// Classify and test them with errors.Is.
var (
	// ErrTransient marks network, timeout, and rate-limit failures.
	// These are retried with backoff before degrading to a fallback.
	ErrTransient = errors.New("transient failure")

	// ErrMalformed marks a structurally invalid backend response
	// (bad JSON, schema violation). Never retried as-is; the caller
	// falls back to a smaller unit of work instead.
	ErrMalformed = errors.New("malformed response")
)

// classified wraps an error with its failure kind while keeping the
// original error chain intact.
type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// Classify tags err with the given failure kind.
func Classify(kind, err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: err}
}

// IsTransient reports whether err should be retried. Errors explicitly
// classified win; for unclassified errors from SDKs we fall back to
// status-code heuristics in the error text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMalformed) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") {
		return true
	}
	return false
}

// RetryConfig holds the backoff policy for one work category.
type RetryConfig struct {
	MaxAttempts    int           // Total attempts including the first (default 3)
	InitialBackoff time.Duration // Backoff before the second attempt (default 1s)
	MaxBackoff     time.Duration // Backoff cap (default 8s)
	Multiplier     float64       // Backoff growth factor (default 2.0)
}

// DefaultRetryConfig returns the default backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 1 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Gate is the admission gate bounding concurrent in-flight calls to a
// backend. One Gate is shared across all units of the same work
// category; it carries no data, only the concurrency limit.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a gate admitting at most n concurrent units.
// If n <= 0, the default of 3 is used.
func NewGate(n int) *Gate {
	if n <= 0 {
		n = 3
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn under the gate with the given retry policy. Only transient
// failures are retried; malformed responses and other fatal errors
// return immediately so the caller can apply its fallback. The returned
// error is the last attempt's error once retries are exhausted.
func (g *Gate) Do(ctx context.Context, op string, cfg RetryConfig, fn func(context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: acquire slot: %w", op, err)
	}
	defer g.sem.Release(1)

	cfg = cfg.normalized()
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logging.Debug("Call succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}

		logging.Debug("Transient failure, backing off",
			"op", op, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", op, cfg.MaxAttempts, lastErr)
}
