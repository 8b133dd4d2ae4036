package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"golang.org/x/time/rate"
)

// ErrRetriesExhausted is returned when every attempt allowed by MaxRetries failed.
var ErrRetriesExhausted = fmt.Errorf("geocoding retries exhausted: %w", ErrNoResult)

// LimiterConfig holds the pacing policy applied to a provider.
type LimiterConfig struct {
	MinDelay   time.Duration // MinDelay is the minimum time between two provider calls.
	MaxRetries int           // MaxRetries bounds the retries after a failed call.
	ErrorWait  time.Duration // ErrorWait is slept before every retry.
}

// RateLimiter wraps a Provider so that calls are spaced by at least MinDelay and
// failed calls are retried a bounded number of times. A result wrapping ErrNoResult
// is returned as is and never retried. Once the retries are exhausted the failure
// is reported as ErrRetriesExhausted, which wraps ErrNoResult, so callers treat it
// as a miss and may try a coarser address.
// RateLimiter is itself a Provider and is meant to be built once per run.
type RateLimiter struct {
	provider   Provider
	limiter    *rate.Limiter
	maxRetries int
	errorWait  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

// NewRateLimiter builds a RateLimiter around provider.
func NewRateLimiter(provider Provider, config LimiterConfig, log *slog.Logger) *RateLimiter {
	limit := rate.Inf
	if config.MinDelay > 0 {
		limit = rate.Every(config.MinDelay)
	}

	return &RateLimiter{
		provider:   provider,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(config.MaxRetries, 0),
		errorWait:  config.ErrorWait,
		sleep:      Sleep,
		log:        log,
	}
}

// Geocode calls the wrapped provider under the rate limit.
func (rl *RateLimiter) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	for attempt := 0; ; attempt++ {
		if err := rl.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		coords, err := rl.provider.Geocode(ctx, address)
		if err == nil || errors.Is(err, ErrNoResult) {
			return coords, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to geocode after %d attempts: %w", attempt+1, err)
		}
		if attempt >= rl.maxRetries {
			rl.log.WarnContext(ctx, "Geocoding gave up after retries",
				"address", address,
				"attempts", attempt+1,
				"error", err)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}

		rl.log.WarnContext(ctx, "Geocoding call failed, retrying",
			"address", address,
			"attempt", attempt+1,
			"max_retries", rl.maxRetries,
			"wait", rl.errorWait,
			"error", err)

		if errSleep := rl.sleep(ctx, rl.errorWait); errSleep != nil {
			return nil, fmt.Errorf("failed to wait before retry: %w", errSleep)
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
