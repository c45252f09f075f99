package perrors

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/selfheal/playback-core/internal/logging"
)

// RetryConfig configures exponential backoff with jitter, used by
// HealingProvider calls that may time out transiently.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig mirrors the teacher's sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// RetryableFunc is retried by Retry until it succeeds, ctx is
// cancelled, or attempts are exhausted.
type RetryableFunc func(ctx context.Context) error

// Retry runs fn with exponential backoff. A nil logger disables
// progress logging.
func Retry(ctx context.Context, cfg RetryConfig, logger *logging.Logger, fn RetryableFunc) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := backoffDelay(cfg, attempt)
		if logger != nil {
			logger.Debug("retry attempt %d failed: %v, sleeping %s", attempt+1, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	base := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(cfg.MaxDelay); base > max {
		base = max
	}
	jitter := base * cfg.JitterFactor * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = cfg.BaseDelay
	}
	return d
}
