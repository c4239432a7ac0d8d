package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"cryptoetl/pkg/market"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultBackoffFactor  = 2.0
)

// RetryConfig encapsulates exponential backoff settings. MaxAttempts counts
// the first call.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// RetryHandler executes retryable operations with backoff.
type RetryHandler struct {
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryHandler constructs a handler, filling zero fields with defaults.
func NewRetryHandler(cfg RetryConfig) *RetryHandler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaultBackoffFactor
	}
	return &RetryHandler{cfg: cfg, sleep: sleepCtx}
}

// Config returns the effective settings.
func (r *RetryHandler) Config() RetryConfig { return r.cfg }

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. It reports how many calls were made.
func (r *RetryHandler) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	backoff := r.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !market.IsRetryable(err) || attempt >= r.cfg.MaxAttempts {
			return attempt, err
		}

		wait := backoff
		var ee *market.ExtractError
		if errors.As(err, &ee) && ee.RetryAfter > 0 {
			wait = min(ee.RetryAfter, r.cfg.MaxBackoff)
		}
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			return attempt, errors.Join(err, sleepErr)
		}

		backoff = time.Duration(math.Min(
			float64(r.cfg.MaxBackoff),
			float64(backoff)*r.cfg.Multiplier,
		))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
