package routing

import (
	"context"
	"time"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/logx"
)

// RetryConfig describes how RetryingDistancer repeats failed calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingDistancer retries transient routing failures with capped exponential backoff.
type RetryingDistancer struct {
	next    Distancer
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingDistancer returns nil when next is nil.
func NewRetryingDistancer(next Distancer, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingDistancer {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingDistancer{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Distances calls the wrapped Distancer, retrying retryable errors.
func (r *RetryingDistancer) Distances(ctx context.Context, origins []domain.Location, dest domain.Location) ([]float64, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out, err := r.next.Distances(ctx, origins, dest)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == r.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(r.cfg.BaseDelay, r.cfg.MaxDelay, attempt)
		if r.retries != nil {
			r.retries.Inc()
		}
		r.logger.Warn("routing retry",
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return nil, lastErr
}

// DistanceBetween is Distances for a single origin.
func (r *RetryingDistancer) DistanceBetween(ctx context.Context, a, b domain.Location) (float64, error) {
	d, err := r.Distances(ctx, []domain.Location{a}, b)
	if err != nil {
		return 0, err
	}
	return d[0], nil
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Fallback serves distances from primary and switches to straight-line
// distances when primary fails.
type Fallback struct {
	primary Distancer
	logger  logx.Logger
}

// NewFallback returns a Distancer that never fails. A nil primary means
// straight-line distances only.
func NewFallback(primary Distancer, logger logx.Logger) Distancer {
	if primary == nil {
		return Haversine{}
	}
	return &Fallback{primary: primary, logger: logger}
}

// Distances returns primary distances or haversine distances on failure.
func (f *Fallback) Distances(ctx context.Context, origins []domain.Location, dest domain.Location) ([]float64, error) {
	out, err := f.primary.Distances(ctx, origins, dest)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("routing service unavailable, using straight-line distance",
		logx.Int("origins", len(origins)),
		logx.Err(err),
	)
	return Haversine{}.Distances(ctx, origins, dest)
}

// DistanceBetween is Distances for a single origin.
func (f *Fallback) DistanceBetween(ctx context.Context, a, b domain.Location) (float64, error) {
	d, err := f.Distances(ctx, []domain.Location{a}, b)
	if err != nil {
		return 0, err
	}
	return d[0], nil
}
