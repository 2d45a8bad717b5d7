package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-sla-guard/internal/logx"
	"service-sla-guard/internal/repository"
)

var newPool = repository.NewPool

const maxConnectDelay = 5 * time.Second

// connectBackoff doubles delay per failed attempt, capped at maxConnectDelay.
func connectBackoff(delay time.Duration, attempt int) time.Duration {
	d := delay
	for i := 1; i < attempt && d < maxConnectDelay; i++ {
		d *= 2
	}
	return min(d, maxConnectDelay)
}

func connectDbWithRetry(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	const attemptTimeout = 3 * time.Second
	for i := 1; i <= retries; i++ {
		retriesCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := newPool(retriesCtx, dsn)
		cancel()
		if err == nil {
			logger.Info("db connected", logx.Int("attempt", i))
			return pool, nil
		}
		lastErr = err
		wait := connectBackoff(delay, i)
		logger.Warn("db connect failed",
			logx.Int("attempt", i),
			logx.Int("retries", retries),
			logx.Duration("next_delay", wait),
			logx.Err(err),
		)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}
