package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-sla-guard/internal/config"
	"service-sla-guard/internal/http/middleware/ratelimit"
	"service-sla-guard/internal/logx"
)

const (
	rateLimitTTL     = 10 * time.Minute
	rateLimitMaxKeys = 10000
)

// newRateLimiter limits manual cycles and reassignments per client.
// A non-positive rate disables the limit.
func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	if cfg.Trigger.RPS <= 0 {
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewKeyedLimiter(clock, ratelimit.Config{
		Rate:    cfg.Trigger.RPS,
		Burst:   cfg.Trigger.Burst,
		TTL:     rateLimitTTL,
		MaxKeys: rateLimitMaxKeys,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitIn struct {
	dig.In
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}
