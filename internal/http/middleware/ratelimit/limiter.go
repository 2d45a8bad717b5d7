package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config stores KeyedLimiter settings.
type Config struct {
	Rate    float64       // events per second
	Burst   int           // bucket capacity
	TTL     time.Duration // forget idle keys (0 disables)
	MaxKeys int           // tracked keys cap, new keys are denied above it (0 disables)
}

// KeyedLimiter keeps one rate.Limiter per key, e.g. per client IP.
type KeyedLimiter struct {
	cfg         Config
	clock       Clock
	mu          sync.Mutex
	limiters    map[string]*entry
	lastCleanup time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter. A nil clock means wall time.
func NewKeyedLimiter(clock Clock, cfg Config) *KeyedLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxKeys < 0 {
		cfg.MaxKeys = 0
	}
	return &KeyedLimiter{
		cfg:      cfg,
		clock:    clock,
		limiters: make(map[string]*entry),
	}
}

// Allow reports whether key may proceed now and consumes a token if so.
func (l *KeyedLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	l.cleanupLocked(now)
	e, ok := l.limiters[key]
	if !ok {
		if l.cfg.MaxKeys > 0 && len(l.limiters) >= l.cfg.MaxKeys {
			l.mu.Unlock()
			return false
		}
		e = &entry{lim: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *KeyedLimiter) cleanupLocked(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}
	interval := max(l.cfg.TTL/2, time.Second)
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		return
	}
	l.lastCleanup = now

	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.cfg.TTL {
			delete(l.limiters, k)
		}
	}
}
