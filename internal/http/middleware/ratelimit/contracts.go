package ratelimit

import "time"

// Limiter decides whether the client identified by key may run a manual
// operation now.
type Limiter interface {
	Allow(key string) bool
}

// Clock is the time source of KeyedLimiter.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns time.Now.
func (RealClock) Now() time.Time { return time.Now() }

// NopLimiter admits every request. It is used when the limit is disabled.
type NopLimiter struct{}

// Allow always returns true.
func (NopLimiter) Allow(string) bool { return true }
