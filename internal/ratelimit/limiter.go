// Package ratelimit paces probe traffic against the target API.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every probe of a run.
type Limiter struct {
	limiter *rate.Limiter
	delay   time.Duration

	waits    atomic.Int64
	waitedNs atomic.Int64
}

// NewFromDelay creates a limiter spacing requests at least delay apart.
// A zero or negative delay disables pacing.
func NewFromDelay(delay time.Duration) *Limiter {
	if delay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		delay:   delay,
	}
}

// Wait blocks until a request is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := l.limiter.Wait(ctx)
	l.waits.Add(1)
	l.waitedNs.Add(int64(time.Since(start)))
	return err
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	return LimiterStats{
		Rate:        float64(l.limiter.Limit()),
		Burst:       l.limiter.Burst(),
		Delay:       l.delay,
		Waits:       l.waits.Load(),
		TotalWaited: time.Duration(l.waitedNs.Load()),
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	Rate        float64       `json:"rate"`
	Burst       int           `json:"burst"`
	Delay       time.Duration `json:"delay"`
	Waits       int64         `json:"waits"`
	TotalWaited time.Duration `json:"total_waited"`
}
