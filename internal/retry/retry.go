// Package retry provides the bounded-backoff helper used by the
// HeadTracker and LogProcessor when a chain RPC call fails transiently.
//
// The base specification retries immediately with no backoff; this
// adds an optional rate cap (golang.org/x/time/rate) so a node that is
// down for an extended period doesn't spin the retry loop at full
// speed. With zero configured rate it degrades to immediate retry.
package retry

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps how often a retry loop may re-attempt a failed call.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter builds a Limiter allowing up to ratePerSecond attempts per
// second with the given burst. A ratePerSecond of 0 disables limiting
// entirely (every Wait call returns immediately) -- this is the base
// spec's "no backoff" behavior.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until the next retry attempt is permitted, or returns the
// context's error if it is cancelled first.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
