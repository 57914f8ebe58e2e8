// Package resilience wraps provider calls with a circuit breaker and an
// optional courtesy rate limiter, on top of (not instead of) the core's
// mandatory per-provider rateLimitedUntil cooldown scalar.
package resilience

import (
	"context"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quietridge/copilot-core/coreerr"
)

// Breaker wraps a provider's calls in a gobreaker.CircuitBreaker so a run
// of failures short-circuits to the next fallback instead of waiting out a
// dead upstream's own timeout on every subsequent call.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a breaker that trips after consecutiveFailures in a
// row and stays open for the duration gobreaker's default settings allow
// before probing again.
func NewBreaker(name string, consecutiveFailures uint32) *Breaker {
	st := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. A NotFound result from fn (a soft
// miss, not an upstream fault) must not be treated as a failure by the
// caller's fn — only transport/ProviderError/Timeout outcomes should
// return a non-nil error so the breaker counts real faults.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, coreerr.New(coreerr.ProviderError, "circuit open: upstream recently failing")
		}
		return nil, err
	}
	return v, nil
}

// CourtesyLimiter is a token-bucket limiter placed in front of best-effort
// providers (symbol search, CSV) so a large client batch doesn't itself
// trigger the upstream's own rate limiting. It blocks up to the caller's
// context deadline rather than failing outright — this is self-imposed
// pacing, not an observed RateLimit condition.
type CourtesyLimiter struct {
	limiter *rate.Limiter
}

// NewCourtesyLimiter builds a limiter allowing ratePerSec requests/second
// with the given burst.
func NewCourtesyLimiter(ratePerSec float64, burst int) *CourtesyLimiter {
	return &CourtesyLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (c *CourtesyLimiter) Wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return coreerr.New(coreerr.Timeout, "courtesy rate limiter wait cancelled")
	}
	return nil
}
