package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardSettings configures the rate limit and circuit breaker in front of a feed.
type GuardSettings struct {
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// Guard throttles calls to one upstream feed and stops calling it after repeated failures.
type Guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard creates a guard for the named feed. Zero settings disable throttling and
// trip the breaker after 3 consecutive failures for 60s.
func NewGuard(name string, s GuardSettings) *Guard {
	limit := rate.Inf
	if s.RequestsPerSecond > 0 {
		limit = rate.Limit(s.RequestsPerSecond)
	}
	burst := s.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := s.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	timeout := s.BreakerTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	st := gobreaker.Settings{Name: name}
	st.Timeout = timeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= failures
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("feed", name).Str("from", from.String()).Str("to", to.String()).Msg("feed breaker state changed")
	}

	return &Guard{
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State { return g.breaker.State() }

// Do waits for a rate token and runs fn through the breaker. An open breaker
// fails fast with gobreaker.ErrOpenState.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// breakerState names the breaker state of g, "none" without a guard.
func breakerState(g *Guard) string {
	if g == nil {
		return "none"
	}
	return g.State().String()
}

// call runs fn through g, or directly when g is nil.
func call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
