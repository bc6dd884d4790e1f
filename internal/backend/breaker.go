package backend

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kohanai/kohana/internal/config"
)

// callGuard protects the generative API with a client-side rate limit and a
// circuit breaker. Repeated upstream failures open the breaker so the bot
// degrades to silence instead of hammering a failing API.
type callGuard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newCallGuard(cfg config.GeminiConfig) *callGuard {
	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 3
	}
	cooldown := time.Duration(cfg.BreakerCooldown) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "gemini",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}

	return &callGuard{
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *callGuard) do(ctx context.Context, call func() (string, error)) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
