// Package resilience wraps a hishel.Storage with retry and circuit-breaker
// policies from github.com/failsafe-go/failsafe-go, so a flaky or
// overloaded backend degrades the cache instead of failing every request.
package resilience

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"

	"github.com/hishelgo/hishel"
)

// Config configures the retry and circuit-breaker policies applied to
// every Storage call.
type Config struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Zero disables retries.
	MaxRetries int
	// RetryDelay is the base delay between retry attempts.
	RetryDelay time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit breaker. Zero disables the breaker.
	FailureThreshold uint
	// OpenDuration is how long the breaker stays open before allowing a
	// trial request through.
	OpenDuration time.Duration
}

// Storage wraps inner with the configured resilience policies.
type Storage struct {
	inner    hishel.Storage
	executor failsafe.Executor[any]
}

// Wrap builds a resilient Storage around inner.
func Wrap(inner hishel.Storage, cfg Config) *Storage {
	var policies []failsafe.Policy[any]

	if cfg.FailureThreshold > 0 {
		cb := circuitbreaker.Builder[any]().
			WithFailureThreshold(cfg.FailureThreshold).
			WithDelay(cfg.OpenDuration).
			Build()
		policies = append(policies, cb)
	}

	if cfg.MaxRetries > 0 {
		rp := retrypolicy.Builder[any]().
			WithMaxRetries(cfg.MaxRetries).
			WithBackoff(cfg.RetryDelay, 10*cfg.RetryDelay).
			Build()
		policies = append(policies, rp)
	}

	return &Storage{inner: inner, executor: failsafe.NewExecutor[any](policies...)}
}

func run[T any](s *Storage, fn func() (T, error)) (T, error) {
	var zero T
	var result T
	_, err := s.executor.Get(func() (any, error) {
		v, err := fn()
		result = v
		return nil, err
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (s *Storage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	return run(s, func() (hishel.IncompletePair, error) { return s.inner.CreatePair(ctx, cacheKey, req) })
}

func (s *Storage) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	return run(s, func() (hishel.CompletePair, error) { return s.inner.AddResponse(ctx, id, resp) })
}

func (s *Storage) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	return run(s, func() ([]hishel.CompletePair, error) { return s.inner.GetPairs(ctx, cacheKey) })
}

func (s *Storage) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	return run(s, func() (hishel.CompletePair, error) { return s.inner.UpdatePair(ctx, id, fn) })
}

func (s *Storage) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := run(s, func() (struct{}, error) { return struct{}{}, s.inner.Remove(ctx, id) })
	return err
}

func (s *Storage) Cleanup(ctx context.Context) error {
	_, err := run(s, func() (struct{}, error) { return struct{}{}, s.inner.Cleanup(ctx) })
	return err
}

func (s *Storage) Close() error { return s.inner.Close() }

var _ hishel.Storage = (*Storage)(nil)
