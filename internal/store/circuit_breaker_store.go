package store

import (
	"context"
	"fmt"
	"time"

	"replybot/internal/config"
	"replybot/pkg/circuitbreaker"
	"replybot/pkg/errors"
)

// CircuitBreakerStore fails fast once the wrapped store keeps erroring, so
// callers can apply their fallback without waiting on network timeouts.
type CircuitBreakerStore struct {
	store AtomicStore
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store AtomicStore, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.FromConfig("redis-store", cfg),
	}
}

func (s *CircuitBreakerStore) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if s.cb == nil {
		return fn()
	}

	result, err := s.cb.ExecuteWithContext(ctx, fn)
	if err != nil {
		if circuitbreaker.IsRejection(err) {
			return nil, errors.Wrap(fmt.Errorf("circuit breaker %s: %w", s.cb.Name(), err), errors.ErrStoreUnavailable)
		}
		return nil, err
	}
	return result, nil
}

func (s *CircuitBreakerStore) SlidingWindowAdmit(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	result, err := s.execute(ctx, func() (interface{}, error) {
		return s.store.SlidingWindowAdmit(ctx, key, window, limit)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s *CircuitBreakerStore) WindowCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	result, err := s.execute(ctx, func() (interface{}, error) {
		return s.store.WindowCount(ctx, key, window)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

type markerResult struct {
	wasAbsent bool
	remaining time.Duration
}

func (s *CircuitBreakerStore) SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	result, err := s.execute(ctx, func() (interface{}, error) {
		wasAbsent, remaining, err := s.store.SetIfAbsentWithTTL(ctx, key, ttl)
		return markerResult{wasAbsent: wasAbsent, remaining: remaining}, err
	})
	if err != nil {
		return false, 0, err
	}
	r := result.(markerResult)
	return r.wasAbsent, r.remaining, nil
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute(ctx, func() (interface{}, error) {
		return nil, s.store.Delete(ctx, key)
	})
	return err
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
