package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/resilience"
)

// breakerStore stops calling a failing store until the breaker lets a probe
// through. A cache miss is not a failure.
type breakerStore struct {
	store   Store
	breaker *resilience.Breaker
}

// WithBreaker wraps store so that an unreachable Redis costs queries a
// fast error instead of a network timeout each.
func WithBreaker(store Store, b *resilience.Breaker) Store {
	return &breakerStore{store: store, breaker: b}
}

func isFailure(err error) bool {
	return !pkgredis.IsNilError(err)
}

func (s *breakerStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.breaker.Do(func() error {
		var err error
		val, err = s.store.Get(ctx, key)
		return err
	}, isFailure)
	return val, err
}

func (s *breakerStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.breaker.Do(func() error {
		return s.store.Set(ctx, key, value, ttl)
	}, isFailure)
}

func (s *breakerStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := s.breaker.Do(func() error {
		var err error
		n, err = s.store.FlushByPattern(ctx, pattern)
		return err
	}, isFailure)
	return n, err
}
