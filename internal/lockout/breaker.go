package lockout

import (
	"context"
	"fmt"
	"time"
)

// Breaker runs fn unless tripped. infra.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

type breakerStore struct {
	next    Store
	breaker Breaker
}

// WithBreaker makes every store call go through b, so a downed backend fails
// fast with ErrUnavailable instead of stalling each PIN attempt.
func WithBreaker(next Store, b Breaker) Store {
	return &breakerStore{next: next, breaker: b}
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (s *breakerStore) LockRemaining(ctx context.Context, key Key) (time.Duration, error) {
	var out time.Duration
	err := s.breaker.Execute(func() error {
		var err error
		out, err = s.next.LockRemaining(ctx, key)
		return err
	})
	return out, unavailable(err)
}

func (s *breakerStore) attempt(fn func() (Attempt, error)) (Attempt, error) {
	var out Attempt
	err := s.breaker.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, unavailable(err)
}

func (s *breakerStore) Reserve(ctx context.Context, key Key, p Policy) (Attempt, error) {
	return s.attempt(func() (Attempt, error) { return s.next.Reserve(ctx, key, p) })
}

func (s *breakerStore) Fail(ctx context.Context, key Key, n int, p Policy) (Attempt, error) {
	return s.attempt(func() (Attempt, error) { return s.next.Fail(ctx, key, n, p) })
}

func (s *breakerStore) Release(ctx context.Context, key Key) error {
	return unavailable(s.breaker.Execute(func() error {
		return s.next.Release(ctx, key)
	}))
}

func (s *breakerStore) Refund(ctx context.Context, key Key) error {
	return unavailable(s.breaker.Execute(func() error {
		return s.next.Refund(ctx, key)
	}))
}

func (s *breakerStore) Clear(ctx context.Context, key Key) error {
	return unavailable(s.breaker.Execute(func() error {
		return s.next.Clear(ctx, key)
	}))
}
