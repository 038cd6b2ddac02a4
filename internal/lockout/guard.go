// Package lockout throttles operator PIN attempts per (branch, session) key.
//
// A key moves Open → Warned (1..N-1 failures inside the failure window) →
// Locked (N-th failure) → Open again once the lock duration elapses. A
// successful match restarts the count. State lives behind the Store interface so a
// multi-process deployment can share it (RedisStore); MemoryStore keeps it
// per process.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	DefaultMaxAttempts   = 5
	DefaultLockDuration  = 15 * time.Minute
	DefaultFailureWindow = 15 * time.Minute
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("lockout store unavailable")

// Key scopes attempt accounting to one terminal session in one branch.
type Key struct {
	BranchID  string
	SessionID string
}

// String length-prefixes the branch id so ids containing ':' cannot collide.
func (k Key) String() string {
	return strconv.Itoa(len(k.BranchID)) + ":" + k.BranchID + ":" + k.SessionID
}

// Policy is the throttle configuration. FailureWindow is sliding: failures
// older than the window (measured from the most recent failure) are forgotten.
// A zero FailureWindow keeps failures until success or lock.
type Policy struct {
	MaxAttempts   int
	LockDuration  time.Duration
	FailureWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		LockDuration:  DefaultLockDuration,
		FailureWindow: DefaultFailureWindow,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultLockDuration
	}
	if p.FailureWindow < 0 {
		p.FailureWindow = 0
	}
	return p
}

// Attempt is a store's answer to a reservation or a settled failure.
// Failures is the attempt's position in the current count, this one included.
type Attempt struct {
	Failures      int
	Locked        bool
	LockRemaining time.Duration
}

// Store holds lockout state. Every attempt is charged with Reserve before the
// PIN is compared, so at most MaxAttempts comparisons run per lock cycle no
// matter how many requests race. The reservation is then settled exactly once:
// Fail for a miss, Release for a match, Refund when the comparison never ran.
type Store interface {
	LockRemaining(ctx context.Context, key Key) (time.Duration, error)
	// Reserve atomically charges one attempt. It refuses (Locked) while the key
	// is locked or when MaxAttempts attempts are already charged.
	Reserve(ctx context.Context, key Key, p Policy) (Attempt, error)
	// Fail settles a missed attempt; the attempt charged at MaxAttempts engages
	// the lock. An engaged lock is never extended.
	Fail(ctx context.Context, key Key, n int, p Policy) (Attempt, error)
	// Release settles a match: the count restarts, an engaged lock stays.
	Release(ctx context.Context, key Key) error
	// Refund returns one charged attempt.
	Refund(ctx context.Context, key Key) error
	// Clear drops the count and any lock.
	Clear(ctx context.Context, key Key) error
}

// Status is the result of a pre-attempt check.
type Status struct {
	Locked    bool
	Remaining time.Duration
}

// RemainingSeconds rounds up so a client never retries a moment too early.
func (s Status) RemainingSeconds() int { return ceilSeconds(s.Remaining) }

// Failure is the result of recording a failed attempt.
type Failure struct {
	Locked            bool
	Failures          int
	AttemptsRemaining int
	LockoutRemaining  time.Duration
}

// Reservation is a charged attempt awaiting its outcome. Locked means the
// attempt was refused and the PIN must not be compared.
type Reservation struct {
	Status
	attempt int
}

func (f Failure) LockoutRemainingSeconds() int { return ceilSeconds(f.LockoutRemaining) }

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Guard applies a Policy over a Store.
type Guard struct {
	store  Store
	policy Policy
}

func NewGuard(store Store, policy Policy) *Guard {
	return &Guard{store: store, policy: policy.normalized()}
}

func (g *Guard) Policy() Policy { return g.policy }

// Check reports the lock state without charging an attempt.
func (g *Guard) Check(ctx context.Context, key Key) (Status, error) {
	remaining, err := g.store.LockRemaining(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("lockout check %s: %w", key, err)
	}
	if remaining > 0 {
		return Status{Locked: true, Remaining: remaining}, nil
	}
	return Status{}, nil
}

// Reserve charges one attempt against key. The PIN may only be compared
// when the reservation is not Locked.
func (g *Guard) Reserve(ctx context.Context, key Key) (Reservation, error) {
	a, err := g.store.Reserve(ctx, key, g.policy)
	if err != nil {
		return Reservation{}, fmt.Errorf("lockout reserve %s: %w", key, err)
	}
	if a.Locked {
		return Reservation{Status: Status{Locked: true, Remaining: a.LockRemaining}}, nil
	}
	return Reservation{attempt: a.Failures}, nil
}

// Fail settles a reservation whose PIN matched nothing.
func (g *Guard) Fail(ctx context.Context, key Key, r Reservation) (Failure, error) {
	if r.Locked {
		return Failure{Locked: true, Failures: g.policy.MaxAttempts, LockoutRemaining: r.Remaining}, nil
	}
	a, err := g.store.Fail(ctx, key, r.attempt, g.policy)
	if err != nil {
		return Failure{}, fmt.Errorf("lockout record %s: %w", key, err)
	}
	return g.failure(a), nil
}

// Succeed settles a matching reservation. A lock engaged meanwhile by other
// attempts on the same key is kept.
func (g *Guard) Succeed(ctx context.Context, key Key) error {
	if err := g.store.Release(ctx, key); err != nil {
		return fmt.Errorf("lockout release %s: %w", key, err)
	}
	return nil
}

// Cancel returns a reservation whose comparison never ran.
func (g *Guard) Cancel(ctx context.Context, key Key, r Reservation) error {
	if r.Locked {
		return nil
	}
	if err := g.store.Refund(ctx, key); err != nil {
		return fmt.Errorf("lockout refund %s: %w", key, err)
	}
	return nil
}

// RecordFailure reserves and fails one attempt in a row.
func (g *Guard) RecordFailure(ctx context.Context, key Key) (Failure, error) {
	r, err := g.Reserve(ctx, key)
	if err != nil {
		return Failure{}, err
	}
	return g.Fail(ctx, key, r)
}

func (g *Guard) failure(a Attempt) Failure {
	if a.Locked {
		return Failure{Locked: true, Failures: a.Failures, LockoutRemaining: a.LockRemaining}
	}
	remaining := g.policy.MaxAttempts - a.Failures
	if remaining < 0 {
		remaining = 0
	}
	return Failure{Failures: a.Failures, AttemptsRemaining: remaining}
}

// Reset clears the count and any lock on key.
func (g *Guard) Reset(ctx context.Context, key Key) error {
	if err := g.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("lockout reset %s: %w", key, err)
	}
	return nil
}
