package lockout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type memoryEntry struct {
	failures    int
	windowEnd   time.Time
	lockedUntil time.Time
}

// MemoryStore keeps lockout state in process memory. Each process of a
// horizontally scaled deployment counts independently; use RedisStore there.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]*memoryEntry
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{entries: make(map[Key]*memoryEntry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) LockRemaining(_ context.Context, key Key) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	now := s.now()
	if now.Before(e.lockedUntil) {
		return e.lockedUntil.Sub(now), nil
	}
	return 0, nil
}

// entry returns the live state for key, forgetting a served lock or an
// elapsed failure window. Callers hold s.mu.
func (s *MemoryStore) entry(key Key, now time.Time) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		// lock served; start over
		e.lockedUntil = time.Time{}
		e.failures = 0
	}
	if !e.windowEnd.IsZero() && !now.Before(e.windowEnd) {
		e.failures = 0
		e.windowEnd = time.Time{}
	}
	return e
}

func (s *MemoryStore) Reserve(_ context.Context, key Key, p Policy) (Attempt, error) {
	p = p.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.entry(key, now)
	if now.Before(e.lockedUntil) {
		return Attempt{Failures: p.MaxAttempts, Locked: true, LockRemaining: e.lockedUntil.Sub(now)}, nil
	}
	if e.failures >= p.MaxAttempts {
		// the last attempts are still being compared
		return Attempt{Failures: e.failures, Locked: true, LockRemaining: p.LockDuration}, nil
	}

	e.failures++
	switch {
	case e.failures >= p.MaxAttempts:
		// a full count must not outlive an unsettled reservation forever
		e.windowEnd = now.Add(max(p.FailureWindow, p.LockDuration))
	case p.FailureWindow > 0:
		e.windowEnd = now.Add(p.FailureWindow)
	default:
		e.windowEnd = time.Time{}
	}
	return Attempt{Failures: e.failures}, nil
}

func (s *MemoryStore) Fail(_ context.Context, key Key, n int, p Policy) (Attempt, error) {
	p = p.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.entry(key, now)
	if now.Before(e.lockedUntil) {
		return Attempt{Failures: p.MaxAttempts, Locked: true, LockRemaining: e.lockedUntil.Sub(now)}, nil
	}
	if n >= p.MaxAttempts {
		e.failures = 0
		e.windowEnd = time.Time{}
		e.lockedUntil = now.Add(p.LockDuration)
		return Attempt{Failures: n, Locked: true, LockRemaining: p.LockDuration}, nil
	}
	return Attempt{Failures: n}, nil
}

func (s *MemoryStore) Release(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.now().Before(e.lockedUntil) {
		e.failures = 0
		e.windowEnd = time.Time{}
		return nil
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Refund(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.failures > 0 {
		e.failures--
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len reports tracked keys (used by tests and purge logging).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Purge drops entries that are neither locked nor inside a failure window.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	purged := 0
	for k, e := range s.entries {
		locked := now.Before(e.lockedUntil)
		counting := e.failures > 0 && (e.windowEnd.IsZero() || now.Before(e.windowEnd))
		if !locked && !counting {
			delete(s.entries, k)
			purged++
		}
	}
	return purged
}

// StartPurge periodically removes stale entries until ctx is cancelled.
func (s *MemoryStore) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Purge(); n > 0 {
					log.Debug().
						Int("lockout_entries_purged", n).
						Int("lockout_entries_remaining", s.Len()).
						Msg("lockout store purged")
				}
			}
		}
	}()
}
