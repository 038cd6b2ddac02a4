package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshNotFound means the refresh token id was never issued, was already
// used, was revoked, or has expired.
var ErrRefreshNotFound = errors.New("refresh token not recognised")

// RefreshStore tracks which refresh token ids are still redeemable. Consume is
// atomic: of two concurrent calls for one id, exactly one succeeds.
type RefreshStore interface {
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Consume(ctx context.Context, tokenID string) (string, error)
	Revoke(ctx context.Context, tokenID string) error
}

// ── Memory ────────────────────────────────────────────────────────────────────

type refreshEntry struct {
	userID  string
	expires time.Time
}

// MemoryRefreshStore is process-local; suitable for single-instance runs and tests.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
	now     func() time.Time
}

func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{entries: make(map[string]refreshEntry), now: time.Now}
}

func (s *MemoryRefreshStore) Save(_ context.Context, tokenID, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// opportunistic cleanup keeps the map bounded without a goroutine
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[tokenID] = refreshEntry{userID: userID, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryRefreshStore) Consume(_ context.Context, tokenID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[tokenID]
	if !ok {
		return "", ErrRefreshNotFound
	}
	delete(s.entries, tokenID)
	if !s.now().Before(e.expires) {
		return "", ErrRefreshNotFound
	}
	return e.userID, nil
}

func (s *MemoryRefreshStore) Revoke(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenID)
	return nil
}

// ── Redis ─────────────────────────────────────────────────────────────────────

const refreshKeyPrefix = "auth:refresh:"

// RedisRefreshStore shares refresh state across processes. Requires Redis >= 6.2 (GETDEL).
type RedisRefreshStore struct {
	rdb *redis.Client
}

func NewRedisRefreshStore(rdb *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{rdb: rdb}
}

func (s *RedisRefreshStore) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, refreshKeyPrefix+tokenID, userID, ttl).Err()
}

func (s *RedisRefreshStore) Consume(ctx context.Context, tokenID string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, refreshKeyPrefix+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRefreshNotFound
	}
	return userID, err
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, tokenID string) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+tokenID).Err()
}
