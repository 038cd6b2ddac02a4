package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failKeyPrefix = "lockout:fail:"
	lockKeyPrefix = "lockout:lock:"
)

// reserveAttempt charges one attempt atomically.
// KEYS[1] attempt counter, KEYS[2] lock marker.
// ARGV[1] max attempts, ARGV[2] lock ms, ARGV[3] window ms (0 = no expiry).
// Returns {refused, attempt, remaining_ms}.
var reserveAttempt = redis.NewScript(`
local lockTTL = redis.call('PTTL', KEYS[2])
if lockTTL > 0 then
  return {1, tonumber(ARGV[1]), lockTTL}
end
local max = tonumber(ARGV[1])
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= max then
  return {1, n, tonumber(ARGV[2])}
end
n = redis.call('INCR', KEYS[1])
local window = tonumber(ARGV[3])
if n >= max then
  redis.call('PEXPIRE', KEYS[1], math.max(window, tonumber(ARGV[2])))
elseif window > 0 then
  redis.call('PEXPIRE', KEYS[1], window)
else
  redis.call('PERSIST', KEYS[1])
end
return {0, n, 0}
`)

// failAttempt settles a missed attempt.
// KEYS as above. ARGV[1] max attempts, ARGV[2] lock ms, ARGV[3] attempt.
// Returns {locked, attempt, remaining_ms}.
var failAttempt = redis.NewScript(`
local lockTTL = redis.call('PTTL', KEYS[2])
if lockTTL > 0 then
  return {1, tonumber(ARGV[1]), lockTTL}
end
local n = tonumber(ARGV[3])
if n >= tonumber(ARGV[1]) then
  redis.call('SET', KEYS[2], n, 'PX', ARGV[2])
  redis.call('DEL', KEYS[1])
  return {1, n, tonumber(ARGV[2])}
end
return {0, n, 0}
`)

// refundAttempt returns one charged attempt. KEYS[1] attempt counter.
var refundAttempt = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
  redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisStore shares lockout state between processes.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func failKey(k Key) string { return failKeyPrefix + k.String() }
func lockKey(k Key) string { return lockKeyPrefix + k.String() }

func (s *RedisStore) LockRemaining(ctx context.Context, key Key) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, lockKey(key)).Result()
	if err != nil {
		return 0, err
	}
	// -2 missing, -1 no expiry (never written by this store)
	if d <= 0 {
		return 0, nil
	}
	return d, nil
}

func attempt(res []int64, err error) (Attempt, error) {
	if err != nil {
		return Attempt{}, err
	}
	if len(res) != 3 {
		return Attempt{}, fmt.Errorf("lockout script: unexpected reply %v", res)
	}
	return Attempt{
		Locked:        res[0] == 1,
		Failures:      int(res[1]),
		LockRemaining: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key Key, p Policy) (Attempt, error) {
	p = p.normalized()
	return attempt(reserveAttempt.Run(ctx, s.rdb,
		[]string{failKey(key), lockKey(key)},
		p.MaxAttempts, p.LockDuration.Milliseconds(), p.FailureWindow.Milliseconds(),
	).Int64Slice())
}

func (s *RedisStore) Fail(ctx context.Context, key Key, n int, p Policy) (Attempt, error) {
	p = p.normalized()
	return attempt(failAttempt.Run(ctx, s.rdb,
		[]string{failKey(key), lockKey(key)},
		p.MaxAttempts, p.LockDuration.Milliseconds(), n,
	).Int64Slice())
}

// Release drops the counter only; a lock engaged by a concurrent miss stays.
func (s *RedisStore) Release(ctx context.Context, key Key) error {
	return s.rdb.Del(ctx, failKey(key)).Err()
}

func (s *RedisStore) Refund(ctx context.Context, key Key) error {
	return refundAttempt.Run(ctx, s.rdb, []string{failKey(key)}).Err()
}

func (s *RedisStore) Clear(ctx context.Context, key Key) error {
	return s.rdb.Del(ctx, failKey(key), lockKey(key)).Err()
}
