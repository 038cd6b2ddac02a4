//go:build integration

package lockout

// Run with: go test -tags integration ./internal/lockout/... -v

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore_LockCycle(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewRedisStore(setupRedis(t)), Policy{MaxAttempts: 3, LockDuration: 2 * time.Second, FailureWindow: time.Minute})

	for i := 1; i <= 2; i++ {
		f, err := g.RecordFailure(ctx, terminal)
		require.NoError(t, err)
		assert.Equal(t, 3-i, f.AttemptsRemaining)
	}
	f, err := g.RecordFailure(ctx, terminal)
	require.NoError(t, err)
	assert.True(t, f.Locked)

	st, err := g.Check(ctx, terminal)
	require.NoError(t, err)
	assert.True(t, st.Locked)
	assert.LessOrEqual(t, st.Remaining, 2*time.Second)

	require.Eventually(t, func() bool {
		st, err := g.Check(ctx, terminal)
		return err == nil && !st.Locked
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisStore_ResetAndConcurrency(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewRedisStore(setupRedis(t)), DefaultPolicy())

	_, err := g.RecordFailure(ctx, terminal)
	require.NoError(t, err)
	require.NoError(t, g.Reset(ctx, terminal))

	var wg sync.WaitGroup
	var mu sync.Mutex
	remaining := map[int]int{}
	locked := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := g.RecordFailure(ctx, terminal)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if f.Locked {
				locked++
			} else {
				remaining[f.AttemptsRemaining]++
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(remaining), 4)
	for v, n := range remaining {
		assert.Equal(t, 1, n, "attempts_remaining %d reported more than once", v)
	}
	total := locked
	for _, n := range remaining {
		total += n
	}
	assert.Equal(t, 10, total)

	st, err := g.Check(ctx, terminal)
	require.NoError(t, err)
	assert.True(t, st.Locked)
}

func TestRedisStore_ReserveCapsComparisons(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewRedisStore(setupRedis(t)), DefaultPolicy())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []Reservation
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := g.Reserve(ctx, terminal)
			if err != nil || r.Locked {
				return
			}
			mu.Lock()
			admitted = append(admitted, r)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, admitted, DefaultMaxAttempts)

	// a late match after the lock engaged leaves the lock in place
	for _, r := range admitted {
		_, err := g.Fail(ctx, terminal, r)
		require.NoError(t, err)
	}
	require.NoError(t, g.Succeed(ctx, terminal))
	st, err := g.Check(ctx, terminal)
	require.NoError(t, err)
	assert.True(t, st.Locked)
}

func TestRedisStore_Refund(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewRedisStore(setupRedis(t)), DefaultPolicy())

	_, err := g.RecordFailure(ctx, terminal)
	require.NoError(t, err)
	r, err := g.Reserve(ctx, terminal)
	require.NoError(t, err)
	require.NoError(t, g.Cancel(ctx, terminal, r))

	f, err := g.RecordFailure(ctx, terminal)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts-2, f.AttemptsRemaining)
}
