//go:build integration

package token

// Run with: go test -tags integration ./internal/token/... -v

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisRefreshStore(t *testing.T) {
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

	s := NewRedisRefreshStore(rdb)
	require.NoError(t, s.Save(ctx, "jti-1", "user-1", time.Minute))

	uid, err := s.Consume(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	_, err = s.Consume(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrRefreshNotFound)

	require.NoError(t, s.Save(ctx, "jti-2", "user-1", time.Minute))
	require.NoError(t, s.Revoke(ctx, "jti-2"))
	_, err = s.Consume(ctx, "jti-2")
	assert.ErrorIs(t, err, ErrRefreshNotFound)
}
