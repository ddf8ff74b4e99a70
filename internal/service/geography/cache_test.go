package geography

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestCachedResolver_HitAfterMiss(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := newMockRepo()
	c := NewCachedResolver(NewResolver(repo), client, time.Minute)
	ctx := context.Background()

	first, err := c.Resolve(ctx, "79800001")
	require.NoError(t, err)
	callsAfterMiss := repo.calls
	assert.True(t, mr.Exists("geo:ward:79800001"))

	second, err := c.Resolve(ctx, "79800001")
	require.NoError(t, err)
	assert.Equal(t, callsAfterMiss, repo.calls, "hit must not touch the repository")
	assert.Equal(t, first.District.Code, second.District.Code)
	assert.True(t, second.ResolvedViaParent)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("geo:ward:79800001"))
}

func TestCachedResolver_TrimsWardCode(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := newMockRepo()
	c := NewCachedResolver(NewResolver(repo), client, time.Minute)
	ctx := context.Background()

	_, err := c.Resolve(ctx, " 79800001 ")
	require.NoError(t, err)
	assert.True(t, mr.Exists("geo:ward:79800001"))
	assert.Len(t, mr.Keys(), 1)

	callsAfterMiss := repo.calls
	_, err = c.Resolve(ctx, "79800001")
	require.NoError(t, err)
	assert.Equal(t, callsAfterMiss, repo.calls, "trimmed and untrimmed codes share one entry")
}

func TestCachedResolver_BlankWardCode(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := newMockRepo()
	c := NewCachedResolver(NewResolver(repo), client, time.Minute)

	_, err := c.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyWardCode)
	assert.Zero(t, repo.calls)
	assert.Empty(t, mr.Keys())
}

func TestCachedResolver_IncompleteNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewCachedResolver(NewResolver(newMockRepo()), client, 0)

	res, err := c.Resolve(context.Background(), "99900001")
	require.NoError(t, err)
	assert.False(t, res.Complete())
	assert.False(t, mr.Exists("geo:ward:99900001"))
}

func TestCachedResolver_RedisDownFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	c := NewCachedResolver(NewResolver(newMockRepo()), client, time.Minute)
	res, err := c.Resolve(context.Background(), "52202001")
	require.NoError(t, err)
	assert.True(t, res.Complete())
}

func TestCachedResolver_Invalidate(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewCachedResolver(NewResolver(newMockRepo()), client, time.Minute)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "52202001")
	require.NoError(t, err)
	require.True(t, mr.Exists("geo:ward:52202001"))

	require.NoError(t, c.Invalidate(ctx, "52202001"))
	assert.False(t, mr.Exists("geo:ward:52202001"))
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	assert.Error(t, RegisterMetrics(reg))
}
