package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExclusiveAndReleased(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	err := Run(ctx, NewRedisLock(client, "fix", time.Minute), time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:fix"))
		inner := Run(ctx, NewRedisLock(client, "fix", time.Minute), time.Minute, func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockHeld)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:fix"), "lock released after run")
}

func TestRun_PropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	boom := errors.New("boom")
	err := Run(context.Background(), NewRedisLock(client, "fix", time.Minute), time.Minute, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:fix"))
}

func TestRun_CancelsWhenLockLost(t *testing.T) {
	mr, client := setupTestRedis(t)
	ttl := 30 * time.Millisecond

	err := Run(context.Background(), NewRedisLock(client, "fix", ttl), ttl, func(ctx context.Context) error {
		mr.Del("lock:fix")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("work was not cancelled")
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
