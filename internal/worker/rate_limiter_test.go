package worker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, sendsPerSecond int) *RateLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, sendsPerSecond)
}

func TestRateLimiterAllowsUpToCap(t *testing.T) {
	rl := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "ses")
		require.NoError(t, err)
		assert.True(t, ok, "send %d should fit under the cap", i+1)
	}

	ok, err := rl.Allow(ctx, "ses")
	require.NoError(t, err)
	assert.False(t, ok, "cap exceeded, send must be deferred")
}

func TestRateLimiterTracksGatewaysIndependently(t *testing.T) {
	rl := newTestLimiter(t, 1)
	ctx := context.Background()

	ok, err := rl.Allow(ctx, "ses")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, "ses")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "mailgun")
	require.NoError(t, err)
	assert.True(t, ok, "a saturated gateway must not throttle the others")
}

func TestRateLimiterFailsOpenWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rl := NewRateLimiter(client, 1)
	mr.Close()

	ok, err := rl.Allow(context.Background(), "ses")
	assert.True(t, ok, "limiter outages must not stop delivery")
	assert.Error(t, err)
}
