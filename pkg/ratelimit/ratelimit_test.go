package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter()
	ctx := context.Background()
	limit := Config{QPS: 1, Burst: 2}.Limit()
	assert.Equal(t, time.Second, limit.Period)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "a", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, i)
	}

	res, err := l.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// 不同 key 独立计数
	res, err = l.Allow(ctx, "b", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalRateLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLocalRateLimiter()
	base := time.Now()
	clock := base
	l.now = func() time.Time { return clock }
	ctx := context.Background()
	limit := Config{QPS: 1, Burst: 1}.Limit()

	for _, k := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := l.Allow(ctx, k, limit)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Len())

	// 仍活跃的 key 保留
	clock = base.Add(defaultIdleTTL / 2)
	_, err := l.Allow(ctx, "10.0.0.1", limit)
	require.NoError(t, err)

	clock = base.Add(defaultIdleTTL + time.Second)
	res, err := l.Allow(ctx, "10.0.0.4", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, l.Len(), "idle keys evicted, active and new key kept")
}
