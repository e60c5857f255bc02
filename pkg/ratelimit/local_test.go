package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter()
	l.now = func() time.Time { return now }

	limit := PerSecond(1, 2)
	ctx := context.Background()

	for i := range 2 {
		res, err := l.Allow(ctx, "a", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := l.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	// other keys have their own bucket
	res, err = l.Allow(ctx, "b", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	now = now.Add(time.Second)
	res, err = l.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalRateLimiter_DropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter(WithIdleTTL(time.Minute))
	l.now = func() time.Time { return now }
	limit := PerSecond(1, 1)
	ctx := context.Background()

	for i := range 1000 {
		_, err := l.Allow(ctx, fmt.Sprintf("ip-%d", i), limit)
		require.NoError(t, err)
	}
	require.Equal(t, 1000, l.Len())

	now = now.Add(24 * time.Hour)
	_, err := l.Allow(ctx, "fresh", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestLocalRateLimiter_KeepsActiveBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter(WithIdleTTL(time.Minute))
	l.now = func() time.Time { return now }
	limit := Limit{Rate: 1, Period: time.Hour, Burst: 1}
	ctx := context.Background()

	res, err := l.Allow(ctx, "busy", limit)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	now = now.Add(30 * time.Second)
	res, err = l.Allow(ctx, "busy", limit)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// prune runs here; busy was seen 31s ago and stays drained
	now = now.Add(31 * time.Second)
	_, err = l.Allow(ctx, "other", limit)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	res, err = l.Allow(ctx, "busy", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
