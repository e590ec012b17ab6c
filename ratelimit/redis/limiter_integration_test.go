//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/marcelsud/webhook-gateway/ratelimit/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Integration(t *testing.T) {
	ctx := context.Background()

	client, cleanup := SetupRedisClient(t, ctx)
	defer cleanup()

	limiter, err := redis.NewLimiter(client)
	require.NoError(t, err)

	t.Run("allows up to the limit then denies", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "acme", 3, 3600)
			require.NoError(t, err)
			assert.True(t, allowed, "call %d should be allowed", i+1)
		}

		allowed, err := limiter.Allow(ctx, "acme", 3, 3600)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("denied calls still consume the window", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := limiter.Allow(ctx, "greedy", 2, 3600)
			require.NoError(t, err)
		}

		allowed, err := limiter.Allow(ctx, "greedy", 2, 3600)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("providers have independent counters", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := limiter.Allow(ctx, "noisy", 3, 3600)
			require.NoError(t, err)
		}

		allowed, err := limiter.Allow(ctx, "quiet", 3, 3600)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("provider names are normalized", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := limiter.Allow(ctx, "Mixed-Case", 3, 3600)
			require.NoError(t, err)
		}

		allowed, err := limiter.Allow(ctx, "  mixed-case  ", 3, 3600)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("error - empty provider", func(t *testing.T) {
		_, err := limiter.Allow(ctx, "", 3, 3600)
		require.Error(t, err)
	})

	t.Run("error - non-positive limit", func(t *testing.T) {
		_, err := limiter.Allow(ctx, "acme", 0, 3600)
		require.Error(t, err)
	})
}
