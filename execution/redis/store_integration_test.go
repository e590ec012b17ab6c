//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-gateway/execution"
	"github.com/marcelsud/webhook-gateway/execution/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(eventID, handlerKey string) execution.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return execution.Record{
		ID:          execution.RecordID(eventID, handlerKey),
		Provider:    "acme",
		ExternalID:  "msg_1",
		HandlerKey:  handlerKey,
		Status:      execution.Pending,
		MaxAttempts: 3,
		RetryDelays: []int{10, 30},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()

	client, cleanup := SetupRedisClient(t, ctx)
	defer cleanup()

	store, err := redis.NewStore(client)
	require.NoError(t, err)

	t.Run("create and get round trip", func(t *testing.T) {
		rec := testRecord("evt-roundtrip", "billing")
		require.NoError(t, store.Create(ctx, rec))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, execution.Pending, got.Status)
		assert.Equal(t, []int{10, 30}, got.RetryDelays)
		assert.Equal(t, int64(0), got.Version)
	})

	t.Run("error - duplicate create", func(t *testing.T) {
		rec := testRecord("evt-dup", "billing")
		require.NoError(t, store.Create(ctx, rec))

		err := store.Create(ctx, rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("compare and swap increments the version", func(t *testing.T) {
		rec := testRecord("evt-cas", "billing")
		require.NoError(t, store.Create(ctx, rec))

		rec.Status = execution.Processing
		swapped, err := store.CompareAndSwap(ctx, rec)
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, execution.Processing, got.Status)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("compare and swap refuses a stale version", func(t *testing.T) {
		rec := testRecord("evt-stale", "billing")
		require.NoError(t, store.Create(ctx, rec))

		swapped, err := store.CompareAndSwap(ctx, rec)
		require.NoError(t, err)
		require.True(t, swapped)

		// This writer still holds version 0.
		swapped, err = store.CompareAndSwap(ctx, rec)
		require.NoError(t, err)
		assert.False(t, swapped)
	})

	t.Run("error - compare and swap on missing record", func(t *testing.T) {
		rec := testRecord("evt-ghost", "billing")
		_, err := store.CompareAndSwap(ctx, rec)
		require.Error(t, err)
	})

	t.Run("list by event", func(t *testing.T) {
		first := testRecord("evt-list", "billing")
		first.ExternalID = "msg_list"
		second := testRecord("evt-list", "audit")
		second.ExternalID = "msg_list"
		require.NoError(t, store.Create(ctx, first))
		require.NoError(t, store.Create(ctx, second))

		records, err := store.ListByEvent(ctx, "acme", "msg_list")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}
