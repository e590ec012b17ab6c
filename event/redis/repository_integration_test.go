//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/webhook-gateway/event"
	"github.com/marcelsud/webhook-gateway/event/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(id, externalID string) event.Event {
	now := time.Now()
	return event.Event{
		ID:         id,
		Provider:   "acme",
		ExternalID: externalID,
		Type:       "order.created",
		Payload:    []byte(`{"id":"` + externalID + `","type":"order.created"}`),
		Headers:    map[string]string{"Content-Type": "application/json"},
		DedupState: event.Unique,
		Status:     event.Received,
		ReceivedAt: now,
		UpdatedAt:  now,
	}
}

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	client, cleanup := SetupRedisClient(t, ctx)
	defer cleanup()

	repo, err := redis.NewRepository(client)
	require.NoError(t, err)

	t.Run("upsert and get round trip", func(t *testing.T) {
		ev := testEvent("evt-1", "msg_roundtrip")

		inserted, err := repo.UpsertIfAbsent(ctx, ev)
		require.NoError(t, err)
		assert.True(t, inserted)

		got, err := repo.Get(ctx, "acme", "msg_roundtrip")
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, ev.Payload, got.Payload)
		assert.Equal(t, ev.Headers, got.Headers)
		assert.Equal(t, event.Received, got.Status)
	})

	t.Run("second upsert reports a duplicate", func(t *testing.T) {
		first := testEvent("evt-first", "msg_dup")
		second := testEvent("evt-second", "msg_dup")

		inserted, err := repo.UpsertIfAbsent(ctx, first)
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = repo.UpsertIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := repo.Get(ctx, "acme", "msg_dup")
		require.NoError(t, err)
		assert.Equal(t, "evt-first", got.ID)
		assert.Equal(t, event.Duplicate, got.DedupState)
	})

	t.Run("exactly one of N concurrent intakes wins", func(t *testing.T) {
		var wg sync.WaitGroup
		var wins atomic.Int64
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ev := testEvent("evt-racer", "msg_race")
				inserted, err := repo.UpsertIfAbsent(ctx, ev)
				assert.NoError(t, err)
				if inserted {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int64(1), wins.Load())
	})

	t.Run("update status", func(t *testing.T) {
		ev := testEvent("evt-status", "msg_status")
		_, err := repo.UpsertIfAbsent(ctx, ev)
		require.NoError(t, err)

		require.NoError(t, repo.UpdateStatus(ctx, "acme", "msg_status", event.Processed))

		got, err := repo.Get(ctx, "acme", "msg_status")
		require.NoError(t, err)
		assert.Equal(t, event.Processed, got.Status)
	})

	t.Run("error - update status of missing event", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, "acme", "msg_ghost", event.Processed)
		require.Error(t, err)
	})

	t.Run("error - get missing event", func(t *testing.T) {
		_, err := repo.Get(ctx, "acme", "msg_ghost")
		require.Error(t, err)
	})

	t.Run("worker heartbeat round trip", func(t *testing.T) {
		require.NoError(t, repo.SetWorkerHeartbeat(ctx, "worker-a", "idle"))
		require.NoError(t, repo.SetWorkerHeartbeat(ctx, "worker-b", "processing"))
		// Refreshing does not duplicate the worker.
		require.NoError(t, repo.SetWorkerHeartbeat(ctx, "worker-a", "processing"))

		workers, err := repo.GetActiveWorkers(ctx)
		require.NoError(t, err)
		require.Len(t, workers, 2)

		statuses := make(map[string]string)
		for _, w := range workers {
			statuses[w.WorkerID] = w.Status
		}
		assert.Equal(t, "processing", statuses["worker-a"])
		assert.Equal(t, "processing", statuses["worker-b"])
	})
}
