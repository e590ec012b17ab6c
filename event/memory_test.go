package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()

	newEvent := func(id string) Event {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		return Event{
			ID:         id,
			Provider:   "acme",
			ExternalID: "msg_1",
			Type:       "order.created",
			Payload:    []byte(`{"id":"msg_1"}`),
			DedupState: Unique,
			Status:     Received,
			ReceivedAt: now,
			UpdatedAt:  now,
		}
	}

	t.Run("upsert and get", func(t *testing.T) {
		repo := NewMemoryRepository()

		inserted, err := repo.UpsertIfAbsent(ctx, newEvent("evt-1"))
		require.NoError(t, err)
		assert.True(t, inserted)

		ev, err := repo.Get(ctx, "acme", "msg_1")
		require.NoError(t, err)
		assert.Equal(t, "evt-1", ev.ID)
	})

	t.Run("second upsert reports a duplicate", func(t *testing.T) {
		repo := NewMemoryRepository()

		inserted, err := repo.UpsertIfAbsent(ctx, newEvent("evt-1"))
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = repo.UpsertIfAbsent(ctx, newEvent("evt-2"))
		require.NoError(t, err)
		assert.False(t, inserted)

		// The first writer's event survives, flagged as redelivered.
		ev, err := repo.Get(ctx, "acme", "msg_1")
		require.NoError(t, err)
		assert.Equal(t, "evt-1", ev.ID)
		assert.Equal(t, Duplicate, ev.DedupState)
	})

	t.Run("exactly one of N concurrent intakes wins", func(t *testing.T) {
		repo := NewMemoryRepository()

		var wg sync.WaitGroup
		var wins atomic.Int64
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inserted, err := repo.UpsertIfAbsent(ctx, newEvent("evt-racer"))
				assert.NoError(t, err)
				if inserted {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), wins.Load())
	})

	t.Run("update status", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.UpsertIfAbsent(ctx, newEvent("evt-1"))
		require.NoError(t, err)

		require.NoError(t, repo.UpdateStatus(ctx, "acme", "msg_1", Processed))

		ev, err := repo.Get(ctx, "acme", "msg_1")
		require.NoError(t, err)
		assert.Equal(t, Processed, ev.Status)
	})

	t.Run("error - update status of missing event", func(t *testing.T) {
		repo := NewMemoryRepository()
		require.Error(t, repo.UpdateStatus(ctx, "acme", "ghost", Processed))
	})

	t.Run("error - invalid status", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.UpsertIfAbsent(ctx, newEvent("evt-1"))
		require.NoError(t, err)

		require.Error(t, repo.UpdateStatus(ctx, "acme", "msg_1", Status(99)))
	})

	t.Run("error - get missing event", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.Get(ctx, "acme", "ghost")
		require.Error(t, err)
	})
}
