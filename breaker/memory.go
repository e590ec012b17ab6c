package breaker

import (
	"context"
	"sync"
)

/* MemoryStore keeps breaker snapshots in process memory. Suitable for
 * single-process deployments and tests; fleets share state through the
 * redis store instead. The compare-and-swap contract matches the redis
 * implementation so the breaker behaves identically over either.
 */
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory breaker store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (s *MemoryStore) Get(ctx context.Context, endpoint string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[endpoint]
	if !ok {
		return Snapshot{State: Closed}, nil
	}
	return snap, nil
}

// CompareAndSwap writes snap only when the stored version still equals
// snap.Version. An endpoint never seen counts as version 0.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, endpoint string, snap Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedVersion int64
	if stored, ok := s.snaps[endpoint]; ok {
		storedVersion = stored.Version
	}
	if storedVersion != snap.Version {
		return false, nil
	}

	snap.Version++
	s.snaps[endpoint] = snap
	return true, nil
}
