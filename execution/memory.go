package execution

import (
	"context"
	"fmt"
	"sync"
)

/* MemoryStore keeps execution records in process memory, with the same
 * version-counter compare-and-swap contract as the redis store.
 * Suitable for single-process deployments and tests.
 */
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	index   map[string][]string
}

// NewMemoryStore creates an empty in-memory execution store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		index:   make(map[string][]string),
	}
}

func memoryIndexKey(providerID, externalID string) string {
	return providerID + ":" + externalID
}

// Create stores a new record, failing if the ID already exists.
func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record already exists: %s", rec.ID)
	}
	s.records[rec.ID] = rec

	key := memoryIndexKey(rec.Provider, rec.ExternalID)
	s.index[key] = append(s.index[key], rec.ID)
	return nil
}

// Get retrieves a record by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return Record{}, fmt.Errorf("record not found: %s", id)
	}
	return rec, nil
}

// CompareAndSwap saves rec if the stored version still matches.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[rec.ID]
	if !exists {
		return false, fmt.Errorf("record not found: %s", rec.ID)
	}
	if stored.Version != rec.Version {
		return false, nil
	}

	next := rec
	next.Version = rec.Version + 1
	s.records[rec.ID] = next
	return true, nil
}

// ListByEvent returns all records created for one event.
func (s *MemoryStore) ListByEvent(ctx context.Context, providerID, externalID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.index[memoryIndexKey(providerID, externalID)]
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, exists := s.records[id]; exists {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
