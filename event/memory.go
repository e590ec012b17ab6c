package event

import (
	"context"
	"fmt"
	"sync"
)

/* MemoryRepository keeps events in process memory. Suitable for
 * single-process deployments and tests; fleets share dedup state
 * through the redis repository instead.
 */
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewMemoryRepository creates an empty in-memory event repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]Event)}
}

func memoryKey(providerID, externalID string) string {
	return providerID + ":" + externalID
}

// UpsertIfAbsent stores the event if no record exists for its
// (provider, external_id) pair.
func (r *MemoryRepository) UpsertIfAbsent(ctx context.Context, ev Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(ev.Provider, ev.ExternalID)
	if existing, exists := r.events[key]; exists {
		// The stored record remembers that redelivery happened.
		existing.DedupState = Duplicate
		r.events[key] = existing
		return false, nil
	}
	r.events[key] = ev
	return true, nil
}

// Get retrieves an event by its (provider, external_id) pair.
func (r *MemoryRepository) Get(ctx context.Context, providerID, externalID string) (Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, exists := r.events[memoryKey(providerID, externalID)]
	if !exists {
		return Event{}, fmt.Errorf("event not found: %s/%s", providerID, externalID)
	}
	return ev, nil
}

// UpdateStatus updates the processing status of an event.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, providerID, externalID string, status Status) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(providerID, externalID)
	ev, exists := r.events[key]
	if !exists {
		return fmt.Errorf("event not found: %s/%s", providerID, externalID)
	}
	ev.Status = status
	r.events[key] = ev
	return nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}
