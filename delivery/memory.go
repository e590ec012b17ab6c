package delivery

import (
	"context"
	"fmt"
	"sync"
)

/* MemoryStore keeps deliveries in process memory. Suitable for
 * single-process deployments and tests.
 */
type MemoryStore struct {
	mu         sync.RWMutex
	deliveries map[string]Delivery
}

// NewMemoryStore creates an empty in-memory delivery store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deliveries: make(map[string]Delivery)}
}

// Create stores a new delivery, failing if the ID already exists.
func (s *MemoryStore) Create(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deliveries[d.ID]; exists {
		return fmt.Errorf("delivery already exists: %s", d.ID)
	}
	s.deliveries[d.ID] = d
	return nil
}

// Get retrieves a delivery by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.deliveries[id]
	if !exists {
		return Delivery{}, fmt.Errorf("delivery not found: %s", id)
	}
	return d, nil
}

// Save stores the delivery unconditionally.
func (s *MemoryStore) Save(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID] = d
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
