package execution

import "context"

/* Store persists execution records with a compare-and-swap primitive.
 * CAS on the version counter is the only mutation path, so a crashed
 * worker's stale write can never silently overwrite a newer state.
 */
type Store interface {
	// Create stores a new record. It fails if the ID already exists;
	// records are created exactly once, when the resolver matches.
	Create(ctx context.Context, rec Record) error

	Get(ctx context.Context, id string) (Record, error)

	/* CompareAndSwap saves rec if the stored version still equals
	 * rec.Version, incrementing the version on success. Returns
	 * swapped=false (no error) on a version conflict.
	 */
	CompareAndSwap(ctx context.Context, rec Record) (swapped bool, err error)

	// ListByEvent returns all records created for one event.
	ListByEvent(ctx context.Context, providerID, externalID string) ([]Record, error)

	Close(ctx context.Context) error
}
