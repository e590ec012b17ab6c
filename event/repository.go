package event

import "context"

/* Small, focused interfaces; the dispatch core needs only a record
 * store with one atomic primitive. All dedup decisions route through
 * UpsertIfAbsent — never through in-process caches of seen IDs, which
 * would diverge across worker processes.
 */

// Reader provides read operations for events.
type Reader interface {
	Get(ctx context.Context, providerID, externalID string) (Event, error)
}

// Writer provides write operations for events.
type Writer interface {
	/* UpsertIfAbsent stores the event keyed by (provider, external_id)
	 * if no record exists yet. Returns inserted=false when a record was
	 * already present. This is the single serialization point for
	 * deduplication and must be atomic in the backing store.
	 */
	UpsertIfAbsent(ctx context.Context, ev Event) (inserted bool, err error)
	UpdateStatus(ctx context.Context, providerID, externalID string, status Status) error
}

// Repository combines event read and write operations.
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
