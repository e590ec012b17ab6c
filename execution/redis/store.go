package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-gateway/execution"
	goredis "github.com/redis/go-redis/v9"
)

/* Redis implementation of execution.Store. Records are JSON values
 * under execution:{id}; the compare-and-swap runs as a Lua script that
 * re-reads the stored version before writing, so concurrent workers
 * serialize on the version counter. A per-event set indexes records
 * for aggregate status queries.
 */

const (
	recordPrefix = "execution"  // execution:{record_id}
	indexPrefix  = "executions" // executions:{provider}:{external_id} -> set of record IDs
)

var casScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
  return -1
end
local stored = cjson.decode(current)
if tonumber(stored["version"]) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`)

var _ execution.Store = (*Store)(nil)

// storedRecord is the persisted shape of an execution record.
type storedRecord struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	ExternalID    string     `json:"external_id"`
	HandlerKey    string     `json:"handler_key"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	MaxAttempts   int        `json:"max_attempts"`
	RetryDelays   []int      `json:"retry_delays"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	Version       int64      `json:"version"`
	LockHolder    string     `json:"lock_holder,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toStored(rec execution.Record) storedRecord {
	return storedRecord{
		ID:            rec.ID,
		Provider:      rec.Provider,
		ExternalID:    rec.ExternalID,
		HandlerKey:    rec.HandlerKey,
		Status:        rec.Status.String(),
		AttemptCount:  rec.AttemptCount,
		MaxAttempts:   rec.MaxAttempts,
		RetryDelays:   rec.RetryDelays,
		LastAttemptAt: rec.LastAttemptAt,
		NextRetryAt:   rec.NextRetryAt,
		LastError:     rec.LastError,
		Version:       rec.Version,
		LockHolder:    rec.LockHolder,
		LockedAt:      rec.LockedAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func fromStored(sr storedRecord) execution.Record {
	return execution.Record{
		ID:            sr.ID,
		Provider:      sr.Provider,
		ExternalID:    sr.ExternalID,
		HandlerKey:    sr.HandlerKey,
		Status:        execution.NewStatus(sr.Status),
		AttemptCount:  sr.AttemptCount,
		MaxAttempts:   sr.MaxAttempts,
		RetryDelays:   sr.RetryDelays,
		LastAttemptAt: sr.LastAttemptAt,
		NextRetryAt:   sr.NextRetryAt,
		LastError:     sr.LastError,
		Version:       sr.Version,
		LockHolder:    sr.LockHolder,
		LockedAt:      sr.LockedAt,
		CreatedAt:     sr.CreatedAt,
		UpdatedAt:     sr.UpdatedAt,
	}
}

type Store struct {
	client *goredis.Client
}

// NewStore creates a Redis-backed execution store.
func NewStore(client *goredis.Client) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

func recordKey(id string) string {
	return fmt.Sprintf("%s:%s", recordPrefix, id)
}

func indexKey(providerID, externalID string) string {
	return fmt.Sprintf("%s:%s:%s", indexPrefix, providerID, externalID)
}

// Create stores a new record, failing if the ID already exists.
func (s *Store) Create(ctx context.Context, rec execution.Record) error {
	data, err := json.Marshal(toStored(rec))
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	created, err := s.client.SetNX(ctx, recordKey(rec.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	if !created {
		return fmt.Errorf("record already exists: %s", rec.ID)
	}

	err = s.client.SAdd(ctx, indexKey(rec.Provider, rec.ExternalID), rec.ID).Err()
	if err != nil {
		return fmt.Errorf("indexing record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (execution.Record, error) {
	data, err := s.client.Get(ctx, recordKey(id)).Result()
	if err == goredis.Nil {
		return execution.Record{}, fmt.Errorf("record not found: %s", id)
	}
	if err != nil {
		return execution.Record{}, fmt.Errorf("getting record: %w", err)
	}

	var sr storedRecord
	if err := json.Unmarshal([]byte(data), &sr); err != nil {
		return execution.Record{}, fmt.Errorf("unmarshaling record: %w", err)
	}

	return fromStored(sr), nil
}

// CompareAndSwap saves rec if the stored version still matches.
func (s *Store) CompareAndSwap(ctx context.Context, rec execution.Record) (bool, error) {
	next := rec
	next.Version = rec.Version + 1

	data, err := json.Marshal(toStored(next))
	if err != nil {
		return false, fmt.Errorf("marshaling record: %w", err)
	}

	result, err := casScript.Run(ctx, s.client, []string{recordKey(rec.ID)}, rec.Version, data).Int()
	if err != nil {
		return false, fmt.Errorf("swapping record: %w", err)
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("record not found: %s", rec.ID)
	}
}

// ListByEvent returns all records created for one event.
func (s *Store) ListByEvent(ctx context.Context, providerID, externalID string) ([]execution.Record, error) {
	ids, err := s.client.SMembers(ctx, indexKey(providerID, externalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing record IDs: %w", err)
	}

	records := make([]execution.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			// Index entries can outlive records; skip the gap.
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}
