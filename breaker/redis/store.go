package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelsud/webhook-gateway/breaker"
	goredis "github.com/redis/go-redis/v9"
)

/* Redis implementation of breaker.Store. One JSON value per endpoint
 * so breaker decisions are visible to every worker process. Writes run
 * as a Lua compare-and-swap on the snapshot's version counter: the api
 * and worker processes report into the same endpoint state, and a
 * plain SET would let one report overwrite the other's.
 */

const keyPrefix = "breaker" // breaker:{endpoint}

var casScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
local stored = 0
if current then
  stored = cjson.decode(current)["version"] or 0
end
if tonumber(stored) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`)

var _ breaker.Store = (*Store)(nil)

type Store struct {
	client *goredis.Client
}

// NewStore creates a Redis-backed breaker store.
func NewStore(client *goredis.Client) *Store {
	return &Store{client: client}
}

func breakerKey(endpoint string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, endpoint)
}

func (s *Store) Get(ctx context.Context, endpoint string) (breaker.Snapshot, error) {
	data, err := s.client.Get(ctx, breakerKey(endpoint)).Result()
	if err == goredis.Nil {
		return breaker.Snapshot{State: breaker.Closed}, nil
	}
	if err != nil {
		return breaker.Snapshot{}, fmt.Errorf("getting breaker state: %w", err)
	}

	var snap breaker.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return breaker.Snapshot{}, fmt.Errorf("unmarshaling breaker state: %w", err)
	}
	return snap, nil
}

// CompareAndSwap writes snap only when the stored version still equals
// snap.Version. An endpoint never seen counts as version 0.
func (s *Store) CompareAndSwap(ctx context.Context, endpoint string, snap breaker.Snapshot) (bool, error) {
	expected := snap.Version
	snap.Version++

	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshaling breaker state: %w", err)
	}

	result, err := casScript.Run(ctx, s.client, []string{breakerKey(endpoint)}, expected, data).Int()
	if err != nil {
		return false, fmt.Errorf("swapping breaker state: %w", err)
	}
	return result == 1, nil
}
