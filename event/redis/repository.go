package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-gateway/event"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of event.Repository.
 * One hash per event keyed by (provider, external_id). HSetNX on a
 * sentinel field is the atomic insert that decides dedup: exactly one
 * of N concurrent intakes for the same key observes a successful set.
 */

const keyPrefix = "event" // event:{provider}:{external_id}

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis event repository.
func NewRepository(client *redis.Client) (*Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{client: client}, nil
}

func eventKey(providerID, externalID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, providerID, externalID)
}

// UpsertIfAbsent stores the event if no record exists for its
// (provider, external_id) pair.
func (r *Repository) UpsertIfAbsent(ctx context.Context, ev event.Event) (bool, error) {
	key := eventKey(ev.Provider, ev.ExternalID)

	inserted, err := r.client.HSetNX(ctx, key, "id", ev.ID).Result()
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}
	if !inserted {
		// The stored record remembers that redelivery happened.
		if err := r.client.HSet(ctx, key, "dedup_state", event.Duplicate.String()).Err(); err != nil {
			return false, fmt.Errorf("marking event duplicate: %w", err)
		}
		return false, nil
	}

	headersJSON, err := json.Marshal(ev.Headers)
	if err != nil {
		return false, fmt.Errorf("marshaling headers: %w", err)
	}

	err = r.client.HSet(ctx, key, map[string]interface{}{
		"provider":    ev.Provider,
		"external_id": ev.ExternalID,
		"type":        ev.Type,
		"payload":     ev.Payload,
		"headers":     string(headersJSON),
		"dedup_state": ev.DedupState.String(),
		"status":      ev.Status.String(),
		"synthesized": strconv.FormatBool(ev.Synthesized),
		"received_at": ev.ReceivedAt.Unix(),
		"updated_at":  ev.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return false, fmt.Errorf("storing event fields: %w", err)
	}

	return true, nil
}

// Get retrieves an event by its (provider, external_id) pair.
func (r *Repository) Get(ctx context.Context, providerID, externalID string) (event.Event, error) {
	key := eventKey(providerID, externalID)

	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return event.Event{}, fmt.Errorf("getting event: %w", err)
	}
	if len(data) == 0 {
		return event.Event{}, fmt.Errorf("event not found: %s/%s", providerID, externalID)
	}

	headers := make(map[string]string)
	if headersStr, ok := data["headers"]; ok && headersStr != "" {
		if err := json.Unmarshal([]byte(headersStr), &headers); err != nil {
			return event.Event{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	synthesized, _ := strconv.ParseBool(data["synthesized"])

	ev := event.Event{
		ID:          data["id"],
		Provider:    data["provider"],
		ExternalID:  data["external_id"],
		Type:        data["type"],
		Payload:     []byte(data["payload"]),
		Headers:     headers,
		DedupState:  event.NewDedupState(data["dedup_state"]),
		Status:      event.NewStatus(data["status"]),
		Synthesized: synthesized,
		ReceivedAt:  time.Unix(parseInt64(data["received_at"]), 0),
		UpdatedAt:   time.Unix(parseInt64(data["updated_at"]), 0),
	}

	return ev, nil
}

// UpdateStatus updates the processing status of an event.
func (r *Repository) UpdateStatus(ctx context.Context, providerID, externalID string, status event.Status) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}

	key := eventKey(providerID, externalID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking event: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("event not found: %s/%s", providerID, externalID)
	}

	err = r.client.HSet(ctx, key, map[string]interface{}{
		"status":     status.String(),
		"updated_at": time.Now().Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return nil
}

// Close closes the underlying Redis connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
