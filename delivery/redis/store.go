package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-gateway/delivery"
	goredis "github.com/redis/go-redis/v9"
)

/* Redis implementation of delivery.Store. One JSON value per delivery;
 * a single worker owns a delivery once its task is popped from the
 * queue, so plain save semantics are sufficient here.
 */

const keyPrefix = "delivery" // delivery:{id}

var _ delivery.Store = (*Store)(nil)

type storedDelivery struct {
	ID           string            `json:"id"`
	Endpoint     string            `json:"endpoint"`
	Payload      []byte            `json:"payload"`
	Headers      map[string]string `json:"headers,omitempty"`
	Secret       string            `json:"secret,omitempty"`
	Status       string            `json:"status"`
	AttemptCount int               `json:"attempt_count"`
	MaxAttempts  int               `json:"max_attempts"`
	RetryDelays  []int             `json:"retry_delays"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
	LatencyMS    int64             `json:"latency_ms,omitempty"`
	NextRetryAt  *time.Time        `json:"next_retry_at,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toStored(d delivery.Delivery) storedDelivery {
	return storedDelivery{
		ID:           d.ID,
		Endpoint:     d.Endpoint,
		Payload:      d.Payload,
		Headers:      d.Headers,
		Secret:       d.Secret,
		Status:       d.Status.String(),
		AttemptCount: d.AttemptCount,
		MaxAttempts:  d.MaxAttempts,
		RetryDelays:  d.RetryDelays,
		ResponseCode: d.ResponseCode,
		ResponseBody: d.ResponseBody,
		LatencyMS:    d.LatencyMS,
		NextRetryAt:  d.NextRetryAt,
		LastError:    d.LastError,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func fromStored(sd storedDelivery) delivery.Delivery {
	return delivery.Delivery{
		ID:           sd.ID,
		Endpoint:     sd.Endpoint,
		Payload:      sd.Payload,
		Headers:      sd.Headers,
		Secret:       sd.Secret,
		Status:       delivery.NewStatus(sd.Status),
		AttemptCount: sd.AttemptCount,
		MaxAttempts:  sd.MaxAttempts,
		RetryDelays:  sd.RetryDelays,
		ResponseCode: sd.ResponseCode,
		ResponseBody: sd.ResponseBody,
		LatencyMS:    sd.LatencyMS,
		NextRetryAt:  sd.NextRetryAt,
		LastError:    sd.LastError,
		CreatedAt:    sd.CreatedAt,
		UpdatedAt:    sd.UpdatedAt,
	}
}

type Store struct {
	client *goredis.Client
}

// NewStore creates a Redis-backed delivery store.
func NewStore(client *goredis.Client) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

func deliveryKey(id string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, id)
}

// Create stores a new delivery, failing if the ID already exists.
func (s *Store) Create(ctx context.Context, d delivery.Delivery) error {
	data, err := json.Marshal(toStored(d))
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}

	created, err := s.client.SetNX(ctx, deliveryKey(d.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating delivery: %w", err)
	}
	if !created {
		return fmt.Errorf("delivery already exists: %s", d.ID)
	}

	return nil
}

// Get retrieves a delivery by ID.
func (s *Store) Get(ctx context.Context, id string) (delivery.Delivery, error) {
	data, err := s.client.Get(ctx, deliveryKey(id)).Result()
	if err == goredis.Nil {
		return delivery.Delivery{}, fmt.Errorf("delivery not found: %s", id)
	}
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}

	var sd storedDelivery
	if err := json.Unmarshal([]byte(data), &sd); err != nil {
		return delivery.Delivery{}, fmt.Errorf("unmarshaling delivery: %w", err)
	}

	return fromStored(sd), nil
}

// Save overwrites a delivery.
func (s *Store) Save(ctx context.Context, d delivery.Delivery) error {
	data, err := json.Marshal(toStored(d))
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}

	if err := s.client.Set(ctx, deliveryKey(d.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}

	return nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}
