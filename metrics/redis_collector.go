package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCollector implements the Collector interface over the shared
// Redis keyspace the stores write to.
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector creates a new Redis metrics collector.
func NewRedisCollector(client *redis.Client) *RedisCollector {
	return &RedisCollector{client: client}
}

// Collect gathers all metrics from Redis.
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	eventCounts, err := c.GetEventCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting event counts: %w", err)
	}

	executionCounts, err := c.GetExecutionCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting execution counts: %w", err)
	}

	deliveryCounts, err := c.GetDeliveryCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting delivery counts: %w", err)
	}

	queueDepth, err := c.GetQueueDepth(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue depth: %w", err)
	}

	openBreakers, err := c.GetOpenBreakers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting open breakers: %w", err)
	}

	activeWorkers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		EventCounts:     eventCounts,
		ExecutionCounts: executionCounts,
		DeliveryCounts:  deliveryCounts,
		QueueDepth:      queueDepth,
		OpenBreakers:    openBreakers,
		ActiveWorkers:   activeWorkers,
		Timestamp:       time.Now(),
	}, nil
}

// GetEventCounts returns counts of inbound events grouped by status.
func (c *RedisCollector) GetEventCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		"received":            0,
		"processing":          0,
		"processed":           0,
		"partially_processed": 0,
		"failed":              0,
	}

	err := c.scanKeys(ctx, "event:*", func(key string) error {
		status, err := c.client.HGet(ctx, key, "status").Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		counts[status]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning event keys: %w", err)
	}

	return counts, nil
}

// GetExecutionCounts returns counts of execution records by status.
func (c *RedisCollector) GetExecutionCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		"pending":    0,
		"processing": 0,
		"success":    0,
		"failed":     0,
		"retrying":   0,
	}

	err := c.scanKeys(ctx, "execution:*", func(key string) error {
		return c.countJSONStatus(ctx, key, counts)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning execution keys: %w", err)
	}

	return counts, nil
}

// GetDeliveryCounts returns counts of outbound deliveries by status.
func (c *RedisCollector) GetDeliveryCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		"pending":    0,
		"processing": 0,
		"delivered":  0,
		"failed":     0,
	}

	err := c.scanKeys(ctx, "delivery:*", func(key string) error {
		return c.countJSONStatus(ctx, key, counts)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning delivery keys: %w", err)
	}

	return counts, nil
}

// GetQueueDepth returns the number of scheduled tasks.
func (c *RedisCollector) GetQueueDepth(ctx context.Context) (int64, error) {
	depth, err := c.client.ZCard(ctx, "tasks:delayed").Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("reading queue depth: %w", err)
	}
	return depth, nil
}

// GetOpenBreakers returns the number of open circuit breakers.
func (c *RedisCollector) GetOpenBreakers(ctx context.Context) (int64, error) {
	var open int64

	err := c.scanKeys(ctx, "breaker:*", func(key string) error {
		data, err := c.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}

		var snap struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil
		}
		if snap.State == "open" {
			open++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning breaker keys: %w", err)
	}

	return open, nil
}

// GetActiveWorkers returns the number of workers with a live heartbeat.
func (c *RedisCollector) GetActiveWorkers(ctx context.Context) (int64, error) {
	var active int64

	err := c.scanKeys(ctx, "worker:heartbeat:*", func(key string) error {
		active++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning worker keys: %w", err)
	}

	return active, nil
}

// countJSONStatus reads a JSON value's status field into counts.
func (c *RedisCollector) countJSONStatus(ctx context.Context, key string, counts map[string]int64) error {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	var record struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// Not every key matching the pattern is a JSON record
		return nil
	}
	counts[record.Status]++
	return nil
}

// scanKeys iterates all keys matching the pattern.
func (c *RedisCollector) scanKeys(ctx context.Context, pattern string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}

		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}
