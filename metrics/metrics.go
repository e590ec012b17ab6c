package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the gateway.
type Metrics struct {
	// EventCounts maps event status name to count of inbound events
	EventCounts map[string]int64 `json:"event_counts"`

	// ExecutionCounts maps execution status name to count of records
	ExecutionCounts map[string]int64 `json:"execution_counts"`

	// DeliveryCounts maps delivery status name to count of outbound deliveries
	DeliveryCounts map[string]int64 `json:"delivery_counts"`

	// QueueDepth is the number of scheduled tasks in the delayed queue
	QueueDepth int64 `json:"queue_depth"`

	// OpenBreakers is the number of endpoints with an open circuit
	OpenBreakers int64 `json:"open_breakers"`

	// ActiveWorkers is the number of worker processes with a live heartbeat
	ActiveWorkers int64 `json:"active_workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from the gateway.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetEventCounts returns the count of inbound events by status
	GetEventCounts(ctx context.Context) (map[string]int64, error)

	// GetExecutionCounts returns the count of execution records by status
	GetExecutionCounts(ctx context.Context) (map[string]int64, error)

	// GetDeliveryCounts returns the count of outbound deliveries by status
	GetDeliveryCounts(ctx context.Context) (map[string]int64, error)

	// GetQueueDepth returns the number of scheduled tasks
	GetQueueDepth(ctx context.Context) (int64, error)

	// GetOpenBreakers returns the number of open circuit breakers
	GetOpenBreakers(ctx context.Context) (int64, error)

	// GetActiveWorkers returns the number of workers with a live heartbeat
	GetActiveWorkers(ctx context.Context) (int64, error)
}
