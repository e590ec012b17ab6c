package queue

import (
	"context"
	"fmt"
	"time"
)

/* The dispatch core never sleeps a thread to realize a retry delay; it
 * submits a future task and moves on. TaskQueue is that deferred
 * execution contract.
 */

// Kind says what a task ID refers to.
type Kind string

const (
	// KindExecution tasks carry an execution record ID.
	KindExecution Kind = "execution"

	// KindDelivery tasks carry an outbound delivery ID.
	KindDelivery Kind = "delivery"
)

// Validate checks if the kind is a known value.
func (k Kind) Validate() error {
	if k != KindExecution && k != KindDelivery {
		return fmt.Errorf("invalid task kind: %s", k)
	}
	return nil
}

// Task is one unit of deferred work.
type Task struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// TaskQueue submits work for execution after a delay.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
}

// Consumer pops tasks whose due time has passed.
type Consumer interface {
	// Due atomically removes and returns up to limit tasks due at or
	// before now. Concurrent consumers never receive the same task.
	Due(ctx context.Context, now time.Time, limit int64) ([]Task, error)
}
