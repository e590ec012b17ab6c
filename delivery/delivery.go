package delivery

import (
	"context"
	"fmt"
	"time"
)

/* Delivery represents one outbound webhook: a payload owed to an
 * external endpoint, with the same attempt and backoff accounting as
 * inbound handler execution.
 */
type Delivery struct {
	ID       string
	Endpoint string
	Payload  []byte
	Headers  map[string]string

	// Secret signs the outgoing payload; same HMAC family the inbound
	// verifier checks, acting as the producer side of the contract.
	Secret string

	Status       Status
	AttemptCount int
	MaxAttempts  int
	RetryDelays  []int

	ResponseCode int
	ResponseBody string
	LatencyMS    int64

	NextRetryAt *time.Time
	LastError   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status represents the delivery state.
type Status int

const (
	Pending Status = iota + 1
	Processing
	Delivered
	Failed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string.
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "processing":
		return Processing
	case "delivered":
		return Delivered
	case "failed":
		return Failed
	default:
		return Pending
	}
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	if s < Pending || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state.
func (s Status) IsFinal() bool {
	return s == Delivered || s == Failed
}

// Store persists deliveries.
type Store interface {
	Create(ctx context.Context, d Delivery) error
	Get(ctx context.Context, id string) (Delivery, error)
	Save(ctx context.Context, d Delivery) error
	Close(ctx context.Context) error
}
