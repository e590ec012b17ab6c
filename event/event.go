package event

import (
	"fmt"
	"time"
)

/* Event represents one logically-unique inbound webhook delivery.
 * Uses value semantics as it represents data, not behavior.
 * Payload and headers are immutable once written; archival and
 * deletion are external concerns.
 */
type Event struct {
	ID         string
	Provider   string
	ExternalID string
	Type       string
	Payload    []byte
	Headers    map[string]string
	DedupState DedupState
	Status     Status

	// Synthesized marks an event whose external ID was generated
	// locally because the provider carried none. Such events cannot be
	// deduplicated across redelivery; this is a degraded mode, not a
	// normal unique intake.
	Synthesized bool

	ReceivedAt time.Time
	UpdatedAt  time.Time
}

// DedupState records the outcome of the store's idempotent insert.
type DedupState int

const (
	Unique DedupState = iota + 1
	Duplicate
)

// String returns the string representation of the dedup state.
func (d DedupState) String() string {
	switch d {
	case Unique:
		return "unique"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// NewDedupState creates a DedupState from a string.
func NewDedupState(str string) DedupState {
	switch str {
	case "duplicate":
		return Duplicate
	default:
		return Unique
	}
}

// Status represents the processing state of an event.
type Status int

const (
	Received Status = iota + 1
	Processing
	Processed
	PartiallyProcessed
	Failed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Received:
		return "received"
	case Processing:
		return "processing"
	case Processed:
		return "processed"
	case PartiallyProcessed:
		return "partially_processed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string.
func NewStatus(str string) Status {
	switch str {
	case "received":
		return Received
	case "processing":
		return Processing
	case "processed":
		return Processed
	case "partially_processed":
		return PartiallyProcessed
	case "failed":
		return Failed
	default:
		return Received
	}
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	if s < Received || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state.
func (s Status) IsFinal() bool {
	return s == Processed || s == PartiallyProcessed || s == Failed
}
