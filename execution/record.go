package execution

import (
	"fmt"
	"time"
)

/* Record is the join of one event and one handler definition: the unit
 * the state machine drives from pending to a terminal state. Mutations
 * go through the state machine only, guarded by the record's version.
 */
type Record struct {
	// ID is {eventID}:{handlerKey}; one record per pair.
	ID string

	Provider   string
	ExternalID string
	HandlerKey string

	Status       Status
	AttemptCount int
	MaxAttempts  int
	RetryDelays  []int

	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	LastError     string

	// Version is the optimistic concurrency counter; every saved
	// mutation increments it, and a stale writer loses.
	Version int64

	// LockHolder and LockedAt form the execution lease. A lease older
	// than the staleness window is reclaimable (crash recovery).
	LockHolder string
	LockedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordID builds the record ID for an (event, handler) pair.
func RecordID(eventID, handlerKey string) string {
	return fmt.Sprintf("%s:%s", eventID, handlerKey)
}

// Status represents the execution state of one record.
type Status int

const (
	Pending Status = iota + 1
	Processing
	Success
	Failed
	Retrying
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Retrying:
		return "retrying"
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
	case "success":
		return Success
	case "failed":
		return Failed
	case "retrying":
		return Retrying
	default:
		return Pending
	}
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	if s < Pending || s > Retrying {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state.
func (s Status) IsFinal() bool {
	return s == Success || s == Failed
}

// RetryDelay returns the staged backoff delay for the given attempt
// count (1-based). Past the end of the schedule the last delay repeats;
// an empty schedule falls back to a fixed minute.
func RetryDelay(attempt int, delays []int) time.Duration {
	if len(delays) == 0 {
		return time.Minute
	}
	idx := attempt - 1
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return time.Duration(delays[idx]) * time.Second
}
