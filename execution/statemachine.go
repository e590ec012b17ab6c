package execution

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLocked means another live holder owns the record's lease.
	ErrLocked = errors.New("execution record is locked")

	// ErrTerminal means the record already reached success or failed.
	ErrTerminal = errors.New("execution record is terminal")

	// ErrConflict means a concurrent mutation won the version race.
	ErrConflict = errors.New("execution record version conflict")
)

/* StateMachine drives a record through
 * pending -> processing -> success | failed | retrying, with
 * retrying -> processing looping until the attempt budget runs out.
 * Every transition is a compare-and-swap; double execution is ruled
 * out by the lease, forward progress by the staleness window.
 */
type StateMachine struct {
	store     Store
	staleness time.Duration
	now       func() time.Time
}

// NewStateMachine creates a state machine over the given store.
// staleness is the window after which a held lock is reclaimable.
func NewStateMachine(store Store, staleness time.Duration) *StateMachine {
	return &StateMachine{
		store:     store,
		staleness: staleness,
		now:       time.Now,
	}
}

/* Begin acquires the record's lease and moves it to processing.
 * Refused with ErrLocked while a live holder owns the lease; a lease
 * older than the staleness window belongs to a dead worker and is
 * reclaimed. Terminal records return ErrTerminal.
 */
func (m *StateMachine) Begin(ctx context.Context, id, holder string) (Record, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("loading record: %w", err)
	}

	if rec.Status.IsFinal() {
		return Record{}, ErrTerminal
	}

	now := m.now()
	if rec.Status == Processing {
		if rec.LockedAt != nil && now.Sub(*rec.LockedAt) < m.staleness {
			return Record{}, ErrLocked
		}
		// Stale lease: the previous holder died mid-execution.
	}

	rec.Status = Processing
	rec.LockHolder = holder
	rec.LockedAt = &now
	rec.LastAttemptAt = &now
	rec.NextRetryAt = nil
	rec.UpdatedAt = now

	swapped, err := m.store.CompareAndSwap(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("acquiring record: %w", err)
	}
	if !swapped {
		// A concurrent worker won the acquisition race.
		return Record{}, ErrLocked
	}
	rec.Version++

	return rec, nil
}

// Complete marks the record successful and releases the lease.
func (m *StateMachine) Complete(ctx context.Context, rec Record) (Record, error) {
	now := m.now()

	rec.Status = Success
	rec.LockHolder = ""
	rec.LockedAt = nil
	rec.NextRetryAt = nil
	rec.LastError = ""
	rec.UpdatedAt = now

	swapped, err := m.store.CompareAndSwap(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("completing record: %w", err)
	}
	if !swapped {
		return Record{}, ErrConflict
	}
	rec.Version++

	return rec, nil
}

/* Fail accounts one failed attempt. While attempts remain and the
 * failure is not permanent, the record moves to retrying with
 * NextRetryAt set from the staged backoff schedule; otherwise it is
 * failed terminally. The lease is released either way.
 */
func (m *StateMachine) Fail(ctx context.Context, rec Record, cause error, permanent bool) (Record, error) {
	now := m.now()

	rec.AttemptCount++
	rec.LockHolder = ""
	rec.LockedAt = nil
	rec.UpdatedAt = now
	if cause != nil {
		rec.LastError = cause.Error()
	}

	if permanent || rec.AttemptCount >= rec.MaxAttempts {
		rec.Status = Failed
		rec.NextRetryAt = nil
	} else {
		rec.Status = Retrying
		retryAt := now.Add(RetryDelay(rec.AttemptCount, rec.RetryDelays))
		rec.NextRetryAt = &retryAt
	}

	swapped, err := m.store.CompareAndSwap(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("failing record: %w", err)
	}
	if !swapped {
		return Record{}, ErrConflict
	}
	rec.Version++

	return rec, nil
}
