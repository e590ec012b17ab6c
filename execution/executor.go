package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-gateway/event"
	"github.com/marcelsud/webhook-gateway/handler"
	"github.com/marcelsud/webhook-gateway/queue"
)

/* Executor runs one execution record end to end: acquire the lease,
 * invoke the handler under a wall-clock budget, account the outcome,
 * and schedule the retry when one is owed. Sync and async handlers go
 * through exactly the same path; the only difference is who calls
 * Execute and when.
 */
type Executor struct {
	machine  *StateMachine
	registry *handler.Registry
	events   event.Repository
	tasks    queue.TaskQueue
	timeout  time.Duration
	now      func() time.Time
}

// NewExecutor wires an executor. timeout is the per-invocation
// wall-clock budget; exceeding it counts as a retryable failure.
func NewExecutor(machine *StateMachine, registry *handler.Registry, events event.Repository, tasks queue.TaskQueue, timeout time.Duration) *Executor {
	return &Executor{
		machine:  machine,
		registry: registry,
		events:   events,
		tasks:    tasks,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Execute processes one record. A record locked by a live holder or
// already terminal is not an error; some other worker owns it.
func (e *Executor) Execute(ctx context.Context, recordID, holder string) error {
	rec, err := e.machine.Begin(ctx, recordID, holder)
	if errors.Is(err, ErrLocked) || errors.Is(err, ErrTerminal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("beginning execution %s: %w", recordID, err)
	}

	ev, err := e.events.Get(ctx, rec.Provider, rec.ExternalID)
	if err != nil {
		// The event should exist; treat a missing one as a failed
		// attempt so the record does not stay processing forever.
		if _, failErr := e.machine.Fail(ctx, rec, err, false); failErr != nil {
			return fmt.Errorf("failing execution %s: %w", recordID, failErr)
		}
		return fmt.Errorf("loading event for execution %s: %w", recordID, err)
	}

	fn, err := e.registry.Func(rec.HandlerKey)
	if err != nil {
		// No function bound means configuration drift; retrying with
		// the same registry snapshot cannot help.
		if _, failErr := e.machine.Fail(ctx, rec, err, true); failErr != nil {
			return fmt.Errorf("failing execution %s: %w", recordID, failErr)
		}
		return e.refreshEventStatus(ctx, rec.Provider, rec.ExternalID)
	}

	result := e.run(ctx, fn, ev)

	switch result.Kind {
	case handler.OK:
		if _, err := e.machine.Complete(ctx, rec); err != nil {
			return fmt.Errorf("completing execution %s: %w", recordID, err)
		}

	case handler.Permanent:
		if _, err := e.machine.Fail(ctx, rec, result.Err, true); err != nil {
			return fmt.Errorf("failing execution %s: %w", recordID, err)
		}

	default:
		failed, err := e.machine.Fail(ctx, rec, result.Err, false)
		if err != nil {
			return fmt.Errorf("failing execution %s: %w", recordID, err)
		}
		if failed.Status == Retrying && failed.NextRetryAt != nil {
			delay := failed.NextRetryAt.Sub(e.now())
			task := queue.Task{Kind: queue.KindExecution, ID: recordID}
			if err := e.tasks.Enqueue(ctx, task, delay); err != nil {
				return fmt.Errorf("scheduling retry for %s: %w", recordID, err)
			}
		}
	}

	return e.refreshEventStatus(ctx, rec.Provider, rec.ExternalID)
}

// run invokes the handler under the wall-clock budget. A handler that
// outruns the budget is a retryable failure, never an execution left
// indefinitely in processing.
func (e *Executor) run(ctx context.Context, fn handler.Func, ev event.Event) handler.Result {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan handler.Result, 1)
	go func() {
		done <- fn(runCtx, ev)
	}()

	select {
	case result := <-done:
		return result
	case <-runCtx.Done():
		return handler.Retry(fmt.Errorf("handler exceeded %s budget: %w", e.timeout, runCtx.Err()))
	}
}

/* refreshEventStatus recomputes the event's aggregate status from its
 * execution records: processing while any record is live, processed
 * when every record succeeded, failed when every record failed, and
 * partially_processed for the mix.
 */
func (e *Executor) refreshEventStatus(ctx context.Context, providerID, externalID string) error {
	records, err := e.machine.store.ListByEvent(ctx, providerID, externalID)
	if err != nil {
		return fmt.Errorf("listing executions: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var successes, failures int
	for _, rec := range records {
		switch rec.Status {
		case Success:
			successes++
		case Failed:
			failures++
		default:
			return e.events.UpdateStatus(ctx, providerID, externalID, event.Processing)
		}
	}

	status := event.PartiallyProcessed
	switch {
	case failures == 0:
		status = event.Processed
	case successes == 0:
		status = event.Failed
	}

	if err := e.events.UpdateStatus(ctx, providerID, externalID, status); err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	return nil
}
