package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-gateway/event"
	"github.com/marcelsud/webhook-gateway/execution"
	"github.com/marcelsud/webhook-gateway/handler"
	"github.com/marcelsud/webhook-gateway/provider"
	"github.com/marcelsud/webhook-gateway/queue"
	"github.com/marcelsud/webhook-gateway/ratelimit"
	"github.com/marcelsud/webhook-gateway/verifier"
)

/* Pipeline accepts one raw inbound call and walks it through the
 * validation chain: provider lookup, rate limit, size, signature,
 * parse, dedup. The order is load-bearing — the limiter counts before
 * any expensive work, and nothing touches the payload's structure
 * until the signature over its raw bytes has been verified.
 */

// Outcome reports what happened to an accepted call.
type Outcome struct {
	EventID   string
	Duplicate bool

	// Handlers is the number of execution records created. Zero for
	// duplicates and for events no definition matches.
	Handlers int
}

// payloadEnvelope is the minimal structure extracted from the parsed
// payload when the signature scheme carries no event identity.
type payloadEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Pipeline struct {
	providers  *provider.Loader
	limiter    ratelimit.Limiter
	events     event.Repository
	registry   *handler.Registry
	executions execution.Store
	executor   *execution.Executor
	tasks      queue.TaskQueue
	now        func() time.Time
}

// NewPipeline wires an intake pipeline.
func NewPipeline(
	providers *provider.Loader,
	limiter ratelimit.Limiter,
	events event.Repository,
	registry *handler.Registry,
	executions execution.Store,
	executor *execution.Executor,
	tasks queue.TaskQueue,
) *Pipeline {
	return &Pipeline{
		providers:  providers,
		limiter:    limiter,
		events:     events,
		registry:   registry,
		executions: executions,
		executor:   executor,
		tasks:      tasks,
		now:        time.Now,
	}
}

// Accept processes one inbound call identified by its URL token.
func (p *Pipeline) Accept(ctx context.Context, token string, body []byte, headers map[string]string) (Outcome, error) {
	// 1. Resolve the provider; it must exist and be active.
	prov, err := p.providers.GetByToken(token)
	if err != nil {
		return Outcome{}, ErrUnknownProvider
	}
	if !prov.Active {
		return Outcome{}, ErrInactiveProvider
	}

	// 2. Count the attempt before anything costly, so verification
	// work cannot be used to sidestep the quota.
	allowed, err := p.limiter.Allow(ctx, prov.Name, prov.Quota.Requests, prov.Quota.PeriodSeconds)
	if err != nil {
		return Outcome{}, fmt.Errorf("checking rate limit: %w", err)
	}
	if !allowed {
		return Outcome{}, ErrRateLimited
	}

	// 3. Size gate.
	if len(body) > prov.MaxPayloadBytes {
		return Outcome{}, ErrPayloadTooLarge
	}

	// 4. Signature verification over the raw bytes.
	v, err := verifier.ForScheme(prov.Scheme)
	if err != nil {
		return Outcome{}, fmt.Errorf("selecting verifier: %w", err)
	}
	result, err := v.Verify(body, headers, prov.Secrets, prov.ToleranceSeconds)
	if err != nil {
		if errors.Is(err, verifier.ErrStaleTimestamp) {
			return Outcome{}, ErrStaleTimestamp
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	// 5. First point where payload structure matters.
	var envelope payloadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// 6. Event identity: scheme first, payload fallback, synthesized
	// last resort. A synthesized ID cannot dedup redeliveries, so the
	// event carries the degraded-mode flag.
	externalID := result.EventID
	if externalID == "" {
		externalID = envelope.ID
	}
	eventType := result.EventType
	if eventType == "" {
		eventType = envelope.Type
	}
	synthesized := false
	if externalID == "" {
		externalID = uuid.New().String()
		synthesized = true
	}

	// 7. The atomic upsert decides dedup.
	now := p.now()
	ev := event.Event{
		ID:          uuid.New().String(),
		Provider:    prov.Name,
		ExternalID:  externalID,
		Type:        eventType,
		Payload:     body,
		Headers:     headers,
		DedupState:  event.Unique,
		Status:      event.Received,
		Synthesized: synthesized,
		ReceivedAt:  now,
		UpdatedAt:   now,
	}

	inserted, err := p.events.UpsertIfAbsent(ctx, ev)
	if err != nil {
		return Outcome{}, fmt.Errorf("storing event: %w", err)
	}
	if !inserted {
		// Duplicates succeed from the provider's point of view;
		// a 4xx here would trigger an endless redelivery storm.
		outcome := Outcome{Duplicate: true}
		if existing, err := p.events.Get(ctx, prov.Name, externalID); err == nil {
			outcome.EventID = existing.ID
		}
		return outcome, nil
	}

	// 8. First insert: resolve handlers and fan out.
	handlers, err := p.dispatch(ctx, prov.Name, eventType, ev)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{EventID: ev.ID, Handlers: handlers}, nil
}

/* dispatch creates one execution record per matched definition and
 * routes it: async records go to the task queue, sync records run
 * inline through the identical state machine so their error semantics
 * never diverge from the async path.
 */
func (p *Pipeline) dispatch(ctx context.Context, providerID, eventType string, ev event.Event) (int, error) {
	definitions := p.registry.Resolve(providerID, eventType)

	now := p.now()
	for _, def := range definitions {
		rec := execution.Record{
			ID:          execution.RecordID(ev.ID, def.Key),
			Provider:    ev.Provider,
			ExternalID:  ev.ExternalID,
			HandlerKey:  def.Key,
			Status:      execution.Pending,
			MaxAttempts: def.MaxAttempts,
			RetryDelays: def.RetryDelays,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := p.executions.Create(ctx, rec); err != nil {
			return 0, fmt.Errorf("creating execution record: %w", err)
		}
	}

	// Records exist before any execution starts, so an aggregate
	// status computed mid-dispatch sees every sibling.
	for _, def := range definitions {
		recordID := execution.RecordID(ev.ID, def.Key)
		if def.Async {
			task := queue.Task{Kind: queue.KindExecution, ID: recordID}
			if err := p.tasks.Enqueue(ctx, task, 0); err != nil {
				return 0, fmt.Errorf("queuing execution: %w", err)
			}
			continue
		}

		holder := fmt.Sprintf("intake-%s", uuid.New().String())
		if err := p.executor.Execute(ctx, recordID, holder); err != nil {
			return 0, fmt.Errorf("executing sync handler %s: %w", def.Key, err)
		}
	}

	return len(definitions), nil
}
