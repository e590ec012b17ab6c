package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-gateway/breaker"
	"github.com/marcelsud/webhook-gateway/execution"
	"github.com/marcelsud/webhook-gateway/queue"
	"github.com/marcelsud/webhook-gateway/signature"
)

// maxResponseBodyBytes bounds how much of an endpoint's response is
// kept on the delivery record.
const maxResponseBodyBytes = 4096

// Endpoint is a configured outbound destination.
type Endpoint struct {
	Name        string
	URL         string
	Secret      string
	MaxAttempts int
	RetryDelays []int
}

// Validate checks if the endpoint configuration is usable.
func (e *Endpoint) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("endpoint name cannot be empty")
	}
	if e.URL == "" {
		return fmt.Errorf("url cannot be empty for endpoint %s", e.Name)
	}
	if e.Secret != "" {
		if _, err := signature.ParseSecret(e.Secret); err != nil {
			return fmt.Errorf("invalid secret for endpoint %s: %w", e.Name, err)
		}
	}
	if e.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1 for endpoint %s", e.Name)
	}
	return nil
}

/* Pipeline sends outbound webhooks. Every attempt consults the circuit
 * breaker first; an open breaker short-circuits without any network
 * call, and the retry lands at the breaker's estimated reopen time.
 */
type Pipeline struct {
	store   Store
	breaker *breaker.Breaker
	tasks   queue.TaskQueue
	client  *http.Client
	now     func() time.Time
}

// NewPipeline wires a delivery pipeline.
func NewPipeline(store Store, brk *breaker.Breaker, tasks queue.TaskQueue, client *http.Client) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Pipeline{
		store:   store,
		breaker: brk,
		tasks:   tasks,
		client:  client,
		now:     time.Now,
	}
}

// Request creates a delivery for the endpoint and queues it for an
// immediate attempt.
func (p *Pipeline) Request(ctx context.Context, endpoint Endpoint, payload []byte, headers map[string]string) (Delivery, error) {
	if err := endpoint.Validate(); err != nil {
		return Delivery{}, fmt.Errorf("validating endpoint: %w", err)
	}

	now := p.now()
	d := Delivery{
		ID:          uuid.New().String(),
		Endpoint:    endpoint.URL,
		Payload:     payload,
		Headers:     headers,
		Secret:      endpoint.Secret,
		Status:      Pending,
		MaxAttempts: endpoint.MaxAttempts,
		RetryDelays: endpoint.RetryDelays,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.store.Create(ctx, d); err != nil {
		return Delivery{}, fmt.Errorf("storing delivery: %w", err)
	}

	task := queue.Task{Kind: queue.KindDelivery, ID: d.ID}
	if err := p.tasks.Enqueue(ctx, task, 0); err != nil {
		return Delivery{}, fmt.Errorf("queuing delivery: %w", err)
	}

	return d, nil
}

// Deliver performs one attempt for the stored delivery.
func (p *Pipeline) Deliver(ctx context.Context, id string) error {
	d, err := p.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading delivery: %w", err)
	}
	if d.Status.IsFinal() {
		return nil
	}

	allowed, retryAt, err := p.breaker.Allow(ctx, d.Endpoint)
	if err != nil {
		return fmt.Errorf("consulting breaker: %w", err)
	}
	if !allowed {
		/* No network call is made while the breaker is open. The
		 * attempt budget is untouched; the retry waits for the
		 * breaker's reopen estimate instead of the backoff schedule.
		 */
		now := p.now()
		d.LastError = "circuit open"
		d.NextRetryAt = &retryAt
		d.UpdatedAt = now
		if err := p.store.Save(ctx, d); err != nil {
			return fmt.Errorf("saving delivery: %w", err)
		}

		task := queue.Task{Kind: queue.KindDelivery, ID: d.ID}
		if err := p.tasks.Enqueue(ctx, task, retryAt.Sub(now)); err != nil {
			return fmt.Errorf("rescheduling delivery: %w", err)
		}
		return nil
	}

	d.Status = Processing
	d.UpdatedAt = p.now()
	if err := p.store.Save(ctx, d); err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}

	code, body, latency, sendErr := p.send(ctx, d)

	d.ResponseCode = code
	d.ResponseBody = body
	d.LatencyMS = latency.Milliseconds()

	if sendErr == nil && code >= 200 && code < 300 {
		if err := p.breaker.ReportSuccess(ctx, d.Endpoint); err != nil {
			return fmt.Errorf("reporting success: %w", err)
		}
		d.Status = Delivered
		d.LastError = ""
		d.NextRetryAt = nil
		d.UpdatedAt = p.now()
		if err := p.store.Save(ctx, d); err != nil {
			return fmt.Errorf("saving delivery: %w", err)
		}
		return nil
	}

	// Non-2xx and transport failures are treated uniformly; 4xx is not
	// special-cased.
	if err := p.breaker.ReportFailure(ctx, d.Endpoint); err != nil {
		return fmt.Errorf("reporting failure: %w", err)
	}

	if sendErr != nil {
		d.LastError = sendErr.Error()
	} else {
		d.LastError = fmt.Sprintf("unexpected status %d", code)
	}

	now := p.now()
	d.AttemptCount++
	d.UpdatedAt = now

	if d.AttemptCount >= d.MaxAttempts {
		d.Status = Failed
		d.NextRetryAt = nil
		if err := p.store.Save(ctx, d); err != nil {
			return fmt.Errorf("saving delivery: %w", err)
		}
		return nil
	}

	delay := execution.RetryDelay(d.AttemptCount, d.RetryDelays)
	nextRetry := now.Add(delay)
	d.Status = Pending
	d.NextRetryAt = &nextRetry
	if err := p.store.Save(ctx, d); err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}

	task := queue.Task{Kind: queue.KindDelivery, ID: d.ID}
	if err := p.tasks.Enqueue(ctx, task, delay); err != nil {
		return fmt.Errorf("scheduling retry: %w", err)
	}

	return nil
}

// send builds the signed request and performs the HTTP call.
func (p *Pipeline) send(ctx context.Context, d Delivery) (code int, body string, latency time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, "", 0, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range d.Headers {
		req.Header.Set(key, value)
	}

	now := p.now()
	req.Header.Set(signature.IDHeader, d.ID)
	req.Header.Set(signature.TimestampHeader, strconv.FormatInt(now.Unix(), 10))

	if d.Secret != "" {
		secret, err := signature.ParseSecret(d.Secret)
		if err != nil {
			return 0, "", 0, fmt.Errorf("parsing endpoint secret: %w", err)
		}
		// Sign the exact payload bytes that go on the wire.
		sig, err := signature.Sign(secret, d.ID, now, d.Payload)
		if err != nil {
			return 0, "", 0, fmt.Errorf("signing payload: %w", err)
		}
		req.Header.Set(signature.SignatureHeader, signature.BuildHeader([]signature.Signature{sig}))
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency = time.Since(start)
	if err != nil {
		return 0, "", latency, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return resp.StatusCode, "", latency, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, string(bodyBytes), latency, nil
}
