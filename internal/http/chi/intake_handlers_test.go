package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/marcelsud/webhook-gateway/event"
	"github.com/marcelsud/webhook-gateway/execution"
	"github.com/marcelsud/webhook-gateway/handler"
	"github.com/marcelsud/webhook-gateway/intake"
	"github.com/marcelsud/webhook-gateway/provider"
	"github.com/marcelsud/webhook-gateway/queue"
	"github.com/marcelsud/webhook-gateway/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLimiter answers every Allow call the same way.
type stubLimiter struct{ allow bool }

func (s *stubLimiter) Allow(ctx context.Context, providerID string, limit, periodSeconds int) (bool, error) {
	return s.allow, nil
}

var _ ratelimit.Limiter = (*stubLimiter)(nil)

type nopQueue struct{}

func (nopQueue) Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error {
	return nil
}

// newTestRouter wires the full router over in-memory stores and an
// insecure test provider.
func newTestRouter(t *testing.T, limiter ratelimit.Limiter) *httptest.Server {
	t.Helper()

	content := `
providers:
  - name: "local"
    token: "tok_local"
    active: true
    scheme: "none"
    insecure: true
    max_payload_bytes: 1024
  - name: "paused"
    token: "tok_paused"
    active: false
    scheme: "none"
    insecure: true
`
	tmpFile, err := os.CreateTemp(t.TempDir(), "providers-*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	loader := provider.NewLoader()
	require.NoError(t, loader.Load(tmpFile.Name()))

	registry, err := handler.NewRegistry(loader.Definitions(), nil)
	require.NoError(t, err)

	events := event.NewMemoryRepository()
	store := execution.NewMemoryStore()
	machine := execution.NewStateMachine(store, time.Minute)
	executor := execution.NewExecutor(machine, registry, events, nopQueue{}, 5*time.Second)
	pipeline := intake.NewPipeline(loader, limiter, events, registry, store, executor, nopQueue{})

	server := httptest.NewServer(Handlers(context.Background(), pipeline, loader, nil))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body []byte) (*http.Response, map[string]string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestPostEvent(t *testing.T) {
	payload := []byte(`{"id":"msg_1","type":"order.created"}`)

	t.Run("201 on first intake, 200 on redelivery", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})
		url := server.URL + "/local/tok_local"

		resp, body := postJSON(t, url, payload)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "received", body["status"])
		assert.NotEmpty(t, body["event_id"])
		eventID := body["event_id"]

		resp, body = postJSON(t, url, payload)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "duplicate", body["status"])
		assert.Equal(t, eventID, body["event_id"])
	})

	t.Run("401 for an unknown token", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})

		resp, body := postJSON(t, server.URL+"/local/tok_ghost", payload)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("403 for an inactive provider", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})

		resp, _ := postJSON(t, server.URL+"/paused/tok_paused", payload)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("429 when rate limited", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: false})

		resp, _ := postJSON(t, server.URL+"/local/tok_local", payload)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("413 for an oversize payload", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})

		oversize := bytes.Repeat([]byte("x"), 4096)
		resp, _ := postJSON(t, server.URL+"/local/tok_local", oversize)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("400 for a malformed payload", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})

		resp, _ := postJSON(t, server.URL+"/local/tok_local", []byte(`not-json`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	server := newTestRouter(t, &stubLimiter{allow: true})

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetProviders(t *testing.T) {
	t.Run("lists providers without tokens or secrets", func(t *testing.T) {
		server := newTestRouter(t, &stubLimiter{allow: true})

		resp, err := http.Get(server.URL + "/v1/providers")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var providers []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
		assert.Len(t, providers, 2)

		for _, p := range providers {
			_, hasToken := p["token"]
			assert.False(t, hasToken)
			_, hasSecrets := p["secrets"]
			assert.False(t, hasSecrets)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{intake.ErrUnknownProvider, http.StatusUnauthorized},
		{intake.ErrUnauthorized, http.StatusUnauthorized},
		{intake.ErrInactiveProvider, http.StatusForbidden},
		{intake.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{intake.ErrRateLimited, http.StatusTooManyRequests},
		{intake.ErrMalformedPayload, http.StatusBadRequest},
		{intake.ErrStaleTimestamp, http.StatusBadRequest},
		{errors.New("anything else"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", intake.ErrRateLimited), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
