package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-gateway/intake"
	"github.com/marcelsud/webhook-gateway/provider"
)

// Handlers sets up the gateway API routes.
func Handlers(ctx context.Context, pipeline *intake.Pipeline, loader *provider.Loader, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-gateway", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// List registered providers (no secrets or tokens)
	r.Get("/v1/providers", getProviders(loader).ServeHTTP)

	// Inbound webhook intake
	r.Post("/{provider}/{token}", postEvent(pipeline).ServeHTTP)

	return r
}
