package chi

import (
	"encoding/json"
	"net/http"

	"github.com/marcelsud/webhook-gateway/provider"
)

// providerResponse represents a provider in the API. Tokens and
// secrets never leave the process.
type providerResponse struct {
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	Scheme           string `json:"scheme"`
	ToleranceSeconds int    `json:"tolerance_seconds"`
	MaxPayloadBytes  int    `json:"max_payload_bytes"`
	RateRequests     int    `json:"rate_requests"`
	RatePeriodSecs   int    `json:"rate_period_seconds"`
}

// getProviders handles GET /v1/providers
func getProviders(loader *provider.Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providers := loader.List()

		responses := make([]providerResponse, 0, len(providers))
		for _, p := range providers {
			responses = append(responses, providerResponse{
				Name:             p.Name,
				Active:           p.Active,
				Scheme:           string(p.Scheme),
				ToleranceSeconds: p.ToleranceSeconds,
				MaxPayloadBytes:  p.MaxPayloadBytes,
				RateRequests:     p.Quota.Requests,
				RatePeriodSecs:   p.Quota.PeriodSeconds,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
