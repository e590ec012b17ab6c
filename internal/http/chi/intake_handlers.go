package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-gateway/intake"
)

/* HTTP layer DTOs for the intake API
 * Separate from domain entities to avoid leaking internal structure
 */

// maxBodyBytes caps how much the transport will read before the
// provider-specific size check runs; oversize bodies fail early.
const maxBodyBytes = 10 << 20

// intakeResponse is the body returned for accepted calls.
type intakeResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

// errorResponse is the body returned for rejected calls.
type errorResponse struct {
	Error string `json:"error"`
}

// postEvent handles POST /{provider}/{token}
func postEvent(pipeline *intake.Pipeline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token is required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, intake.ErrPayloadTooLarge.Error())
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		headers := make(map[string]string)
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		outcome, err := pipeline.Accept(r.Context(), token, body, headers)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if outcome.Duplicate {
			// Duplicates must look like success, or the provider keeps
			// redelivering forever.
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(intakeResponse{Status: "duplicate", EventID: outcome.EventID})
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(intakeResponse{Status: "received", EventID: outcome.EventID})
	})
}

// statusFor maps intake failures to their response codes. Every step
// of the pipeline has exactly one failure reason, so the mapping is a
// plain table.
func statusFor(err error) int {
	switch {
	case errors.Is(err, intake.ErrUnknownProvider),
		errors.Is(err, intake.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, intake.ErrInactiveProvider):
		return http.StatusForbidden
	case errors.Is(err, intake.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, intake.ErrMalformedPayload),
		errors.Is(err, intake.ErrStaleTimestamp):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
