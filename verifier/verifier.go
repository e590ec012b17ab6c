package verifier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marcelsud/webhook-gateway/provider"
)

/* A Verifier is the per-provider strategy for authenticating one raw
 * inbound call. It only ever sees the payload bytes as they arrived;
 * parsing happens after verification, never before.
 */

// Sentinel errors distinguish the single failure reason of each check.
var (
	ErrMissingSignature = errors.New("signature header is missing")
	ErrBadSignature     = errors.New("signature does not match")
	ErrMalformedHeader  = errors.New("signature header is malformed")
	ErrStaleTimestamp   = errors.New("signed timestamp outside tolerance")
	ErrNoSecrets        = errors.New("no signing secrets configured")
)

// Result carries what the signature scheme could extract from the call.
// EventID/EventType may be empty; the intake pipeline falls back to the
// parsed payload and, failing that, to a synthesized ID.
type Result struct {
	EventID   string
	EventType string
	Timestamp *int64
}

type Verifier interface {
	Verify(payload []byte, headers map[string]string, secrets []string, toleranceSeconds int) (Result, error)
}

// ForScheme returns the verifier strategy for a provider scheme.
func ForScheme(scheme provider.Scheme) (Verifier, error) {
	switch scheme {
	case provider.SchemeStandard:
		return &Standard{Now: time.Now}, nil
	case provider.SchemeHex:
		return &Hex{}, nil
	case provider.SchemeNone:
		return &None{}, nil
	}
	return nil, fmt.Errorf("no verifier for scheme %s", scheme)
}

// headerValue looks up a header case-insensitively. Transports differ
// in how they canonicalize header names.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// withinTolerance checks |now - ts| <= tolerance. Tolerance zero
// disables the check.
func withinTolerance(now time.Time, ts int64, toleranceSeconds int) bool {
	if toleranceSeconds == 0 {
		return true
	}
	diff := now.Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(toleranceSeconds)
}

// parseTimestamp parses a unix-seconds header value.
func parseTimestamp(raw string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrMalformedHeader, raw)
	}
	return ts, nil
}
