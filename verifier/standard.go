package verifier

import (
	"fmt"
	"time"

	"github.com/marcelsud/webhook-gateway/signature"
)

/* Standard verifies Standard-Webhooks-style calls: the signed content
 * is {webhook-id}.{webhook-timestamp}.{payload}, and the signature
 * header carries one or more space-delimited v1 signatures so that
 * secret rotation never drops valid calls.
 */
type Standard struct {
	// Now is injected for tests; defaults to time.Now via ForScheme.
	Now func() time.Time
}

// Verify authenticates the call and extracts the provider-assigned
// message ID and signed timestamp.
func (v *Standard) Verify(payload []byte, headers map[string]string, secrets []string, toleranceSeconds int) (Result, error) {
	if len(secrets) == 0 {
		return Result{}, ErrNoSecrets
	}

	msgID := headerValue(headers, signature.IDHeader)
	rawTimestamp := headerValue(headers, signature.TimestampHeader)
	rawSignature := headerValue(headers, signature.SignatureHeader)

	if rawSignature == "" {
		return Result{}, ErrMissingSignature
	}
	if msgID == "" || rawTimestamp == "" {
		return Result{}, fmt.Errorf("%w: missing id or timestamp header", ErrMalformedHeader)
	}

	ts, err := parseTimestamp(rawTimestamp)
	if err != nil {
		return Result{}, err
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	// The timestamp is part of the signed content, so a stale call
	// cannot be replayed with a fresh header.
	if !withinTolerance(now(), ts, toleranceSeconds) {
		return Result{}, ErrStaleTimestamp
	}

	signatures, err := signature.ParseHeader(rawSignature)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	parsedSecrets := make([]signature.Secret, 0, len(secrets))
	for _, raw := range secrets {
		secret, err := signature.ParseSecret(raw)
		if err != nil {
			return Result{}, fmt.Errorf("parsing configured secret: %w", err)
		}
		parsedSecrets = append(parsedSecrets, secret)
	}

	valid, err := signature.VerifyAny(parsedSecrets, msgID, time.Unix(ts, 0), payload, signatures)
	if err != nil {
		return Result{}, fmt.Errorf("verifying signatures: %w", err)
	}
	if !valid {
		return Result{}, ErrBadSignature
	}

	return Result{
		EventID:   msgID,
		Timestamp: &ts,
	}, nil
}
