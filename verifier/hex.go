package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexSignatureHeader carries the hex-scheme signature:
// "sha256=<hex digest>".
const HexSignatureHeader = "X-Webhook-Signature-256"

const hexSignaturePrefix = "sha256="

/* Hex verifies GitHub-style calls: a single hex-encoded HMAC-SHA256
 * over the raw payload bytes, no timestamp in the signed content. The
 * secret is used as-is, without the whsec_ envelope.
 */
type Hex struct{}

// Verify authenticates the call against every configured secret;
// any match succeeds, which covers rotation overlaps.
func (v *Hex) Verify(payload []byte, headers map[string]string, secrets []string, toleranceSeconds int) (Result, error) {
	if len(secrets) == 0 {
		return Result{}, ErrNoSecrets
	}

	raw := headerValue(headers, HexSignatureHeader)
	if raw == "" {
		return Result{}, ErrMissingSignature
	}
	if !strings.HasPrefix(raw, hexSignaturePrefix) {
		return Result{}, fmt.Errorf("%w: expected %s prefix", ErrMalformedHeader, hexSignaturePrefix)
	}

	candidate, err := hex.DecodeString(strings.TrimPrefix(raw, hexSignaturePrefix))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	for _, secret := range secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		if subtle.ConstantTimeCompare(mac.Sum(nil), candidate) == 1 {
			// This scheme carries no id, type, or timestamp; the
			// pipeline extracts them from the parsed payload.
			return Result{}, nil
		}
	}

	return Result{}, ErrBadSignature
}
