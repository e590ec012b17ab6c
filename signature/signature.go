package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

/* Symmetric HMAC-SHA256 signing scheme shared by the inbound verifier
 * and the outbound delivery pipeline. The signed content is always the
 * raw payload bytes as they crossed the wire; re-serialized JSON is not
 * byte-stable and must never be signed or verified.
 */

const (
	// SecretPrefix marks a base64-encoded symmetric signing secret
	SecretPrefix = "whsec_"

	// Version is the version identifier carried in every signature
	Version = "v1"

	// MinSecretBytes is the minimum accepted secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum accepted secret size (512 bits)
	MaxSecretBytes = 64
)

// Header names used on both the inbound and outbound surfaces.
const (
	IDHeader        = "webhook-id"
	TimestampHeader = "webhook-timestamp"
	SignatureHeader = "webhook-signature"
)

// Secret is a parsed signing secret.
type Secret struct {
	raw     []byte
	encoded string
}

// Generate creates a new cryptographically secure signing secret.
func Generate(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:     bytes,
		encoded: SecretPrefix + base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix.
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{raw: raw, encoded: encoded}, nil
}

// String returns the base64-encoded secret with prefix.
func (s Secret) String() string {
	return s.encoded
}

// Bytes returns the raw secret bytes.
func (s Secret) Bytes() []byte {
	return s.raw
}

// Signature is one versioned signature value.
type Signature struct {
	Version string
	Value   string
}

// String returns the signature in the format: v1,<base64_signature>
func (s Signature) String() string {
	return fmt.Sprintf("%s,%s", s.Version, s.Value)
}

// Parse parses a signature string in the format: v1,<base64_signature>
func Parse(sig string) (Signature, error) {
	parts := strings.SplitN(sig, ",", 2)
	if len(parts) != 2 {
		return Signature{}, fmt.Errorf("invalid signature format, expected 'version,signature'")
	}
	return Signature{Version: parts[0], Value: parts[1]}, nil
}

// Sign computes the signature over {msgID}.{unixTimestamp}.{payload}.
func Sign(secret Secret, msgID string, timestamp time.Time, payload []byte) (Signature, error) {
	if strings.Contains(msgID, ".") {
		return Signature{}, fmt.Errorf("message ID must not contain '.'")
	}

	signedContent := fmt.Sprintf("%s.%s.", msgID, strconv.FormatInt(timestamp.Unix(), 10))

	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write([]byte(signedContent))
	mac.Write(payload)

	return Signature{
		Version: Version,
		Value:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Verify checks one signature using constant-time comparison.
func Verify(secret Secret, msgID string, timestamp time.Time, payload []byte, candidate Signature) (bool, error) {
	if candidate.Version != Version {
		return false, fmt.Errorf("unsupported signature version: %s", candidate.Version)
	}

	expected, err := Sign(secret, msgID, timestamp, payload)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}

	candidateRaw, err := base64.StdEncoding.DecodeString(candidate.Value)
	if err != nil {
		return false, fmt.Errorf("decoding candidate signature: %w", err)
	}

	expectedRaw, err := base64.StdEncoding.DecodeString(expected.Value)
	if err != nil {
		return false, fmt.Errorf("decoding expected signature: %w", err)
	}

	return subtle.ConstantTimeCompare(expectedRaw, candidateRaw) == 1, nil
}

// VerifyAny checks a set of signatures against a set of secrets and
// succeeds if any combination matches. This is how secret rotation
// works: senders sign with old and new secrets during the overlap.
func VerifyAny(secrets []Secret, msgID string, timestamp time.Time, payload []byte, signatures []Signature) (bool, error) {
	if len(secrets) == 0 || len(signatures) == 0 {
		return false, fmt.Errorf("must provide at least one secret and one signature")
	}

	for _, sig := range signatures {
		for _, secret := range secrets {
			valid, err := Verify(secret, msgID, timestamp, payload, sig)
			if err != nil {
				// Malformed candidate; keep trying the rest.
				continue
			}
			if valid {
				return true, nil
			}
		}
	}

	return false, nil
}

// ParseHeader parses a space-delimited signature header: "v1,sig1 v1,sig2".
func ParseHeader(header string) ([]Signature, error) {
	if header == "" {
		return nil, fmt.Errorf("signature header is empty")
	}

	var signatures []Signature
	for _, part := range strings.Split(header, " ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		sig, err := Parse(part)
		if err != nil {
			return nil, fmt.Errorf("parsing signature '%s': %w", part, err)
		}
		signatures = append(signatures, sig)
	}

	if len(signatures) == 0 {
		return nil, fmt.Errorf("no valid signatures found in header")
	}
	return signatures, nil
}

// BuildHeader builds the space-delimited signature header value.
func BuildHeader(signatures []Signature) string {
	parts := make([]string, len(signatures))
	for i, sig := range signatures {
		parts[i] = sig.String()
	}
	return strings.Join(parts, " ")
}
