package intake

import "errors"

/* Each intake step has one and only one failure reason; the transport
 * layer maps these to precise response codes instead of a generic 500.
 */
var (
	// ErrUnknownProvider means no provider matches the URL token.
	ErrUnknownProvider = errors.New("unknown provider token")

	// ErrInactiveProvider means the provider exists but is deactivated.
	ErrInactiveProvider = errors.New("provider is inactive")

	// ErrRateLimited means the provider exceeded its quota window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPayloadTooLarge means the body exceeds the provider's maximum.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnauthorized means signature verification failed.
	ErrUnauthorized = errors.New("signature verification failed")

	// ErrStaleTimestamp means the signed timestamp fell outside the
	// provider's tolerance window.
	ErrStaleTimestamp = errors.New("signed timestamp outside tolerance")

	// ErrMalformedPayload means the payload is not a valid JSON object.
	ErrMalformedPayload = errors.New("malformed payload")
)
