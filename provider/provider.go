package provider

import (
	"fmt"

	"github.com/marcelsud/webhook-gateway/signature"
)

/* Provider represents a registered webhook source.
 * Read-only to the dispatch core at request time; configuration sync
 * owns the lifecycle (activation, token rotation).
 */

// Scheme selects the signature verification strategy for a provider.
type Scheme string

const (
	// SchemeStandard verifies Standard-Webhooks-style signed calls
	// (webhook-id / webhook-timestamp / webhook-signature headers).
	SchemeStandard Scheme = "standard"

	// SchemeHex verifies a hex-encoded HMAC over the payload only,
	// carried in a single X-Webhook-Signature-256 header.
	SchemeHex Scheme = "hex"

	// SchemeNone skips verification entirely. Only valid on providers
	// explicitly flagged insecure, for local testing.
	SchemeNone Scheme = "none"
)

// Validate checks if the scheme is a known value.
func (s Scheme) Validate() error {
	switch s {
	case SchemeStandard, SchemeHex, SchemeNone:
		return nil
	}
	return fmt.Errorf("invalid scheme: %s", s)
}

// Quota is a provider's rate-limit allowance.
type Quota struct {
	Requests      int
	PeriodSeconds int
}

type Provider struct {
	Name   string
	Token  string
	Active bool

	// Secrets holds all currently-valid signing secrets, newest first.
	// More than one entry means a rotation is in progress.
	Secrets []string

	Scheme Scheme

	// Insecure marks a test-only provider that is allowed to use
	// SchemeNone. A missing secret is never treated as "no
	// verification needed" without this flag.
	Insecure bool

	// ToleranceSeconds bounds |now - signed timestamp|. Zero disables
	// the timestamp check; that is an escape hatch, not the default.
	ToleranceSeconds int

	MaxPayloadBytes int
	Quota           Quota
}

// Validate checks if the provider configuration is usable.
func (p *Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p.Token == "" {
		return fmt.Errorf("token cannot be empty for provider %s", p.Name)
	}
	if err := p.Scheme.Validate(); err != nil {
		return fmt.Errorf("invalid scheme for provider %s: %w", p.Name, err)
	}
	if p.Scheme == SchemeNone && !p.Insecure {
		return fmt.Errorf("provider %s uses scheme 'none' without the insecure flag", p.Name)
	}
	if p.Scheme != SchemeNone && len(p.Secrets) == 0 {
		return fmt.Errorf("provider %s has no signing secrets", p.Name)
	}
	if p.Scheme == SchemeStandard {
		for _, secret := range p.Secrets {
			if _, err := signature.ParseSecret(secret); err != nil {
				return fmt.Errorf("invalid secret for provider %s: %w", p.Name, err)
			}
		}
	}
	if p.ToleranceSeconds < 0 {
		return fmt.Errorf("tolerance_seconds cannot be negative for provider %s", p.Name)
	}
	if p.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max_payload_bytes must be positive for provider %s", p.Name)
	}
	if p.Quota.Requests <= 0 || p.Quota.PeriodSeconds <= 0 {
		return fmt.Errorf("rate limit quota must be positive for provider %s", p.Name)
	}
	return nil
}
