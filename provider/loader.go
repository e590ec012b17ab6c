package provider

import (
	"fmt"
	"os"

	"github.com/marcelsud/webhook-gateway/delivery"
	"github.com/marcelsud/webhook-gateway/handler"
	"gopkg.in/yaml.v3"
)

/* Loader reads providers.yaml: the registered webhook sources, their
 * handler definitions, and the outbound endpoints. The loaded snapshot
 * is immutable; configuration sync replaces it wholesale rather than
 * mutating shared state under running requests.
 */

// defaultToleranceSeconds is the replay-protection window applied when
// a provider entry does not set tolerance_seconds.
const defaultToleranceSeconds = 300

// File represents the structure of providers.yaml.
type File struct {
	Providers []ProviderConfig `yaml:"providers"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// ProviderConfig is one provider entry in the YAML file.
type ProviderConfig struct {
	Name     string   `yaml:"name"`
	Token    string   `yaml:"token"`
	Active   bool     `yaml:"active"`
	Scheme   string   `yaml:"scheme"`
	Secrets  []string `yaml:"secrets"`
	Insecure bool     `yaml:"insecure"`

	// ToleranceSeconds distinguishes "omitted" from an explicit 0.
	// Omitted gets the default window; 0 disables the timestamp check
	// and must be written out in the file.
	ToleranceSeconds *int `yaml:"tolerance_seconds"`

	MaxPayloadBytes int             `yaml:"max_payload_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Handlers        []HandlerConfig `yaml:"handlers"`
}

// RateLimitConfig is a provider's quota in the YAML file.
type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	PeriodSeconds int `yaml:"period_seconds"`
}

// HandlerConfig is one handler definition in the YAML file.
type HandlerConfig struct {
	Key         string `yaml:"key"`
	EventType   string `yaml:"event_type"`
	Priority    int    `yaml:"priority"`
	Async       bool   `yaml:"async"`
	MaxAttempts int    `yaml:"max_attempts"`
	RetryDelays []int  `yaml:"retry_delays"`
	Deleted     bool   `yaml:"deleted"`
}

// EndpointConfig is one outbound endpoint in the YAML file.
type EndpointConfig struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Secret      string `yaml:"secret"`
	MaxAttempts int    `yaml:"max_attempts"`
	RetryDelays []int  `yaml:"retry_delays"`
}

// Loader holds the loaded configuration snapshot.
type Loader struct {
	byToken     map[string]*Provider
	byName      map[string]*Provider
	definitions []handler.Definition
	endpoints   map[string]delivery.Endpoint
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		byToken:   make(map[string]*Provider),
		byName:    make(map[string]*Provider),
		endpoints: make(map[string]delivery.Endpoint),
	}
}

// Load reads and validates the providers file.
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading providers file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing providers YAML: %w", err)
	}

	for _, pc := range file.Providers {
		// Defaults mirror what a provider dashboard would suggest.
		maxPayload := pc.MaxPayloadBytes
		if maxPayload == 0 {
			maxPayload = 1 << 20
		}
		quota := Quota{Requests: pc.RateLimit.Requests, PeriodSeconds: pc.RateLimit.PeriodSeconds}
		if quota.Requests == 0 {
			quota.Requests = 120
		}
		if quota.PeriodSeconds == 0 {
			quota.PeriodSeconds = 60
		}
		scheme := Scheme(pc.Scheme)
		if pc.Scheme == "" {
			scheme = SchemeStandard
		}
		tolerance := defaultToleranceSeconds
		if pc.ToleranceSeconds != nil {
			tolerance = *pc.ToleranceSeconds
		}

		p := &Provider{
			Name:             pc.Name,
			Token:            pc.Token,
			Active:           pc.Active,
			Secrets:          pc.Secrets,
			Scheme:           scheme,
			Insecure:         pc.Insecure,
			ToleranceSeconds: tolerance,
			MaxPayloadBytes:  maxPayload,
			Quota:            quota,
		}

		if err := p.Validate(); err != nil {
			return fmt.Errorf("validating provider: %w", err)
		}
		if _, exists := l.byName[p.Name]; exists {
			return fmt.Errorf("duplicate provider name: %s", p.Name)
		}
		if _, exists := l.byToken[p.Token]; exists {
			return fmt.Errorf("duplicate provider token for %s", p.Name)
		}

		l.byName[p.Name] = p
		l.byToken[p.Token] = p

		for _, hc := range pc.Handlers {
			maxAttempts := hc.MaxAttempts
			if maxAttempts == 0 {
				maxAttempts = 3
			}

			def := handler.Definition{
				Provider:    p.Name,
				EventType:   hc.EventType,
				Key:         hc.Key,
				Priority:    hc.Priority,
				Async:       hc.Async,
				MaxAttempts: maxAttempts,
				RetryDelays: hc.RetryDelays,
				Deleted:     hc.Deleted,
			}
			if err := def.Validate(); err != nil {
				return fmt.Errorf("validating handler for provider %s: %w", p.Name, err)
			}
			l.definitions = append(l.definitions, def)
		}
	}

	for _, ec := range file.Endpoints {
		maxAttempts := ec.MaxAttempts
		if maxAttempts == 0 {
			maxAttempts = 3
		}

		endpoint := delivery.Endpoint{
			Name:        ec.Name,
			URL:         ec.URL,
			Secret:      ec.Secret,
			MaxAttempts: maxAttempts,
			RetryDelays: ec.RetryDelays,
		}
		if err := endpoint.Validate(); err != nil {
			return fmt.Errorf("validating endpoint: %w", err)
		}
		if _, exists := l.endpoints[endpoint.Name]; exists {
			return fmt.Errorf("duplicate endpoint name: %s", endpoint.Name)
		}
		l.endpoints[endpoint.Name] = endpoint
	}

	return nil
}

// GetByToken retrieves a provider by its opaque URL token.
func (l *Loader) GetByToken(token string) (*Provider, error) {
	p, exists := l.byToken[token]
	if !exists {
		return nil, fmt.Errorf("provider not found for token")
	}
	return p, nil
}

// Get retrieves a provider by name.
func (l *Loader) Get(name string) (*Provider, error) {
	p, exists := l.byName[name]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns all loaded providers.
func (l *Loader) List() []*Provider {
	providers := make([]*Provider, 0, len(l.byName))
	for _, p := range l.byName {
		providers = append(providers, p)
	}
	return providers
}

// Definitions returns all loaded handler definitions.
func (l *Loader) Definitions() []handler.Definition {
	defs := make([]handler.Definition, len(l.definitions))
	copy(defs, l.definitions)
	return defs
}

// Endpoint retrieves an outbound endpoint by name.
func (l *Loader) Endpoint(name string) (delivery.Endpoint, error) {
	endpoint, exists := l.endpoints[name]
	if !exists {
		return delivery.Endpoint{}, fmt.Errorf("endpoint not found: %s", name)
	}
	return endpoint, nil
}

// Endpoints returns all loaded outbound endpoints.
func (l *Loader) Endpoints() []delivery.Endpoint {
	endpoints := make([]delivery.Endpoint, 0, len(l.endpoints))
	for _, endpoint := range l.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}
