package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/webhook-gateway/provider"
)

/* validate-providers - Standalone CLI tool to validate providers.yaml
 * Usage: go run cmd/validate-providers/main.go [providers.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	providersFile := "providers.yaml"
	if len(os.Args) > 1 {
		providersFile = os.Args[1]
	}

	fmt.Printf("Validating providers file: %s\n\n", providersFile)

	loader := provider.NewLoader()
	if err := loader.Load(providersFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	providers := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d provider(s):\n", len(providers))

	for i, p := range providers {
		fmt.Printf("\n%d. Provider: %s\n", i+1, p.Name)
		fmt.Printf("   Active:       %t\n", p.Active)
		fmt.Printf("   Scheme:       %s\n", p.Scheme)
		fmt.Printf("   Tolerance:    %ds\n", p.ToleranceSeconds)
		fmt.Printf("   Max Payload:  %d bytes\n", p.MaxPayloadBytes)
		fmt.Printf("   Rate Limit:   %d req / %ds\n", p.Quota.Requests, p.Quota.PeriodSeconds)
		fmt.Printf("   Secrets:      %d configured\n", len(p.Secrets))
	}

	definitions := loader.Definitions()
	fmt.Printf("\nLoaded %d handler definition(s):\n", len(definitions))
	for i, def := range definitions {
		fmt.Printf("\n%d. Handler: %s\n", i+1, def.Key)
		fmt.Printf("   Provider:     %s\n", def.Provider)
		fmt.Printf("   Event Type:   %s\n", def.EventType)
		fmt.Printf("   Priority:     %d\n", def.Priority)
		fmt.Printf("   Async:        %t\n", def.Async)
		fmt.Printf("   Max Attempts: %d\n", def.MaxAttempts)
		fmt.Printf("   Retry Delays: %v\n", def.RetryDelays)
		if def.Deleted {
			fmt.Printf("   Deleted:      true (never matches)\n")
		}
	}

	endpoints := loader.Endpoints()
	fmt.Printf("\nLoaded %d outbound endpoint(s):\n", len(endpoints))
	for i, endpoint := range endpoints {
		fmt.Printf("\n%d. Endpoint: %s\n", i+1, endpoint.Name)
		fmt.Printf("   URL:          %s\n", endpoint.URL)
		fmt.Printf("   Max Attempts: %d\n", endpoint.MaxAttempts)
		fmt.Printf("   Retry Delays: %v\n", endpoint.RetryDelays)
	}

	fmt.Printf("\n✓ All providers are valid!\n")
	os.Exit(0)
}
