package ratelimit

import "context"

/* The limiter is the first gate on the intake path — it counts before
 * payload-size and signature checks so that verification cost cannot
 * be used to bypass it. Counters live in a shared store; an in-process
 * map would undercount across worker processes.
 */

// Limiter controls request throughput per provider.
type Limiter interface {
	// Allow atomically counts one call attempt against the provider's
	// window and reports whether it fits inside the quota.
	Allow(ctx context.Context, providerID string, limit, periodSeconds int) (bool, error)
}
