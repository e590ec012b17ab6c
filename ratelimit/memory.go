package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

/* MemoryLimiter is a fixed-window limiter in process memory. Suitable
 * for single-process deployments and tests; fleets share counters
 * through the redis limiter instead.
 */
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	start int64
	count int
}

// NewMemoryLimiter creates an empty in-memory rate limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

// Allow counts one call attempt in the provider's current window.
func (l *MemoryLimiter) Allow(ctx context.Context, providerID string, limit, periodSeconds int) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(providerID))
	if normalized == "" {
		return false, fmt.Errorf("provider ID is required")
	}
	if limit <= 0 || periodSeconds <= 0 {
		return false, fmt.Errorf("limit and period must be positive")
	}

	windowStart := l.now().UTC().Unix() / int64(periodSeconds) * int64(periodSeconds)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[normalized]
	if w.start != windowStart {
		w = window{start: windowStart}
	}
	w.count++
	l.windows[normalized] = w

	return w.count <= limit, nil
}
