package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-gateway/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

/* Distributed fixed-window rate limiter backed by Redis.
 * One counter per (provider, window start); INCR and EXPIRE run inside
 * a single Lua script so concurrent callers never lose updates and the
 * key always carries a TTL.
 */

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.Limiter = (*Limiter)(nil)

type Limiter struct {
	client *goredis.Client
	now    func() time.Time
	script *goredis.Script
}

// NewLimiter creates a new Redis-backed rate limiter.
func NewLimiter(client *goredis.Client) (*Limiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Limiter{
		client: client,
		now:    time.Now,
		script: allowScript,
	}, nil
}

// Allow counts one call attempt in the provider's current window.
func (l *Limiter) Allow(ctx context.Context, providerID string, limit, periodSeconds int) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(providerID))
	if normalized == "" {
		return false, fmt.Errorf("provider ID is required")
	}
	if limit <= 0 || periodSeconds <= 0 {
		return false, fmt.Errorf("limit and period must be positive")
	}

	// Key windows by their start so that every process in the fleet
	// lands on the same counter for the same instant.
	windowStart := l.now().UTC().Unix() / int64(periodSeconds) * int64(periodSeconds)
	key := fmt.Sprintf("ratelimit:%s:%d", normalized, windowStart)

	result, err := l.script.Run(ctx, l.client, []string{key}, limit, periodSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("evaluating rate limit: %w", err)
	}

	return result == 1, nil
}
