package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/marcelsud/webhook-gateway/event"
)

// patternRegexp validates event type patterns: hierarchical segments of
// [a-zA-Z0-9_], optionally ending in ".*", or the universal "*".
var patternRegexp = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

/* Definition is one routing rule: which handler runs for which
 * (provider, event type), and with what retry budget. Definitions come
 * from configuration sync and are read-only to the dispatch core.
 */
type Definition struct {
	Provider string

	// EventType is an exact type ("order.created"), a prefix pattern
	// ("order.*"), or the universal wildcard ("*").
	EventType string

	// Key identifies the handler function bound in the registry.
	Key string

	// Priority orders execution; numerically lower runs first.
	Priority int

	// Async handlers run on the worker pool; sync handlers run inline
	// on the intake path with identical retry accounting.
	Async bool

	MaxAttempts int

	// RetryDelays is the staged backoff schedule in seconds. When the
	// attempt count outruns the list, the last delay repeats.
	RetryDelays []int

	// Deleted definitions never match. Soft deletion is a tagged state
	// here, not a nullable timestamp to be inferred from.
	Deleted bool
}

// Validate checks if the definition is usable.
func (d *Definition) Validate() error {
	if d.Provider == "" {
		return fmt.Errorf("provider cannot be empty for handler %s", d.Key)
	}
	if d.Key == "" {
		return fmt.Errorf("handler key cannot be empty")
	}
	if err := ValidatePattern(d.EventType); err != nil {
		return fmt.Errorf("invalid event_type for handler %s: %w", d.Key, err)
	}
	if d.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1 for handler %s", d.Key)
	}
	for _, delay := range d.RetryDelays {
		if delay < 0 {
			return fmt.Errorf("retry delay cannot be negative for handler %s", d.Key)
		}
	}
	return nil
}

// Matches reports whether this definition's pattern matches eventType.
// Deleted definitions never match.
func (d *Definition) Matches(eventType string) bool {
	if d.Deleted {
		return false
	}
	if d.EventType == "*" {
		return true
	}
	if d.EventType == eventType {
		return true
	}
	if strings.HasSuffix(d.EventType, ".*") {
		prefix := strings.TrimSuffix(d.EventType, ".*")
		return strings.HasPrefix(eventType, prefix+".")
	}
	return false
}

// ValidatePattern validates an event type pattern.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("event type pattern cannot be empty")
	}
	if pattern == "*" {
		return nil
	}
	trimmed := strings.TrimSuffix(pattern, ".*")
	if !patternRegexp.MatchString(trimmed) {
		return fmt.Errorf("event type pattern must be hierarchical and contain only [a-zA-Z0-9_.]: %s", pattern)
	}
	return nil
}

/* Handler outcomes form an explicit result type. Handlers never signal
 * "please retry" by panicking or by error convention alone; the state
 * machine inspects the result kind to pick the next transition.
 */

// Kind classifies a handler outcome.
type Kind int

const (
	// OK means the handler completed and the record is terminal.
	OK Kind = iota + 1

	// Retryable means the attempt failed but a later attempt may
	// succeed; the retry budget decides what happens next.
	Retryable

	// Permanent means retrying cannot help; the record fails
	// immediately regardless of remaining attempts.
	Permanent
)

// Result is the outcome of one handler invocation.
type Result struct {
	Kind Kind
	Err  error
}

// Ok returns a successful result.
func Ok() Result {
	return Result{Kind: OK}
}

// Retry returns a retryable failure.
func Retry(err error) Result {
	return Result{Kind: Retryable, Err: err}
}

// Fail returns a permanent failure.
func Fail(err error) Result {
	return Result{Kind: Permanent, Err: err}
}

// Func is the application logic invoked for a matched event.
type Func func(ctx context.Context, ev event.Event) Result
