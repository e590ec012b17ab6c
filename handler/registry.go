package handler

import (
	"fmt"
	"sort"
)

/* Registry is an immutable snapshot of handler definitions plus the
 * startup-time binding of handler keys to functions. Resolution is a
 * pure function of the snapshot; there is no ambient or global state
 * to diverge between workers.
 */
type Registry struct {
	definitions []Definition
	funcs       map[string]Func
}

// NewRegistry builds a registry snapshot. Every non-deleted definition
// must have a bound function; dangling keys are a startup error, never
// a call-time lookup failure.
func NewRegistry(definitions []Definition, funcs map[string]Func) (*Registry, error) {
	for i := range definitions {
		def := &definitions[i]
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating handler definition: %w", err)
		}
		if def.Deleted {
			continue
		}
		if _, ok := funcs[def.Key]; !ok {
			return nil, fmt.Errorf("no function bound for handler key %s", def.Key)
		}
	}

	defs := make([]Definition, len(definitions))
	copy(defs, definitions)

	return &Registry{
		definitions: defs,
		funcs:       funcs,
	}, nil
}

// Resolve returns all definitions matching (providerID, eventType),
// ordered by ascending priority with ties broken by lexical key order.
// The order is fully deterministic across calls and restarts.
func (r *Registry) Resolve(providerID, eventType string) []Definition {
	var matched []Definition
	for _, def := range r.definitions {
		if def.Provider != providerID {
			continue
		}
		if !def.Matches(eventType) {
			continue
		}
		matched = append(matched, def)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].Key < matched[j].Key
	})

	return matched
}

// Func returns the function bound to a handler key.
func (r *Registry) Func(key string) (Func, error) {
	fn, ok := r.funcs[key]
	if !ok {
		return nil, fmt.Errorf("no function bound for handler key %s", key)
	}
	return fn, nil
}

// Definitions returns a copy of the full definition snapshot.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, len(r.definitions))
	copy(defs, r.definitions)
	return defs
}
