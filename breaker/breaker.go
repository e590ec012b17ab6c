package breaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

/* Per-endpoint circuit breaker. One endpoint's failures never throttle
 * another's. The breaker holds no business logic beyond the state
 * transitions; deciding what "failure" means belongs to the caller.
 *
 * The store is shared across processes, so every mutation is a
 * read-modify-swap on a version counter. Losing the swap means another
 * process moved the state first; the operation re-reads and re-applies
 * so no report is ever dropped.
 */

// State is the breaker state for one endpoint.
type State int

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalJSON stores the state by name so persisted snapshots stay
// readable across versions.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a state stored by name.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = NewState(str)
	return nil
}

// NewState creates a State from a string.
func NewState(str string) State {
	switch str {
	case "closed":
		return Closed
	case "open":
		return Open
	case "half_open":
		return HalfOpen
	default:
		return Closed
	}
}

// Snapshot is the persisted breaker state for one endpoint.
type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at"`

	// TrialInFlight guards the half-open state: one attempt is admitted
	// until its outcome is reported. TrialStartedAt bounds how long the
	// guard holds; a trial whose holder never reports back is reclaimed
	// after one cooldown window.
	TrialInFlight  bool      `json:"trial_in_flight"`
	TrialStartedAt time.Time `json:"trial_started_at"`

	// Version is the optimistic concurrency counter; the store bumps it
	// on every successful swap.
	Version int64 `json:"version"`
}

/* Store persists breaker snapshots per endpoint. A zero-value snapshot
 * (closed, no failures, version 0) is returned for endpoints never
 * seen. CompareAndSwap writes snap only when the stored version still
 * equals snap.Version, persisting it with the version incremented;
 * swapped=false means a concurrent writer won.
 */
type Store interface {
	Get(ctx context.Context, endpoint string) (Snapshot, error)
	CompareAndSwap(ctx context.Context, endpoint string, snap Snapshot) (swapped bool, err error)
}

// Settings configures when a breaker trips and for how long.
type Settings struct {
	// Threshold is the consecutive-failure count that opens the breaker.
	Threshold int

	// Cooldown is how long an open breaker refuses attempts before
	// admitting a half-open trial. It also bounds how long a half-open
	// trial may stay unreported before another attempt is admitted.
	Cooldown time.Duration
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1")
	}
	if s.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive")
	}
	return nil
}

// casAttempts bounds the re-read loop under store contention.
const casAttempts = 5

// TransitionFunc observes breaker state changes, for logging.
type TransitionFunc func(endpoint string, from, to State)

type Breaker struct {
	store    Store
	settings Settings
	now      func() time.Time

	// OnTransition, when set, is called after every state change.
	OnTransition TransitionFunc
}

// New creates a breaker over the given store.
func New(store Store, settings Settings) (*Breaker, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("validating breaker settings: %w", err)
	}
	return &Breaker{
		store:    store,
		settings: settings,
		now:      time.Now,
	}, nil
}

/* Allow reports whether a delivery attempt to the endpoint may proceed.
 * When refused, retryAt is the earliest instant an attempt could be
 * admitted again (the end of the cooldown window).
 */
func (b *Breaker) Allow(ctx context.Context, endpoint string) (allowed bool, retryAt time.Time, err error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		snap, err := b.store.Get(ctx, endpoint)
		if err != nil {
			return false, time.Time{}, fmt.Errorf("loading breaker state: %w", err)
		}

		now := b.now()
		switch snap.State {
		case Open:
			reopenAt := snap.OpenedAt.Add(b.settings.Cooldown)
			if now.Before(reopenAt) {
				return false, reopenAt, nil
			}
			// Cooldown elapsed: admit exactly one trial attempt.
			next := Snapshot{
				State:               HalfOpen,
				ConsecutiveFailures: snap.ConsecutiveFailures,
				OpenedAt:            snap.OpenedAt,
				TrialInFlight:       true,
				TrialStartedAt:      now,
				Version:             snap.Version,
			}
			swapped, err := b.transition(ctx, endpoint, snap, next)
			if err != nil {
				return false, time.Time{}, err
			}
			if !swapped {
				// Another process claimed the trial; re-read.
				continue
			}
			return true, time.Time{}, nil

		case HalfOpen:
			if snap.TrialInFlight && now.Sub(snap.TrialStartedAt) < b.settings.Cooldown {
				// A trial is out and its holder is presumed alive;
				// refuse until its outcome lands.
				return false, snap.TrialStartedAt.Add(b.settings.Cooldown), nil
			}
			// No trial is out, or the previous trial's holder went
			// silent for a full cooldown window; reclaim the slot.
			next := snap
			next.TrialInFlight = true
			next.TrialStartedAt = now
			swapped, err := b.transition(ctx, endpoint, snap, next)
			if err != nil {
				return false, time.Time{}, err
			}
			if !swapped {
				continue
			}
			return true, time.Time{}, nil

		default:
			return true, time.Time{}, nil
		}
	}
	return false, time.Time{}, fmt.Errorf("breaker state for %s: too much contention", endpoint)
}

// ReportSuccess records a successful attempt for the endpoint.
func (b *Breaker) ReportSuccess(ctx context.Context, endpoint string) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		snap, err := b.store.Get(ctx, endpoint)
		if err != nil {
			return fmt.Errorf("loading breaker state: %w", err)
		}

		swapped, err := b.transition(ctx, endpoint, snap, Snapshot{
			State:   Closed,
			Version: snap.Version,
		})
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return fmt.Errorf("breaker state for %s: too much contention", endpoint)
}

// ReportFailure records a failed attempt for the endpoint, tripping the
// breaker when the threshold is reached.
func (b *Breaker) ReportFailure(ctx context.Context, endpoint string) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		snap, err := b.store.Get(ctx, endpoint)
		if err != nil {
			return fmt.Errorf("loading breaker state: %w", err)
		}

		next := snap
		next.TrialInFlight = false
		next.TrialStartedAt = time.Time{}

		switch snap.State {
		case HalfOpen:
			// The trial failed: reopen with a fresh cooldown window.
			next.State = Open
			next.ConsecutiveFailures = snap.ConsecutiveFailures + 1
			next.OpenedAt = b.now()
		default:
			next.ConsecutiveFailures = snap.ConsecutiveFailures + 1
			if next.ConsecutiveFailures >= b.settings.Threshold {
				next.State = Open
				next.OpenedAt = b.now()
			}
		}

		swapped, err := b.transition(ctx, endpoint, snap, next)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return fmt.Errorf("breaker state for %s: too much contention", endpoint)
}

// transition swaps in the new snapshot and fires the observer when the
// swap won and the state actually changed.
func (b *Breaker) transition(ctx context.Context, endpoint string, from, to Snapshot) (bool, error) {
	swapped, err := b.store.CompareAndSwap(ctx, endpoint, to)
	if err != nil {
		return false, fmt.Errorf("saving breaker state: %w", err)
	}
	if swapped && b.OnTransition != nil && from.State != to.State {
		b.OnTransition(endpoint, from.State, to.State)
	}
	return swapped, nil
}
