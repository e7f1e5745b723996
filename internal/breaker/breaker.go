// Package breaker implements a per-endpoint circuit breaker: a
// closed/open/half-open state machine shared across all concurrent
// invocations in the process.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures
	// that trips a closed breaker open.
	DefaultFailureThreshold = 3
	// DefaultCooldown is how long an open breaker waits before
	// allowing a half-open probe.
	DefaultCooldown = 30 * time.Second
)

// Status is the point-in-time, read-only view of one endpoint's
// breaker state.
type Status struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
}

type entry struct {
	state       State
	failures    int
	lastFailure time.Time
}

// Table is the process-wide, concurrency-safe circuit-breaker table.
// It is encapsulated behind this type rather than exposed as free
// globals: inject one Table into whatever needs to consult or update
// breaker state rather than reaching for a package-level map.
type Table struct {
	mu               sync.Mutex
	entries          map[string]*entry
	failureThreshold int
	cooldown         time.Duration
}

// NewTable creates a breaker table with the given thresholds. Pass zero
// values to use the package defaults.
func NewTable(failureThreshold int, cooldown time.Duration) *Table {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Table{
		entries:          make(map[string]*entry),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

func (t *Table) get(endpoint string) *entry {
	e, ok := t.entries[endpoint]
	if !ok {
		e = &entry{state: StateClosed}
		t.entries[endpoint] = e
	}
	return e
}

// IsAvailable reports whether a call to endpoint should be attempted.
// A closed or half-open breaker permits the call; an open breaker
// permits it only once cooldown has elapsed since the last failure, at
// which point it transitions to half-open and permits exactly the
// probe that asked.
func (t *Table) IsAvailable(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.get(endpoint)
	switch e.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(e.lastFailure) >= t.cooldown {
			e.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets an endpoint's breaker to closed with a zeroed
// failure count, from any prior state.
func (t *Table) RecordSuccess(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.get(endpoint)
	e.state = StateClosed
	e.failures = 0
}

// RecordFailure registers a failed call against endpoint. In the closed
// state this increments the failure counter and trips the breaker open
// once the counter reaches the failure threshold. In the half-open
// state a single failure re-opens the breaker immediately.
func (t *Table) RecordFailure(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.get(endpoint)
	e.lastFailure = time.Now()

	switch e.state {
	case StateHalfOpen:
		e.state = StateOpen
	case StateClosed:
		e.failures++
		if e.failures >= t.failureThreshold {
			e.state = StateOpen
		}
	case StateOpen:
		// already open; nothing further to do besides bumping the
		// failure timestamp above, which restarts the cooldown clock.
	}
}

// StatusOf returns a snapshot of one endpoint's breaker state, for
// tests and diagnostics.
func (t *Table) StatusOf(endpoint string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.get(endpoint)
	return Status{State: e.state, Failures: e.failures, LastFailure: e.lastFailure}
}

// Reset clears all breaker state. Tests use this between cases so
// breaker state does not leak across unrelated scenarios sharing a
// Table.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
}
