// Package resilience keeps flaky pipeline backends from taking an analysis
// down with them.
//
// [CircuitBreaker] stops calling a backend after repeated faults and probes it
// again once a cool-down has passed. [FallbackGroup] chains several
// implementations of the same interface, each behind its own breaker, and
// answers with the first one that succeeds. Recognizer backends and G2P
// strategies are both chained this way.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has elapsed since the last fault.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successful probes close the breaker; any failed probe opens it again.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

// String returns the state name used in logs and metric attributes.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker defaults applied by [NewCircuitBreaker] to zero config fields.
const (
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
	DefaultHalfOpenMax  = 3
)

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and in OnStateChange.
	Name string

	// MaxFailures is the number of consecutive faults that opens a closed
	// breaker.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget of the half-open state and the number
	// of successful probes needed to close again.
	HalfOpenMax int

	// IsFailure decides whether an error counts as a fault. Errors it
	// rejects still reach the caller but count as successful calls. Nil
	// counts every error. G2P uses this so a dictionary miss never trips a
	// strategy.
	IsFailure func(error) bool

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock held and must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker is a three-state breaker (closed, open, half-open).
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	isFailure     func(error) bool
	onStateChange func(name string, from, to State)

	mu       sync.Mutex
	state    State
	failures int       // consecutive faults while closed
	openedAt time.Time // time of the fault that last opened the breaker
	probes   int       // probe calls admitted while half-open
	passed   int       // probe calls that succeeded while half-open
}

// NewCircuitBreaker creates a closed [CircuitBreaker]. Zero config fields
// take the Default* values.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		isFailure:     cfg.IsFailure,
		onStateChange: cfg.OnStateChange,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = DefaultMaxFailures
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = DefaultResetTimeout
	}
	if cb.halfOpenMax <= 0 {
		cb.halfOpenMax = DefaultHalfOpenMax
	}
	return cb
}

// Execute runs fn unless the breaker rejects the call, in which case it
// returns [ErrCircuitOpen] without calling fn. fn's error is returned
// unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.onFault(probe)
	} else {
		cb.onSuccess(probe)
	}
	return err
}

// admit decides whether a call may proceed and reports whether it is a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.passed = 0, 0
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// onFault must be called with cb.mu held.
func (cb *CircuitBreaker) onFault(probe bool) {
	if probe || cb.state == StateHalfOpen {
		cb.trip()
		return
	}
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.trip()
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		cb.failures = 0
		return
	}
	if cb.state != StateHalfOpen {
		return
	}
	cb.passed++
	if cb.passed >= cb.halfOpenMax {
		cb.failures, cb.probes, cb.passed = 0, 0, 0
		cb.transition(StateClosed)
	}
}

// trip must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	if cb.state != StateOpen {
		cb.transition(StateOpen)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	log := slog.Info
	if to == StateOpen {
		log = slog.Warn
	}
	log("circuit breaker state change",
		"name", cb.name,
		"from", from.String(),
		"to", to.String(),
		"consecutive_failures", cb.failures,
	)
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the breaker's state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures, cb.probes, cb.passed = 0, 0, 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}
