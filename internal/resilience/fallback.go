package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result, either because each one failed or because its breaker was open.
var ErrAllFailed = errors.New("all entries failed")

// FallbackConfig is the breaker template applied to every entry of a
// [FallbackGroup]. The entry name replaces CircuitBreaker.Name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered chain of implementations of T. Calls go to the
// first member whose breaker admits them and move on when it fails.
//
// Members are added during setup; the group must not be extended while
// calls are in flight.
type FallbackGroup[T any] struct {
	members []member[T]
	tmpl    CircuitBreakerConfig
}

// NewFallbackGroup creates a group whose first member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{tmpl: cfg.CircuitBreaker}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends v; it is tried after every member added before it.
func (fg *FallbackGroup[T]) AddFallback(name string, v T) {
	cfg := fg.tmpl
	cfg.Name = name
	fg.members = append(fg.members, member[T]{
		name:    name,
		value:   v,
		breaker: NewCircuitBreaker(cfg),
	})
}

// Execute calls fn with each member in order until one returns nil. The
// returned error wraps both [ErrAllFailed] and the last member's error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var last error
	for _, m := range fg.members {
		var out R
		err := m.breaker.Execute(func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("fallback: member skipped, circuit open", "member", m.name)
		default:
			slog.Debug("fallback: member failed", "member", m.name, "err", err)
		}
		last = err
	}
	var zero R
	if last == nil {
		return zero, ErrAllFailed
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, last)
}

// Len returns the number of members.
func (fg *FallbackGroup[T]) Len() int { return len(fg.members) }

// Names returns the member names in call order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, 0, len(fg.members))
	for _, m := range fg.members {
		names = append(names, m.name)
	}
	return names
}

// Each calls fn for every member, ignoring breaker state. Loading and
// closing backends go through here.
func (fg *FallbackGroup[T]) Each(fn func(name string, v T)) {
	for _, m := range fg.members {
		fn(m.name, m.value)
	}
}

// States returns each member's breaker state keyed by member name.
func (fg *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(fg.members))
	for _, m := range fg.members {
		out[m.name] = m.breaker.State()
	}
	return out
}
