// Package lazy provides a load-once container for expensive resources such as
// speech models and pronunciation dictionaries.
//
// A [Value] moves through Uninitialized → Loading → Ready or Failed. The first
// caller of [Value.Get] runs the loader; concurrent callers wait for it to
// finish. A failure is sticky: later calls return the same [*LoadError]
// without retrying until [Value.Reset] is called.
//
// All types are safe for concurrent use.
package lazy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of a [Value].
type State int

const (
	// StateUninitialized means no load has been attempted.
	StateUninitialized State = iota

	// StateLoading means a load is in progress.
	StateLoading

	// StateReady means the resource is loaded and shared read-only.
	StateReady

	// StateFailed means the last load failed. The error is returned to every
	// caller until Reset.
	StateFailed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoadError records a failed load.
type LoadError struct {
	// Name is the label of the resource that failed to load.
	Name string

	// Err is the loader's error.
	Err error
}

// Error implements error.
func (e *LoadError) Error() string {
	return fmt.Sprintf("lazy: load %s: %v", e.Name, e.Err)
}

// Unwrap returns the loader's error.
func (e *LoadError) Unwrap() error { return e.Err }

// Loader produces the resource held by a [Value].
type Loader[T any] func(ctx context.Context) (T, error)

// Value holds a lazily loaded resource of type T.
type Value[T any] struct {
	name string
	load Loader[T]

	mu    sync.Mutex
	state State
	val   T
	err   *LoadError
	done  chan struct{}
}

// New returns an uninitialised [Value] that will call load on first access.
func New[T any](name string, load Loader[T]) *Value[T] {
	return &Value[T]{name: name, load: load}
}

// Ready returns a [Value] that is already loaded with v.
func Ready[T any](name string, v T) *Value[T] {
	return &Value[T]{name: name, state: StateReady, val: v}
}

// Get returns the loaded resource, running the loader if this is the first
// access. Callers that arrive while a load is in progress wait for it or for
// ctx to be done. The loader itself runs with the first caller's ctx.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T

	v.mu.Lock()
	switch v.state {
	case StateReady:
		val := v.val
		v.mu.Unlock()
		return val, nil
	case StateFailed:
		err := v.err
		v.mu.Unlock()
		return zero, err
	case StateLoading:
		done := v.done
		v.mu.Unlock()
		select {
		case <-done:
			return v.Get(ctx)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	v.state = StateLoading
	v.done = make(chan struct{})
	done := v.done
	v.mu.Unlock()

	start := time.Now()
	val, err := v.runLoader(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	defer close(done)

	if err != nil {
		v.state = StateFailed
		v.err = &LoadError{Name: v.name, Err: err}
		slog.Error("resource load failed", "resource", v.name, "err", err)
		return zero, v.err
	}
	v.state = StateReady
	v.val = val
	slog.Info("resource loaded", "resource", v.name, "took", time.Since(start))
	return val, nil
}

// runLoader calls the loader and turns a panic into an error.
func (v *Value[T]) runLoader(ctx context.Context) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panic: %v", r)
		}
	}()
	if v.load == nil {
		return val, fmt.Errorf("no loader configured")
	}
	return v.load(ctx)
}

// State returns the current lifecycle state.
func (v *Value[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the sticky load error, or nil if the value has not failed.
func (v *Value[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err == nil {
		return nil
	}
	return v.err
}

// Reset discards a failed or loaded resource so the next Get loads again. A
// load in progress is left alone.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateLoading {
		return
	}
	var zero T
	v.state = StateUninitialized
	v.val = zero
	v.err = nil
}
