package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/types"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertions.
var (
	_ stt.Provider = (*STTFallback)(nil)
	_ stt.Loader   = (*STTFallback)(nil)
)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Backends returns the backend names in the order they are tried.
func (f *STTFallback) Backends() []string { return f.group.Names() }

// ErrNoBackend is returned by [STTFallback.Available] when every backend's
// breaker is open.
var ErrNoBackend = errors.New("no recognizer backend available")

// Available returns nil while at least one backend's breaker admits calls.
func (f *STTFallback) Available() error {
	for _, st := range f.group.States() {
		if st != StateOpen {
			return nil
		}
	}
	return ErrNoBackend
}

// Transcribe recognizes pcm with the first healthy backend. If it fails,
// subsequent fallbacks are tried.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (types.Transcript, error) {
		return p.Transcribe(ctx, pcm, cfg)
	})
}

// Load loads every backend that implements [stt.Loader]. It succeeds when at
// least one backend is usable; otherwise the per-backend errors are joined.
// Backends without a loader count as usable.
func (f *STTFallback) Load(ctx context.Context) error {
	var (
		errs   []error
		usable int
	)
	f.group.Each(func(name string, p stt.Provider) {
		l, ok := p.(stt.Loader)
		if !ok {
			usable++
			return
		}
		if err := l.Load(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		usable++
	})
	if usable > 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Close closes every backend that holds resources and joins their errors.
func (f *STTFallback) Close() error {
	var errs []error
	f.group.Each(func(name string, p stt.Provider) {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	})
	return errors.Join(errs...)
}
