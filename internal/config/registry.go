package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/prosodia/internal/prosody"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
)

// ErrNotRegistered is returned by the Create methods when nothing is
// registered under the requested name.
var ErrNotRegistered = errors.New("config: backend not registered")

// STTFactory builds a recognizer backend from its config entry and the
// configured recognition language.
type STTFactory func(entry BackendEntry, language string) (stt.Provider, error)

// ProsodyFactory builds a prosody engine from the prosody section.
type ProsodyFactory func(cfg ProsodyConfig) (prosody.Engine, error)

// Registry maps recognizer backend and prosody engine names to factories.
// Registering a name twice replaces the earlier factory. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     map[string]STTFactory
	prosody map[string]ProsodyFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:     map[string]STTFactory{},
		prosody: map[string]ProsodyFactory{},
	}
}

// RegisterSTT registers a recognizer backend factory under name.
func (r *Registry) RegisterSTT(name string, f STTFactory) {
	r.mu.Lock()
	r.stt[name] = f
	r.mu.Unlock()
}

// RegisterProsody registers a prosody engine factory under name.
func (r *Registry) RegisterProsody(name string, f ProsodyFactory) {
	r.mu.Lock()
	r.prosody[name] = f
	r.mu.Unlock()
}

// CreateSTT builds the backend registered under entry.Name.
func (r *Registry) CreateSTT(entry BackendEntry, language string) (stt.Provider, error) {
	f, err := lookup(&r.mu, r.stt, "stt", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry, language)
}

// CreateProsody builds the engine registered under cfg.Engine. An empty
// engine name or "none" yields a nil engine without consulting the registry.
func (r *Registry) CreateProsody(cfg ProsodyConfig) (prosody.Engine, error) {
	if cfg.Engine == "" || cfg.Engine == ProsodyNone {
		return nil, nil
	}
	f, err := lookup(&r.mu, r.prosody, "prosody", cfg.Engine)
	if err != nil {
		return nil, err
	}
	return f(cfg)
}

// STTNames returns the registered recognizer backend names, sorted.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.stt))
}

// ProsodyNames returns the registered prosody engine names, sorted.
func (r *Registry) ProsodyNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.prosody))
}

func lookup[F any](mu *sync.RWMutex, m map[string]F, kind, name string) (F, error) {
	mu.RLock()
	f, ok := m[name]
	mu.RUnlock()
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s/%q", ErrNotRegistered, kind, name)
	}
	return f, nil
}
