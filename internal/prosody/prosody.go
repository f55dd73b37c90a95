// Package prosody extracts sentence-level prosodic features (F0 statistics,
// intensity, formants, duration and a syllable-rate estimate) from an
// utterance.
//
// Engines work on a WAV file path so external tools can be plugged in. The
// [Extractor] persists each utterance to its own temporary file, runs the
// engine and removes the file on every exit path, including engine panics.
// Any engine failure yields nil features; the pipeline carries on without
// prosody.
package prosody

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Engine analyses the WAV file at path.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, path string) (*types.ProsodyFeatures, error)
}

// Option is a functional option for configuring an Extractor.
type Option func(*Extractor)

// WithTempDir sets the directory for temporary WAV files. Empty uses
// [os.TempDir].
func WithTempDir(dir string) Option {
	return func(x *Extractor) { x.tempDir = dir }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(x *Extractor) { x.metrics = m }
}

// Extractor is safe for concurrent use if its Engine is.
type Extractor struct {
	engine  Engine
	tempDir string
	metrics *observe.Metrics
}

// NewExtractor creates an Extractor over engine. A nil engine disables
// prosody extraction.
func NewExtractor(engine Engine, opts ...Option) *Extractor {
	x := &Extractor{engine: engine}
	for _, o := range opts {
		o(x)
	}
	if x.metrics == nil {
		x.metrics = observe.DefaultMetrics()
	}
	return x
}

// Enabled reports whether an engine is configured.
func (x *Extractor) Enabled() bool { return x.engine != nil }

// Extract analyses a WAV buffer. It returns nil when prosody is disabled or
// the engine fails.
func (x *Extractor) Extract(ctx context.Context, wav []byte) *types.ProsodyFeatures {
	if x.engine == nil {
		return nil
	}
	start := time.Now()
	defer func() { x.metrics.RecordStage(ctx, observe.StageProsody, time.Since(start)) }()

	f, err := x.extract(ctx, wav)
	if err != nil {
		observe.Logger(ctx).Warn("prosody: extraction failed", "engine", x.engine.Name(), "err", err)
		x.metrics.RecordDegraded(ctx, observe.StageProsody)
		return nil
	}
	return f
}

func (x *Extractor) extract(ctx context.Context, wav []byte) (f *types.ProsodyFeatures, err error) {
	tmp, err := os.CreateTemp(x.tempDir, "prosody-"+uuid.NewString()+"-*.wav")
	if err != nil {
		return nil, fmt.Errorf("prosody: create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			observe.Logger(ctx).Warn("prosody: remove temp file", "path", path, "err", rmErr)
		}
	}()

	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("prosody: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("prosody: close temp file: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("prosody: engine %s panicked: %v", x.engine.Name(), r)
		}
	}()
	f, err = x.engine.Analyze(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("prosody: %s: %w", x.engine.Name(), err)
	}
	if f == nil {
		return nil, fmt.Errorf("prosody: %s returned no features", x.engine.Name())
	}
	return f, nil
}

// NewEngine returns the engine registered under name. "none" and "" return a
// nil engine, which disables extraction.
func NewEngine(name, praatPath, tempDir string) (Engine, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "native":
		return NewNativeEngine(), nil
	case "praat":
		return NewPraatEngine(praatPath, tempDir), nil
	default:
		return nil, fmt.Errorf("prosody: unknown engine %q", name)
	}
}
