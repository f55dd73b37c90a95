// Package recognizer turns an utterance into text for pronunciation analysis.
//
// A [Recognizer] wraps one [stt.Provider] (usually a [resilience.STTFallback]
// over several whisper backends) and adds what the analysis pipeline needs
// around it: a one-time model load with an observable state, audio
// normalisation to 16 kHz mono, and a failure policy where transcription
// problems degrade to an empty string instead of failing the analysis.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
)

// ErrModelUnavailable is matched by every [*ModelUnavailableError].
var ErrModelUnavailable = errors.New("recognizer: speech model unavailable")

// ModelUnavailableError reports that no recognition backend could be loaded.
// It is fatal to an analysis.
type ModelUnavailableError struct {
	// Backend names the provider whose load failed.
	Backend string

	// Err is the underlying load error, typically a *lazy.LoadError.
	Err error
}

// Error implements error.
func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("recognizer: speech model %q unavailable: %v", e.Backend, e.Err)
}

// Unwrap returns the load error.
func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrModelUnavailable].
func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the recognition language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recognizer) { r.metrics = m }
}

// Recognizer is safe for concurrent use. The loaded model is shared
// read-only across calls.
type Recognizer struct {
	name     string
	provider stt.Provider
	language string
	metrics  *observe.Metrics
	loaded   *lazy.Value[struct{}]
}

// New creates a Recognizer over provider. name labels the provider in logs
// and errors. The model is not loaded until [Recognizer.Load] or the first
// [Recognizer.Transcribe].
func New(name string, provider stt.Provider, opts ...Option) *Recognizer {
	r := &Recognizer{
		name:     name,
		provider: provider,
		language: "en",
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	r.loaded = lazy.New(name, func(ctx context.Context) (struct{}, error) {
		l, ok := r.provider.(stt.Loader)
		if !ok {
			return struct{}{}, nil
		}
		err := l.Load(ctx)
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordModelLoad(ctx, r.name, status)
		return struct{}{}, err
	})
	return r
}

// Load ensures the recognition model is loaded. The first call performs the
// load; later calls return immediately. A failed load is sticky and is
// reported as a [*ModelUnavailableError] on every call.
func (r *Recognizer) Load(ctx context.Context) error {
	if _, err := r.loaded.Get(ctx); err != nil {
		var le *lazy.LoadError
		if errors.As(err, &le) {
			return &ModelUnavailableError{Backend: r.name, Err: le}
		}
		// Context expiry while waiting on another caller's load.
		return err
	}
	return nil
}

// State reports the model lifecycle state.
func (r *Recognizer) State() lazy.State { return r.loaded.State() }

// Ready reports whether the model is loaded.
func (r *Recognizer) Ready() bool { return r.loaded.State() == lazy.StateReady }

// Transcribe recognizes clip, converting it to 16 kHz mono first. Any failure
// (model not loadable, backend error, cancelled context) is logged and
// reported as an empty string.
func (r *Recognizer) Transcribe(ctx context.Context, clip *audio.Clip) string {
	log := observe.Logger(ctx)
	start := time.Now()
	defer func() { r.metrics.RecordStage(ctx, observe.StageTranscribe, time.Since(start)) }()

	if err := r.Load(ctx); err != nil {
		log.Warn("recognizer: model unavailable, returning empty transcript", "backend", r.name, "err", err)
		r.metrics.RecordDegraded(ctx, observe.StageTranscribe)
		return ""
	}

	norm := audio.Normalize(clip, audio.AnalysisFormat)
	tr, err := r.provider.Transcribe(ctx, norm.PCM, stt.Config{
		SampleRate: norm.SampleRate,
		Channels:   norm.Channels,
		Language:   r.language,
	})
	if err != nil {
		log.Warn("recognizer: transcription failed, returning empty transcript", "backend", r.name, "err", err)
		r.metrics.RecordDegraded(ctx, observe.StageTranscribe)
		return ""
	}
	log.Debug("recognizer: transcribed", "backend", r.name, "chars", len(tr.Text), "took", time.Since(start))
	return tr.Text
}

// Close releases the provider if it holds resources.
func (r *Recognizer) Close() error {
	if c, ok := r.provider.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			slog.Warn("recognizer: close failed", "backend", r.name, "err", err)
			return err
		}
	}
	return nil
}
