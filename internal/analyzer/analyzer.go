// Package analyzer runs the offline pronunciation-scoring pipeline for one
// utterance: validation, transcription, feature extraction, G2P, alignment,
// GOP scoring, score synthesis and report assembly.
//
// An [Analyzer] is safe for concurrent use. Scoring thresholds, the aligner
// and the GOP scorer can be swapped at runtime; calls already in flight keep
// the snapshot they started with.
package analyzer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/prosodia/internal/acoustic"
	"github.com/MrWong99/prosodia/internal/align"
	"github.com/MrWong99/prosodia/internal/g2p"
	"github.com/MrWong99/prosodia/internal/gop"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/prosody"
	"github.com/MrWong99/prosodia/internal/recognizer"
	"github.com/MrWong99/prosodia/internal/report"
	"github.com/MrWong99/prosodia/internal/scoring"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Analysis outcome labels used in metrics.
const (
	StatusOK          = "ok"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Recognizer transcribes an utterance. Load reports a fatal model problem;
// Transcribe degrades to "" on any failure.
type Recognizer interface {
	Load(ctx context.Context) error
	Ready() bool
	Transcribe(ctx context.Context, clip *audio.Clip) string
}

// Compile-time interface assertion.
var _ Recognizer = (*recognizer.Recognizer)(nil)

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithAcoustic overrides the acoustic feature extractor.
func WithAcoustic(x *acoustic.Extractor) Option {
	return func(a *Analyzer) { a.acoustic = x }
}

// WithProsody sets the prosody extractor. Prosody is disabled by default.
func WithProsody(x *prosody.Extractor) Option {
	return func(a *Analyzer) { a.prosody = x }
}

// WithAligner overrides the phoneme aligner.
func WithAligner(al *align.Aligner) Option {
	return func(a *Analyzer) { a.aligner.Store(al) }
}

// WithGOP overrides the GOP scorer.
func WithGOP(s *gop.Scorer) Option {
	return func(a *Analyzer) { a.gop.Store(s) }
}

// WithBuilder overrides the report builder.
func WithBuilder(b *report.Builder) Option {
	return func(a *Analyzer) { a.builder = b }
}

// WithThresholds sets the initial scoring thresholds.
func WithThresholds(th scoring.Thresholds) Option {
	return func(a *Analyzer) { a.thresholds.Store(&th) }
}

// WithLimits overrides the input limits.
func WithLimits(l Limits) Option {
	return func(a *Analyzer) { a.limits = l }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// Analyzer orchestrates one analysis per call.
type Analyzer struct {
	rec      Recognizer
	resolver *g2p.Resolver
	acoustic *acoustic.Extractor
	prosody  *prosody.Extractor
	builder  *report.Builder
	limits   Limits
	metrics  *observe.Metrics

	aligner    atomic.Pointer[align.Aligner]
	gop        atomic.Pointer[gop.Scorer]
	thresholds atomic.Pointer[scoring.Thresholds]
}

// New creates an Analyzer. rec and resolver are required.
func New(rec Recognizer, resolver *g2p.Resolver, opts ...Option) *Analyzer {
	a := &Analyzer{
		rec:      rec,
		resolver: resolver,
		limits:   DefaultLimits(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.acoustic == nil {
		a.acoustic = acoustic.New(acoustic.WithMetrics(a.metrics))
	}
	if a.prosody == nil {
		a.prosody = prosody.NewExtractor(nil, prosody.WithMetrics(a.metrics))
	}
	if a.builder == nil {
		a.builder = report.NewBuilder()
	}
	if a.aligner.Load() == nil {
		a.aligner.Store(align.New())
	}
	if a.gop.Load() == nil {
		a.gop.Store(gop.New(gop.WithMetrics(a.metrics)))
	}
	if a.thresholds.Load() == nil {
		th := scoring.DefaultThresholds()
		a.thresholds.Store(&th)
	}
	return a
}

// SetThresholds replaces the scoring thresholds for subsequent calls.
func (a *Analyzer) SetThresholds(th scoring.Thresholds) { a.thresholds.Store(&th) }

// Thresholds returns the current scoring thresholds.
func (a *Analyzer) Thresholds() scoring.Thresholds { return *a.thresholds.Load() }

// SetAligner replaces the aligner for subsequent calls.
func (a *Analyzer) SetAligner(al *align.Aligner) { a.aligner.Store(al) }

// SetGOP replaces the GOP scorer for subsequent calls.
func (a *Analyzer) SetGOP(s *gop.Scorer) { a.gop.Store(s) }

// Ready reports whether the recognition model is loaded.
func (a *Analyzer) Ready() bool { return a.rec.Ready() }

// Analyze scores the utterance in wav against the reference text.
//
// Invalid input returns an error wrapping [ErrInvalidInput]. A recognition
// model that cannot be loaded returns a [*recognizer.ModelUnavailableError].
// Every other component failure degrades to defaults and still yields a
// report.
func (a *Analyzer) Analyze(ctx context.Context, wav []byte, text string) (_ *types.AnalysisReport, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "analyzer.Analyze")
	a.metrics.ActiveAnalyses.Add(ctx, 1)
	defer func() {
		status := statusOf(err)
		a.metrics.ActiveAnalyses.Add(ctx, -1)
		a.metrics.RecordAnalysis(ctx, status, time.Since(start))
		observe.FinishSpan(span, status, err)
	}()

	clip, err := a.limits.Validate(wav, text)
	if err != nil {
		return nil, err
	}
	if err := a.rec.Load(ctx); err != nil {
		return nil, err
	}

	// Snapshot swappable components.
	th := *a.thresholds.Load()
	aligner := a.aligner.Load()
	scorer := a.gop.Load()

	var (
		recognized string
		af         *types.AcousticFeatures
		pf         *types.ProsodyFeatures
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		recognized = a.rec.Transcribe(egCtx, clip)
		return nil
	})
	eg.Go(func() error {
		af = a.acoustic.Extract(egCtx, clip.Samples(), clip.SampleRate)
		return nil
	})
	eg.Go(func() error {
		pf = a.prosody.Extract(egCtx, wav)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := observe.Logger(ctx)
	log.Debug("analyzer: extraction done", "recognized", recognized, "acoustic", af != nil, "prosody", pf != nil)

	refWords := a.resolver.Resolve(ctx, text, types.SourceReference)
	refPh := types.FlattenSymbols(refWords)
	predPh := a.resolver.Symbols(ctx, recognized, types.SourcePredicted)

	alignStart := time.Now()
	segs := aligner.Align(refPh, predPh)
	a.metrics.RecordStage(ctx, observe.StageAlign, time.Since(alignStart))

	gopScores := scorer.Score(ctx, segs)

	scoreStart := time.Now()
	stressIssues := scoring.DetectStressIssues(refWords, pf, th)
	intonationIssues := scoring.DetectIntonationIssues(pf, th)
	result := scoring.Synthesize(scoring.Input{
		ReferenceText:     text,
		RecognizedText:    recognized,
		ReferencePhonemes: refPh,
		PredictedPhonemes: predPh,
		Alignment:         segs,
		GOP:               gopScores,
		Acoustic:          af,
		Prosody:           pf,
		StressIssues:      stressIssues,
		IntonationIssues:  intonationIssues,
	}, th)
	a.metrics.RecordStage(ctx, observe.StageScore, time.Since(scoreStart))

	reportStart := time.Now()
	r := a.builder.Build(report.Input{
		ReferenceText:     text,
		RecognizedText:    recognized,
		ReferenceWords:    refWords,
		ReferencePhonemes: refPh,
		PredictedPhonemes: predPh,
		Alignment:         segs,
		GOP:               gopScores,
		Scores:            result,
		StressIssues:      stressIssues,
		IntonationIssues:  intonationIssues,
		Prosody:           pf,
	})
	a.metrics.RecordStage(ctx, observe.StageReport, time.Since(reportStart))

	log.Info("analyzer: analysis complete",
		"holistic", result.Scores.Holistic,
		"segmental", result.Scores.Segmental,
		"comment", r.GeneralComment,
		"took", time.Since(start),
	)
	return r, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidInput):
		return StatusInvalid
	case errors.Is(err, recognizer.ErrModelUnavailable):
		return StatusUnavailable
	default:
		return StatusError
	}
}
