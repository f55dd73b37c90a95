// Package observe provides application-wide observability primitives for
// prosodia: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all prosodia metrics.
const meterName = "github.com/MrWong99/prosodia"

// Pipeline stage names used as the "stage" attribute.
const (
	StageTranscribe = "transcribe"
	StageG2P        = "g2p"
	StageAlign      = "align"
	StageAcoustic   = "acoustic"
	StageProsody    = "prosody"
	StageGOP        = "gop"
	StageScore      = "score"
	StageReport     = "report"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks end-to-end latency of one analysis. Use with
	// attribute.String("status", ...).
	AnalysisDuration metric.Float64Histogram

	// StageDuration tracks latency per pipeline stage. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// --- Counters ---

	// Analyses counts finished analyses. Use with attribute:
	//   attribute.String("status", ...)  // ok | invalid_input | model_unavailable | error
	Analyses metric.Int64Counter

	// DegradedStages counts stages that fell back to an empty or default
	// result. Use with attribute.String("stage", ...).
	DegradedStages metric.Int64Counter

	// G2PResolutions counts resolved words by the strategy that resolved them.
	// Unresolved words use strategy "none".
	G2PResolutions metric.Int64Counter

	// ModelLoads counts model load attempts. Use with attributes:
	//   attribute.String("model", ...), attribute.String("status", ...)
	ModelLoads metric.Int64Counter

	// BreakerTransitions counts circuit-breaker state changes.
	// Attributes: breaker, state.
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveAnalyses tracks analyses currently in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for batch
// analysis latencies, where model inference dominates.
var latencyBuckets = []float64{
	0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("prosodia.analysis.duration",
		metric.WithDescription("End-to-end latency of a pronunciation analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("prosodia.stage.duration",
		metric.WithDescription("Latency of a single pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Analyses, err = m.Int64Counter("prosodia.analyses",
		metric.WithDescription("Total analyses by outcome."),
	); err != nil {
		return nil, err
	}
	if met.DegradedStages, err = m.Int64Counter("prosodia.stage.degraded",
		metric.WithDescription("Stages that returned an empty or default result."),
	); err != nil {
		return nil, err
	}
	if met.G2PResolutions, err = m.Int64Counter("prosodia.g2p.resolutions",
		metric.WithDescription("Words resolved to phonemes by strategy."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoads, err = m.Int64Counter("prosodia.model.loads",
		metric.WithDescription("Model load attempts by model and status."),
	); err != nil {
		return nil, err
	}

	if met.BreakerTransitions, err = m.Int64Counter("prosodia.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and new state."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("prosodia.active_analyses",
		metric.WithDescription("Number of analyses currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("prosodia.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordAnalysis records the outcome and total duration of one analysis.
func (m *Metrics) RecordAnalysis(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Analyses.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordDegraded records that a stage fell back to its empty result.
func (m *Metrics) RecordDegraded(ctx context.Context, stage string) {
	m.DegradedStages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordG2P records a word resolution by strategy.
func (m *Metrics) RecordG2P(ctx context.Context, strategy string) {
	if strategy == "" {
		strategy = "none"
	}
	m.G2PResolutions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}

// RecordModelLoad records a model load attempt.
func (m *Metrics) RecordModelLoad(ctx context.Context, model, status string) {
	m.ModelLoads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
}

// RecordBreakerTransition records that breaker entered state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("state", state),
		),
	)
}
