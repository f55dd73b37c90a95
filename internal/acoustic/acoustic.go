// Package acoustic extracts utterance-level acoustic statistics from raw
// samples: pitch, energy, spectral centroid, zero-crossing rate, tempo and
// pause count.
//
// Extraction never returns an error. If any sub-feature cannot be computed
// (a detector error, a non-finite value or a panic) the whole feature set is
// reported as nil and the failure is logged.
package acoustic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sonar/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sonar/algorithms/tonal"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Analysis defaults.
const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512

	// Pitch search band, C2 to C7.
	MinPitch = 65.41
	MaxPitch = 2093.0

	// DefaultTopDB is the silence threshold below the loudest frame.
	DefaultTopDB = 30.0

	voicedThreshold = 0.5
)

// Option is a functional option for configuring an Extractor.
type Option func(*Extractor)

// WithFrame overrides the analysis frame and hop size in samples.
func WithFrame(size, hop int) Option {
	return func(e *Extractor) {
		if size > 0 && hop > 0 {
			e.frameSize, e.hopSize = size, hop
		}
	}
}

// WithTopDB overrides the silence threshold used for pause counting.
func WithTopDB(db float64) Option {
	return func(e *Extractor) { e.topDB = db }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// Extractor is stateless apart from its configuration and safe for
// concurrent use.
type Extractor struct {
	frameSize int
	hopSize   int
	topDB     float64
	metrics   *observe.Metrics
}

// New creates an Extractor with the default framing.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		frameSize: DefaultFrameSize,
		hopSize:   DefaultHopSize,
		topDB:     DefaultTopDB,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Extract computes the feature set for mono samples in [-1, 1] at
// sampleRate. It returns nil when the features cannot be computed.
func (e *Extractor) Extract(ctx context.Context, samples []float64, sampleRate int) *types.AcousticFeatures {
	start := time.Now()
	defer func() { e.metrics.RecordStage(ctx, observe.StageAcoustic, time.Since(start)) }()

	f, err := e.extract(ctx, samples, sampleRate)
	if err != nil {
		observe.Logger(ctx).Warn("acoustic: feature extraction failed", "err", err)
		e.metrics.RecordDegraded(ctx, observe.StageAcoustic)
		return nil
	}
	return f
}

func (e *Extractor) extract(ctx context.Context, samples []float64, sampleRate int) (f *types.AcousticFeatures, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("acoustic: panic: %v", r)
		}
	}()

	if len(samples) == 0 || sampleRate <= 0 {
		return nil, errors.New("acoustic: no audio")
	}

	frames := Frames(samples, e.frameSize, e.hopSize)
	window := Window(e.frameSize)
	fft := spectral.NewFFT()
	detector := tonal.NewPitchDetector(sampleRate)
	centroid := spectral.NewSpectralCentroid(sampleRate)
	zcr := spectral.NewZeroCrossingRate(sampleRate)
	energy := temporal.NewEnergy(e.frameSize, e.hopSize, sampleRate)

	var (
		pitches   []float64
		centroids = make([]float64, len(frames))
		zcrs      = make([]float64, len(frames))
		spectra   = make([][]float64, len(frames))
	)
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p, ok := voicedPitch(detector, frame); ok {
			pitches = append(pitches, p)
		}
		spectra[i] = Magnitude(fft, frame, window)
		if mag := spectra[i]; len(mag) > 0 && slices.Max(mag) > 0 {
			centroids[i] = centroid.Compute(spectra[i])
		}
		zcrs[i] = zcr.Compute(frame)
	}
	rms := energy.ComputeShortTimeEnergy(samples)

	f = &types.AcousticFeatures{
		EnergyMean:       Mean(rms),
		EnergyStd:        math.Sqrt(max(0, energy.ComputeEnergyVariance(rms))),
		SpectralCentroid: Mean(centroids),
		ZeroCrossingRate: Mean(zcrs),
		Tempo:            Tempo(OnsetEnvelope(spectra), float64(sampleRate)/float64(e.hopSize)),
		NumPauses:        max(0, len(SplitRMS(rms, e.topDB))-1),
		Duration:         float64(len(samples)) / float64(sampleRate),
	}
	if len(pitches) > 0 {
		lo, hi := minMax(pitches)
		f.PitchMean, f.PitchStd, f.PitchRange = Mean(pitches), StdDev(pitches), hi-lo
	}
	if err := checkFinite(f); err != nil {
		return nil, err
	}
	return f, nil
}

// voicedPitch runs the detector on one frame and reports whether the frame
// is voiced with a pitch inside the search band.
func voicedPitch(d *tonal.PitchDetector, frame []float64) (float64, bool) {
	res, err := d.DetectPitch(frame)
	if err != nil {
		return 0, false
	}
	if res.Voicing < voicedThreshold || res.Confidence < voicedThreshold {
		return 0, false
	}
	if res.Pitch < MinPitch || res.Pitch > MaxPitch || math.IsNaN(res.Pitch) {
		return 0, false
	}
	return res.Pitch, true
}

func checkFinite(f *types.AcousticFeatures) error {
	vals := map[string]float64{
		"pitch_mean":        f.PitchMean,
		"pitch_std":         f.PitchStd,
		"pitch_range":       f.PitchRange,
		"energy_mean":       f.EnergyMean,
		"energy_std":        f.EnergyStd,
		"spectral_centroid": f.SpectralCentroid,
		"zero_crossing":     f.ZeroCrossingRate,
		"tempo":             f.Tempo,
	}
	for name, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("acoustic: %s is not finite", name)
		}
	}
	return nil
}

// Frames slices samples into frames of size advancing by hop. A signal
// shorter than one frame yields a single zero-padded frame.
func Frames(samples []float64, size, hop int) [][]float64 {
	if len(samples) == 0 {
		return nil
	}
	if len(samples) < size {
		f := make([]float64, size)
		copy(f, samples)
		return [][]float64{f}
	}
	n := (len(samples)-size)/hop + 1
	out := make([][]float64, n)
	for i := range n {
		out[i] = samples[i*hop : i*hop+size]
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

var dispersion = temporal.NewEnergy(DefaultFrameSize, DefaultHopSize, 16000)

// StdDev is the standard deviation of xs, or 0 for no values.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(max(0, dispersion.ComputeEnergyVariance(xs)))
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo, hi = min(lo, x), max(hi, x)
	}
	return lo, hi
}
