package prosody

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/RyanBlaney/sonido-sonar/algorithms/speech"
	"github.com/RyanBlaney/sonido-sonar/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sonar/algorithms/tonal"

	"github.com/MrWong99/prosodia/internal/acoustic"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Native analysis settings.
const (
	PitchFloor   = 75.0
	PitchCeiling = 600.0

	// TimeStep is the spacing of pitch and intensity measurements.
	TimeStep = 0.01

	// intensityPeriods is the number of pitch-floor periods covered by one
	// intensity window.
	intensityPeriods = 3.2

	// referencePressure converts RMS amplitude to dB SPL.
	referencePressure = 2e-5

	voicedThreshold = 0.5
)

// Compile-time interface assertion.
var _ Engine = (*NativeEngine)(nil)

// NativeEngine computes prosody in process. F0 comes from the sonido pitch
// detector, formants from its LPC formant analyzer, and the syllable count
// from peaks in the intensity contour. The syllable count is a heuristic
// proxy, not a forced alignment.
type NativeEngine struct{}

// NewNativeEngine creates a NativeEngine.
func NewNativeEngine() *NativeEngine { return &NativeEngine{} }

// Name implements [Engine].
func (*NativeEngine) Name() string { return "native" }

// Analyze implements [Engine].
func (*NativeEngine) Analyze(ctx context.Context, path string) (*types.ProsodyFeatures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	samples := clip.Samples()
	if len(samples) == 0 || clip.SampleRate <= 0 {
		return nil, errors.New("empty audio")
	}
	return Analyze(ctx, samples, clip.SampleRate)
}

// Analyze computes prosody features for mono samples.
func Analyze(ctx context.Context, samples []float64, sampleRate int) (*types.ProsodyFeatures, error) {
	sr := float64(sampleRate)
	hop := max(1, int(TimeStep*sr))

	f0, err := pitchTrack(ctx, samples, sampleRate, hop)
	if err != nil {
		return nil, err
	}
	contour := IntensityContour(samples, sampleRate)
	syllables := CountSyllables(contour)
	duration := float64(len(samples)) / sr

	f := &types.ProsodyFeatures{
		IntensityMean: acoustic.Mean(contour),
		Duration:      duration,
		SyllableRate:  float64(syllables) / duration,
	}
	if len(f0) > 0 {
		f.F0Mean = acoustic.Mean(f0)
		f.F0Std = acoustic.StdDev(f0)
		f.F0Range = slices.Max(f0) - slices.Min(f0)
	}
	f.F1, f.F2 = midpointFormants(samples, sampleRate)
	return f, nil
}

// pitchTrack returns the voiced F0 values inside the pitch band, one per
// time step.
func pitchTrack(ctx context.Context, samples []float64, sampleRate, hop int) ([]float64, error) {
	detector := tonal.NewPitchDetector(sampleRate)
	var f0 []float64
	for _, frame := range acoustic.Frames(samples, acoustic.DefaultFrameSize, hop) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := detector.DetectPitch(frame)
		if err != nil || res.Voicing < voicedThreshold || res.Confidence < voicedThreshold {
			continue
		}
		if res.Pitch >= PitchFloor && res.Pitch <= PitchCeiling {
			f0 = append(f0, res.Pitch)
		}
	}
	return f0, nil
}

// IntensityContour returns the intensity in dB every [TimeStep] seconds,
// measured over a window of 3.2 pitch-floor periods. Silent windows have no
// defined intensity and are skipped.
func IntensityContour(samples []float64, sampleRate int) []float64 {
	sr := float64(sampleRate)
	win := max(1, int(intensityPeriods/PitchFloor*sr))
	hop := max(1, int(TimeStep*sr))
	if len(samples) < win {
		return nil
	}
	var out []float64
	for _, rms := range temporal.NewEnergy(win, hop, sampleRate).ComputeShortTimeEnergy(samples) {
		if rms <= 0 {
			continue
		}
		out = append(out, 20*math.Log10(rms/referencePressure))
	}
	return out
}

// CountSyllables counts rises of the intensity contour above mean - std.
// A contour that starts above the threshold counts one syllable for that
// onset.
func CountSyllables(contour []float64) int {
	if len(contour) == 0 {
		return 0
	}
	threshold := acoustic.Mean(contour) - acoustic.StdDev(contour)
	count, above := 0, false
	for _, v := range contour {
		switch {
		case v > threshold && !above:
			count++
			above = true
		case v <= threshold:
			above = false
		}
	}
	return count
}

// midpointFormants measures F1 and F2 on the analysis window centred on the
// temporal midpoint. Missing formants are reported as 0.
func midpointFormants(samples []float64, sampleRate int) (f1, f2 float64) {
	win := 1024
	if sampleRate >= 16000 {
		win = 2048
	}
	if len(samples) < win {
		return 0, 0
	}
	start := min(max(0, len(samples)/2-win/2), len(samples)-win)
	res, err := speech.NewFormantAnalyzer(sampleRate).AnalyzeFormants(samples[start : start+win])
	if err != nil || res == nil {
		return 0, 0
	}
	freqs := make([]float64, 0, len(res.Formants))
	for _, fm := range res.Formants {
		if fm.Frequency > 0 && !math.IsNaN(fm.Frequency) {
			freqs = append(freqs, fm.Frequency)
		}
	}
	slices.Sort(freqs)
	if len(freqs) > 0 {
		f1 = freqs[0]
	}
	if len(freqs) > 1 {
		f2 = freqs[1]
	}
	return f1, f2
}
