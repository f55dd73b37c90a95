package acoustic

import (
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sonar/algorithms/stats"
	"github.com/RyanBlaney/sonido-sonar/algorithms/windowing"
)

// Window returns the symmetric Hamming coefficients for a frame of n samples.
func Window(n int) []float64 {
	return windowing.NewHamming(n, true).GetCoefficients()
}

// Magnitude returns the one-sided magnitude spectrum of frame multiplied by
// window. A nil window leaves the frame untouched.
func Magnitude(fft *spectral.FFT, frame, window []float64) []float64 {
	buf := make([]float64, len(frame))
	for i, s := range frame {
		if i < len(window) {
			s *= window[i]
		}
		buf[i] = s
	}
	coeffs := fft.Compute(buf)
	mag := make([]float64, len(coeffs)/2+1)
	for i := range mag {
		mag[i] = cmplx.Abs(coeffs[i])
	}
	return mag
}

// OnsetEnvelope is the half-wave rectified spectral flux of a magnitude
// spectrogram, one value per frame. The first frame has zero onset.
func OnsetEnvelope(spectra [][]float64) []float64 {
	env := make([]float64, len(spectra))
	if len(spectra) < 2 {
		return env
	}
	flux := spectral.NewSpectralFlux().Compute(spectra)
	// Flux between consecutive frames is reported against the later frame.
	offset := len(spectra) - len(flux)
	for i, v := range flux {
		if t := i + offset; t >= 0 && t < len(env) {
			env[t] = max(0, v)
		}
	}
	return env
}

// Tempo search band and prior.
const (
	minBPM   = 30.0
	maxBPM   = 300.0
	priorBPM = 120.0
	priorStd = 1.0 // octaves
)

// Tempo estimates the dominant tempo in BPM from an onset envelope sampled
// at frameRate frames per second. Autocorrelation lags are weighted by a
// log-normal prior centred on 120 BPM; an envelope with no periodicity
// yields the prior itself. Tempo is 0 only when there is no envelope.
func Tempo(env []float64, frameRate float64) float64 {
	if len(env) < 2 || frameRate <= 0 {
		return 0
	}
	m := Mean(env)
	centred := make([]float64, len(env))
	for i, v := range env {
		centred[i] = v - m
	}

	minLag := max(1, int(math.Floor(60*frameRate/maxBPM)))
	maxLag := min(len(env)-1, int(math.Ceil(60*frameRate/minBPM)))

	res, err := stats.NewAutoCorrelation(maxLag).Compute(centred)
	if err != nil {
		return priorBPM
	}
	best, bestBPM := 0.0, priorBPM
	for lag := minLag; lag <= maxLag && lag < len(res.Correlations); lag++ {
		bpm := 60 * frameRate / float64(lag)
		if bpm < minBPM || bpm > maxBPM {
			continue
		}
		z := (math.Log2(bpm) - math.Log2(priorBPM)) / priorStd
		if w := res.Correlations[lag] * math.Exp(-0.5*z*z); w > best {
			best, bestBPM = w, bpm
		}
	}
	return bestBPM
}

// Interval is a half-open range of frame indices.
type Interval struct {
	Start, End int
}

// SplitRMS returns the runs of frames whose RMS is within topDB of the
// loudest frame. All-silent input yields no intervals.
func SplitRMS(rms []float64, topDB float64) []Interval {
	peak := 0.0
	for _, v := range rms {
		peak = max(peak, v)
	}
	if peak <= 0 {
		return nil
	}
	var (
		out []Interval
		in  bool
	)
	for i, v := range rms {
		loud := v > 0 && 20*math.Log10(v/peak) > -topDB
		switch {
		case loud && !in:
			out = append(out, Interval{Start: i})
			in = true
		case !loud && in:
			out[len(out)-1].End = i
			in = false
		}
	}
	if in {
		out[len(out)-1].End = len(rms)
	}
	return out
}
