// Package audio holds the PCM helpers shared by the recognizer and the feature
// extractors: WAV decoding and encoding, down-mixing, resampling and
// int16/float conversion. All functions operate on 16-bit little-endian PCM.
package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form, e.g. "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// AnalysisFormat is the format every analysis stage expects.
var AnalysisFormat = Format{SampleRate: 16000, Channels: 1}

// Normalize converts clip to the target format. Multi-channel audio is
// down-mixed first so that only one channel is resampled. If the clip already
// matches the target it is returned unchanged.
func Normalize(clip *Clip, target Format) *Clip {
	if clip.SampleRate == target.SampleRate && clip.Channels == target.Channels {
		return clip
	}
	slog.Debug("audio format mismatch: converting",
		"from", clip.Format.String(),
		"to", target.String(),
	)

	pcm := clip.PCM
	channels := clip.Channels

	if channels != target.Channels {
		switch {
		case channels == 2 && target.Channels == 1:
			pcm = StereoToMono(pcm)
		case channels > 2 && target.Channels == 1:
			pcm = Float64ToPCM16(PCMToFloat64Mono(pcm, channels))
		case channels == 1 && target.Channels == 2:
			pcm = MonoToStereo(pcm)
		}
		channels = target.Channels
	}

	if clip.SampleRate != target.SampleRate && channels == 1 {
		pcm = ResampleMono16(pcm, clip.SampleRate, target.SampleRate)
	}

	return &Clip{Format: Format{SampleRate: target.SampleRate, Channels: channels}, PCM: pcm}
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// PCMToFloat32 converts 16-bit PCM to float32 samples in [-1.0, 1.0). A
// trailing odd byte is ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// PCMToFloat64Mono down-mixes multi-channel 16-bit PCM to mono float64 by
// averaging all channels per frame.
func PCMToFloat64Mono(pcm []byte, channels int) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float64(sample) / 32768.0
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Float64ToPCM16 converts samples in [-1, 1] back to 16-bit PCM, clipping
// values outside the range.
func Float64ToPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768.0)
		v = max(-32768, min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
