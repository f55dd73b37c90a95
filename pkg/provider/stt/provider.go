// Package stt defines the Provider interface for batch Speech-to-Text
// backends.
//
// A provider wraps a transcription engine, such as a local whisper.cpp model
// or a whisper.cpp server, and turns one complete utterance of PCM audio into
// a [types.Transcript]. There is no streaming session: every call carries the
// whole utterance.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/prosodia/pkg/types"
)

// Analysis audio format. Providers assume it when a [Config] leaves the
// format unset.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// Config describes the audio format and recognition hints for one call.
type Config struct {
	// SampleRate of the PCM buffer in Hz.
	SampleRate int

	// Channels is the number of interleaved channels. Providers down-mix to
	// mono themselves.
	Channels int

	// Language is a BCP-47 tag such as "en". Empty selects the provider
	// default.
	Language string
}

// WithDefaults returns c with an unset sample rate or channel count replaced
// by the analysis format.
func (c Config) WithDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	return c
}

// Provider transcribes one utterance of 16-bit little-endian PCM. Audio
// without recognizable speech yields an empty Text and a nil error.
type Provider interface {
	Transcribe(ctx context.Context, pcm []byte, cfg Config) (types.Transcript, error)
}

// Loader is implemented by providers whose model must be loaded before the
// first call. Load is idempotent and a failed load is sticky.
type Loader interface {
	Load(ctx context.Context) error
}
