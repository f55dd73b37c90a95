// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Compile-time assertions.
var (
	_ stt.Provider = (*NativeProvider)(nil)
	_ stt.Loader   = (*NativeProvider)(nil)
	_ io.Closer    = (*NativeProvider)(nil)
)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model file is read on the first Load or Transcribe call and then
// shared read-only across all calls.
type NativeProvider struct {
	modelPath    string
	language     string
	rmsThreshold float64
	model        *lazy.Value[whisperlib.Model]
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeRMSThreshold overrides the silence gate. Zero disables it.
func WithNativeRMSThreshold(rms float64) NativeOption {
	return func(p *NativeProvider) { p.rmsThreshold = rms }
}

// NewNative creates a NativeProvider for the whisper.cpp model at modelPath.
// The model is not read until Load or the first Transcribe. The caller must
// call Close when the provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}

	p := &NativeProvider{
		modelPath:    modelPath,
		language:     defaultLanguage,
		rmsThreshold: defaultRMSThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	p.model = lazy.New("whisper model "+modelPath, func(context.Context) (whisperlib.Model, error) {
		m, err := whisperlib.New(modelPath)
		if err != nil {
			return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
		}
		return m, nil
	})
	return p, nil
}

// Load reads the model file if it has not been read yet. A failed load is
// remembered and returned on every later call.
func (p *NativeProvider) Load(ctx context.Context) error {
	_, err := p.model.Get(ctx)
	return err
}

// State reports the model's lifecycle state.
func (p *NativeProvider) State() lazy.State { return p.model.State() }

// Close releases the whisper model if it was loaded.
func (p *NativeProvider) Close() error {
	if p.model.State() != lazy.StateReady {
		return nil
	}
	m, err := p.model.Get(context.Background())
	if err != nil || m == nil {
		return nil
	}
	p.model.Reset()
	return m.Close()
}

// Transcribe runs whisper.cpp inference on pcm using a fresh context created
// from the shared model.
func (p *NativeProvider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	model, err := p.model.Get(ctx)
	if err != nil {
		return types.Transcript{}, err
	}

	cfg = cfg.WithDefaults()
	sr, ch := cfg.SampleRate, cfg.Channels
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	tr := types.Transcript{Language: lang, Duration: pcmDuration(pcm, sr, ch)}

	if p.rmsThreshold > 0 && computeRMS(pcm) < p.rmsThreshold {
		return tr, nil
	}

	// whisper.cpp expects 16 kHz mono float32.
	clip := audio.Normalize(&audio.Clip{Format: audio.Format{SampleRate: sr, Channels: ch}, PCM: pcm}, audio.AnalysisFormat)
	samples := audio.PCMToFloat32(clip.PCM)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	tr.Text = strings.Join(parts, " ")
	return tr, nil
}
