package recognizer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/recognizer"
	"github.com/MrWong99/prosodia/pkg/audio"
	sttmock "github.com/MrWong99/prosodia/pkg/provider/stt/mock"
	"github.com/MrWong99/prosodia/pkg/types"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("success is remembered", func(t *testing.T) {
		t.Parallel()
		p := &sttmock.Provider{}
		r := recognizer.New("mock", p, recognizer.WithMetrics(testMetrics(t)))
		if r.State() != lazy.StateUninitialized {
			t.Fatalf("state = %v before load", r.State())
		}
		for range 3 {
			if err := r.Load(context.Background()); err != nil {
				t.Fatalf("Load: %v", err)
			}
		}
		if p.LoadCalls != 1 {
			t.Errorf("provider loaded %d times, want 1", p.LoadCalls)
		}
		if !r.Ready() {
			t.Error("Ready() = false after successful load")
		}
	})

	t.Run("failure is typed and sticky", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("model file missing")
		p := &sttmock.Provider{LoadErr: cause}
		r := recognizer.New("whisper-native", p, recognizer.WithMetrics(testMetrics(t)))

		for range 2 {
			err := r.Load(context.Background())
			var mu *recognizer.ModelUnavailableError
			if !errors.As(err, &mu) {
				t.Fatalf("err = %v, want *ModelUnavailableError", err)
			}
			if mu.Backend != "whisper-native" {
				t.Errorf("Backend = %q", mu.Backend)
			}
			if !errors.Is(err, recognizer.ErrModelUnavailable) || !errors.Is(err, cause) {
				t.Errorf("err = %v does not match sentinel and cause", err)
			}
		}
		if p.LoadCalls != 1 {
			t.Errorf("provider loaded %d times, want 1", p.LoadCalls)
		}
		if r.State() != lazy.StateFailed {
			t.Errorf("state = %v, want failed", r.State())
		}
	})
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	clip48k := &audio.Clip{
		Format: audio.Format{SampleRate: 48000, Channels: 2},
		PCM:    make([]byte, 48000*4),
	}

	t.Run("normalises audio before recognition", func(t *testing.T) {
		t.Parallel()
		p := &sttmock.Provider{Transcript: types.Transcript{Text: "the cat sat"}}
		r := recognizer.New("mock", p, recognizer.WithMetrics(testMetrics(t)), recognizer.WithLanguage("en"))

		if got := r.Transcribe(context.Background(), clip48k); got != "the cat sat" {
			t.Fatalf("Transcribe = %q", got)
		}
		calls := p.Calls()
		if len(calls) != 1 {
			t.Fatalf("provider called %d times", len(calls))
		}
		c := calls[0]
		if c.Cfg.SampleRate != 16000 || c.Cfg.Channels != 1 || c.Cfg.Language != "en" {
			t.Errorf("cfg = %+v, want 16 kHz mono en", c.Cfg)
		}
		if len(c.PCM) != 16000*2 {
			t.Errorf("pcm = %d bytes, want one second of 16 kHz mono", len(c.PCM))
		}
	})

	t.Run("backend error degrades to empty", func(t *testing.T) {
		t.Parallel()
		p := &sttmock.Provider{TranscribeErr: errors.New("server gone")}
		r := recognizer.New("mock", p, recognizer.WithMetrics(testMetrics(t)))
		if got := r.Transcribe(context.Background(), clip48k); got != "" {
			t.Fatalf("Transcribe = %q, want empty", got)
		}
	})

	t.Run("load failure degrades to empty", func(t *testing.T) {
		t.Parallel()
		p := &sttmock.Provider{LoadErr: errors.New("missing"), Transcript: types.Transcript{Text: "unused"}}
		r := recognizer.New("mock", p, recognizer.WithMetrics(testMetrics(t)))
		if got := r.Transcribe(context.Background(), clip48k); got != "" {
			t.Fatalf("Transcribe = %q, want empty", got)
		}
		if len(p.Calls()) != 0 {
			t.Error("provider must not be called when the model is unavailable")
		}
	})
}
