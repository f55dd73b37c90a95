package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	sttmock "github.com/MrWong99/prosodia/pkg/provider/stt/mock"
	"github.com/MrWong99/prosodia/pkg/types"
)

var mono16k = stt.Config{SampleRate: 16000, Channels: 1}

func TestSTTFallback_Transcribe(t *testing.T) {
	tests := []struct {
		name          string
		primaryErr    error
		secondaryErr  error
		wantText      string
		wantSecondary int
		wantErr       bool
	}{
		{name: "primary answers", wantText: "native"},
		{name: "failover", primaryErr: errors.New("primary down"), wantText: "server", wantSecondary: 1},
		{name: "all fail", primaryErr: errors.New("primary down"), secondaryErr: errors.New("secondary down"), wantSecondary: 1, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			primary := &sttmock.Provider{Transcript: types.Transcript{Text: "native"}, TranscribeErr: tc.primaryErr}
			secondary := &sttmock.Provider{Transcript: types.Transcript{Text: "server"}, TranscribeErr: tc.secondaryErr}

			fb := NewSTTFallback(primary, "whisper-native", FallbackConfig{
				CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
			})
			fb.AddFallback("whisper", secondary)

			tr, err := fb.Transcribe(context.Background(), []byte{1, 2}, mono16k)
			if tc.wantErr {
				if !errors.Is(err, ErrAllFailed) {
					t.Fatalf("err = %v, want ErrAllFailed", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Text != tc.wantText {
				t.Errorf("Text = %q, want %q", tr.Text, tc.wantText)
			}
			if got := len(secondary.Calls()); got != tc.wantSecondary {
				t.Errorf("secondary called %d times, want %d", got, tc.wantSecondary)
			}
			if got := len(primary.Calls()); got != 1 {
				t.Errorf("primary called %d times, want 1", got)
			}
		})
	}
}

func TestSTTFallback_Load(t *testing.T) {
	loadErr := &lazy.LoadError{Name: "model", Err: errors.New("no such file")}

	t.Run("one usable backend is enough", func(t *testing.T) {
		fb := NewSTTFallback(&sttmock.Provider{LoadErr: loadErr}, "whisper-native", FallbackConfig{})
		fb.AddFallback("whisper", &sttmock.Provider{})
		if err := fb.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
	})

	t.Run("all failing joins errors", func(t *testing.T) {
		a := &sttmock.Provider{LoadErr: loadErr}
		b := &sttmock.Provider{LoadErr: errors.New("server gone")}
		fb := NewSTTFallback(a, "a", FallbackConfig{})
		fb.AddFallback("b", b)

		err := fb.Load(context.Background())
		var le *lazy.LoadError
		if !errors.As(err, &le) {
			t.Fatalf("err = %v, want a *lazy.LoadError in the chain", err)
		}
		if a.LoadCalls != 1 || b.LoadCalls != 1 {
			t.Errorf("load calls = %d/%d, want 1/1", a.LoadCalls, b.LoadCalls)
		}
	})
}

type closingProvider struct {
	sttmock.Provider
	closed int
	err    error
}

func (p *closingProvider) Close() error {
	p.closed++
	return p.err
}

func TestSTTFallback_Close(t *testing.T) {
	a := &closingProvider{}
	b := &closingProvider{err: errors.New("busy")}
	fb := NewSTTFallback(a, "a", FallbackConfig{})
	fb.AddFallback("plain", &sttmock.Provider{})
	fb.AddFallback("b", b)

	err := fb.Close()
	if err == nil || err.Error() != "b: busy" {
		t.Errorf("Close = %v, want b: busy", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("close calls = %d/%d, want 1/1", a.closed, b.closed)
	}
}

func TestSTTFallback_Available(t *testing.T) {
	down := errors.New("model crashed")
	fb := NewSTTFallback(&sttmock.Provider{TranscribeErr: down}, "whisper-native", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback("whisper", &sttmock.Provider{TranscribeErr: down})

	if err := fb.Available(); err != nil {
		t.Fatalf("fresh chain: Available = %v", err)
	}
	if _, err := fb.Transcribe(context.Background(), []byte{1, 2}, mono16k); err == nil {
		t.Fatal("expected transcription error")
	}
	if err := fb.Available(); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("Available = %v, want ErrNoBackend", err)
	}
}
