package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_DoesNotLoadEagerly(t *testing.T) {
	p, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	if p.State() != lazy.StateUninitialized {
		t.Fatalf("state = %v, want uninitialized before first use", p.State())
	}
}

func TestNativeLoad_InvalidPath_IsSticky(t *testing.T) {
	p, _ := whisper.NewNative("/nonexistent/path/to/model.bin")

	err := p.Load(context.Background())
	var le *lazy.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *lazy.LoadError", err)
	}
	if p.State() != lazy.StateFailed {
		t.Fatalf("state = %v, want failed", p.State())
	}
	if _, err := p.Transcribe(context.Background(), makeSpeechPCM(1600), mono16k); !errors.As(err, &le) {
		t.Fatalf("Transcribe err = %v, want the sticky load error", err)
	}
}

func TestNativeTranscribe_Silence(t *testing.T) {
	p, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	tr, err := p.Transcribe(context.Background(), make([]byte, 32000), mono16k)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "" {
		t.Errorf("Text = %q, want empty for silence", tr.Text)
	}
	if p.State() != lazy.StateReady {
		t.Errorf("state = %v, want ready after first call", p.State())
	}
}
