package app_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/prosodia/internal/app"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/scoring"
	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	sttmock "github.com/MrWong99/prosodia/pkg/provider/stt/mock"
	"github.com/MrWong99/prosodia/pkg/types"
)

const testYAML = `
recognizer:
  backends:
    - name: mock
g2p:
  strategies: [dictionary, characters]
prosody:
  engine: none
`

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

// closingSTT is a mock backend that records Close.
type closingSTT struct {
	sttmock.Provider
	closed bool
}

func (c *closingSTT) Close() error {
	c.closed = true
	return nil
}

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(testYAML + extra))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func testRegistry(p stt.Provider) *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(config.BackendEntry, string) (stt.Provider, error) { return p, nil })
	return reg
}

func newApp(t *testing.T, p stt.Provider) *app.App {
	t.Helper()
	a, err := app.New(testConfig(t, ""), testRegistry(p), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func toneWAV(seconds float64) []byte {
	n := int(seconds * 16000)
	s := make([]float64, n)
	for i := range s {
		s[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	return audio.EncodeWAV(audio.Float64ToPCM16(s), 16000, 1)
}

func TestNew_ProbesFollowModelState(t *testing.T) {
	t.Parallel()

	a := newApp(t, &sttmock.Provider{})
	h := a.Handler()

	probe := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}
	if code := probe("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}
	if code := probe("/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before warmup = %d, want 503", code)
	}
	a.Warmup(context.Background())
	if code := probe("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz after warmup = %d, want 200", code)
	}
}

func TestNew_FailedModelStaysUnready(t *testing.T) {
	t.Parallel()

	a := newApp(t, &sttmock.Provider{LoadErr: errors.New("no model file")})
	a.Warmup(context.Background())
	if a.Analyzer().Ready() {
		t.Error("analyzer ready after failed load")
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d, want 503", rec.Code)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		extra string
		want  error
	}{
		{"unregistered prosody engine", "prosody:\n  engine: praat\n", config.ErrNotRegistered},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(strings.Replace(testYAML, "prosody:\n  engine: none\n", "", 1) + tc.extra))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			_, err = app.New(cfg, testRegistry(&sttmock.Provider{}), app.WithMetrics(testMetrics(t)))
			if !errors.Is(err, tc.want) {
				t.Errorf("New error = %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("unregistered backend", func(t *testing.T) {
		t.Parallel()
		_, err := app.New(testConfig(t, ""), config.NewRegistry(), app.WithMetrics(testMetrics(t)))
		if !errors.Is(err, config.ErrNotRegistered) {
			t.Errorf("New error = %v, want ErrNotRegistered", err)
		}
	})
}

func TestApply(t *testing.T) {
	t.Parallel()

	a := newApp(t, &sttmock.Provider{})
	old := testConfig(t, "")
	next := testConfig(t, "scoring:\n  preset: enhanced\n  issue_penalty: 0.25\n")

	a.Apply(next, config.Diff(old, next))
	want := scoring.EnhancedThresholds()
	want.IssuePenalty = 0.25
	if got := a.Analyzer().Thresholds(); got != want {
		t.Errorf("thresholds not applied: got %+v", got)
	}

	// A diff without the scoring flag leaves thresholds alone.
	a.Apply(old, config.ConfigDiff{RestartRequired: []string{"server"}})
	if got := a.Analyzer().Thresholds(); got != want {
		t.Error("thresholds changed without a scoring diff")
	}
}

func TestServe_AnalyzeAndShutdown(t *testing.T) {
	t.Parallel()

	p := &closingSTT{Provider: sttmock.Provider{Transcript: types.Transcript{Text: "the cat sat"}}}
	a := newApp(t, p)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("audio", "in.wav")
	_, _ = fw.Write(toneWAV(1))
	_ = mw.WriteField("text", "the cat sat")
	_ = mw.Close()

	resp, err := http.Post("http://"+ln.Addr().String()+"/v1/analyze", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Analysis-ID") == "" {
		t.Error("missing X-Analysis-ID")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !p.closed {
		t.Error("recognizer backend was not closed")
	}
	// Second call is a no-op.
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
