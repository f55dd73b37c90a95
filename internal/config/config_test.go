package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/prosodia/internal/align"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/g2p"
	"github.com/MrWong99/prosodia/internal/gop"
	"github.com/MrWong99/prosodia/internal/prosody"
	"github.com/MrWong99/prosodia/internal/scoring"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/types"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  rate_limit: 2.5
  max_upload_bytes: 2048

recognizer:
  language: en
  backends:
    - name: whisper-native
      model: /models/ggml-base.en.bin
    - name: whisper
      base_url: http://localhost:8081
      model: base.en

g2p:
  dictionary_path: /data/cmudict.dict
  strategies: [dictionary, characters]

prosody:
  engine: praat
  praat_path: /usr/bin/praat

alignment:
  max_cells: 1000
  priors:
    correct: 0.9
    substitution: 0.25
    deletion: 0.1
    insertion: 0.35

gop:
  classifier_url: http://localhost:9000
  classifier_weight: 0.5

scoring:
  preset: enhanced
  issue_penalty: 0.25

telemetry:
  service_name: prosodia-test
`

const minimalYAML = `
recognizer:
  backends:
    - name: whisper-native
      model: model.bin
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Server.RateBurst != 2 {
		t.Errorf("rate_burst default: got %d, want 2", cfg.Server.RateBurst)
	}
	if cfg.Server.MaxUploadBytes != 2048 {
		t.Errorf("max_upload_bytes: got %d", cfg.Server.MaxUploadBytes)
	}
	if len(cfg.Recognizer.Backends) != 2 {
		t.Fatalf("backends: got %d, want 2", len(cfg.Recognizer.Backends))
	}
	if b := cfg.Recognizer.Backends[1]; b.Name != "whisper" || b.BaseURL != "http://localhost:8081" || b.Model != "base.en" {
		t.Errorf("second backend: got %+v", b)
	}
	if want := []string{g2p.StrategyDictionary, g2p.StrategyCharacters}; !slices.Equal(cfg.G2P.Strategies, want) {
		t.Errorf("strategies: got %v, want %v", cfg.G2P.Strategies, want)
	}
	if cfg.Prosody.Engine != config.ProsodyPraat || cfg.Prosody.PraatPath != "/usr/bin/praat" {
		t.Errorf("prosody: got %+v", cfg.Prosody)
	}
	if cfg.Alignment.MaxCells != 1000 {
		t.Errorf("max_cells: got %d", cfg.Alignment.MaxCells)
	}
	if want := (align.Priors{Correct: 0.9, Substitution: 0.25, Deletion: 0.1, Insertion: 0.35}); *cfg.Alignment.Priors != want {
		t.Errorf("priors: got %+v, want %+v", *cfg.Alignment.Priors, want)
	}
	if cfg.GOP.Weight() != 0.5 {
		t.Errorf("classifier weight: got %v", cfg.GOP.Weight())
	}
	if cfg.Telemetry.ServiceName != "prosodia-test" {
		t.Errorf("service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Server.RateLimit != 0 || cfg.Server.RateBurst != 0 {
		t.Errorf("rate limiting should be off by default: %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadBytes != config.DefaultMaxUploadBytes {
		t.Errorf("max_upload_bytes: got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Recognizer.Language != config.DefaultLanguage {
		t.Errorf("language: got %q", cfg.Recognizer.Language)
	}
	if !slices.Equal(cfg.G2P.Strategies, g2p.DefaultStrategies) {
		t.Errorf("strategies: got %v", cfg.G2P.Strategies)
	}
	if cfg.Prosody.Engine != config.ProsodyNative {
		t.Errorf("prosody engine: got %q", cfg.Prosody.Engine)
	}
	if cfg.Alignment.MaxCells != align.DefaultMaxCells {
		t.Errorf("max_cells: got %d", cfg.Alignment.MaxCells)
	}
	if cfg.Alignment.Priors == nil || *cfg.Alignment.Priors != align.DefaultPriors() {
		t.Errorf("priors: got %+v", cfg.Alignment.Priors)
	}
	if cfg.GOP.Weight() != gop.DefaultClassifierWeight {
		t.Errorf("classifier weight: got %v", cfg.GOP.Weight())
	}
	if cfg.Scoring.Preset != scoring.PresetBasic {
		t.Errorf("preset: got %q", cfg.Scoring.Preset)
	}
}

func TestLoadFromReader_DefaultStrategiesNotShared(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.G2P.Strategies[0] = "mutated"
	if g2p.DefaultStrategies[0] == "mutated" {
		t.Error("ApplyDefaults must copy the default strategy list")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(minimalYAML + "unexpected: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_EmptyDocumentNeedsBackend(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "at least one backend") {
		t.Fatalf("got %v, want missing backend error", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prosodia.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scoring.Preset != scoring.PresetEnhanced {
		t.Errorf("preset: got %q", cfg.Scoring.Preset)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v, want ErrNotExist", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if len(cfg.Recognizer.Backends) != 2 {
		t.Errorf("backends: got %d, want 2", len(cfg.Recognizer.Backends))
	}
	if !slices.Equal(cfg.G2P.Strategies, g2p.DefaultStrategies) {
		t.Errorf("strategies: got %v", cfg.G2P.Strategies)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    minimalYAML + "server:\n  log_level: loud\n",
			wantErr: "server.log_level",
		},
		{
			name:    "negative rate",
			yaml:    minimalYAML + "server:\n  rate_limit: -1\n",
			wantErr: "server.rate_limit",
		},
		{
			name:    "whisper without url",
			yaml:    "recognizer:\n  backends:\n    - name: whisper\n",
			wantErr: "base_url is required",
		},
		{
			name:    "whisper with bad url",
			yaml:    "recognizer:\n  backends:\n    - name: whisper\n      base_url: not a url\n",
			wantErr: "not a valid URL",
		},
		{
			name:    "native without model",
			yaml:    "recognizer:\n  backends:\n    - name: whisper-native\n",
			wantErr: "model is required",
		},
		{
			name:    "unnamed backend",
			yaml:    "recognizer:\n  backends:\n    - model: x\n",
			wantErr: "name is required",
		},
		{
			name:    "unknown strategy",
			yaml:    minimalYAML + "g2p:\n  strategies: [dictionary, neural]\n",
			wantErr: "g2p.strategies[1]",
		},
		{
			name:    "unknown prosody engine",
			yaml:    minimalYAML + "prosody:\n  engine: opensmile\n",
			wantErr: "prosody.engine",
		},
		{
			name:    "prior out of range",
			yaml:    minimalYAML + "alignment:\n  priors:\n    correct: 1.5\n",
			wantErr: "alignment.priors.correct",
		},
		{
			name:    "weight out of range",
			yaml:    minimalYAML + "gop:\n  classifier_weight: 2\n",
			wantErr: "gop.classifier_weight",
		},
		{
			name:    "unknown preset",
			yaml:    minimalYAML + "scoring:\n  preset: strict\n",
			wantErr: "scoring.preset",
		},
		{
			name:    "negative penalty",
			yaml:    minimalYAML + "scoring:\n  issue_penalty: -0.5\n",
			wantErr: "scoring.issue_penalty",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: "loud"},
		Scoring: config.ScoringConfig{Preset: "strict"},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "recognizer.backends", "scoring.preset"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_UnknownBackendOnlyWarns(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("recognizer:\n  backends:\n    - name: custom\n"))
	if err != nil {
		t.Fatalf("unknown backend should not fail validation: %v", err)
	}
}

func TestScoringConfig_Thresholds(t *testing.T) {
	t.Parallel()

	th, err := config.ScoringConfig{Preset: scoring.PresetEnhanced}.Thresholds()
	if err != nil {
		t.Fatalf("Thresholds: %v", err)
	}
	if th != scoring.EnhancedThresholds() {
		t.Error("enhanced preset without override should equal EnhancedThresholds()")
	}

	th, err = config.ScoringConfig{Preset: scoring.PresetBasic, IssuePenalty: 0.4}.Thresholds()
	if err != nil {
		t.Fatalf("Thresholds: %v", err)
	}
	if th.IssuePenalty != 0.4 {
		t.Errorf("IssuePenalty: got %v, want 0.4", th.IssuePenalty)
	}

	if _, err := (config.ScoringConfig{Preset: "strict"}).Thresholds(); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestAlignmentConfig_Aligner(t *testing.T) {
	t.Parallel()

	p := align.Priors{Correct: 0.8, Substitution: 0.1, Deletion: 0.1, Insertion: 0.1}
	a := config.AlignmentConfig{MaxCells: 100, Priors: &p}.Aligner()
	segs := a.Align([]string{"K", "AE", "T"}, []string{"K", "AE", "T"})
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, s := range segs {
		if s.Error != types.ErrorCorrect || s.Confidence != 0.8 {
			t.Errorf("segment %d: got %+v", i, s)
		}
	}
}

func TestGOPConfig_Weight(t *testing.T) {
	t.Parallel()

	if got := (config.GOPConfig{}).Weight(); got != gop.DefaultClassifierWeight {
		t.Errorf("unset weight: got %v", got)
	}
	w := 0.0
	if got := (config.GOPConfig{ClassifierWeight: &w}).Weight(); got != 0 {
		t.Errorf("explicit zero weight: got %v", got)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

type stubSTT struct{ language string }

func (stubSTT) Transcribe(context.Context, []byte, stt.Config) (types.Transcript, error) {
	return types.Transcript{}, nil
}

func TestRegistry_STT(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSTT("stub", func(e config.BackendEntry, lang string) (stt.Provider, error) {
		return stubSTT{language: lang}, nil
	})
	reg.RegisterSTT("broken", func(config.BackendEntry, string) (stt.Provider, error) {
		return nil, errors.New("no model")
	})

	p, err := reg.CreateSTT(config.BackendEntry{Name: "stub"}, "de")
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if s, ok := p.(stubSTT); !ok || s.language != "de" {
		t.Errorf("got %#v", p)
	}

	if _, err := reg.CreateSTT(config.BackendEntry{Name: "broken"}, "en"); err == nil || errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("factory error should pass through, got %v", err)
	}
	if _, err := reg.CreateSTT(config.BackendEntry{Name: "missing"}, "en"); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("got %v, want ErrNotRegistered", err)
	}
	if got := reg.STTNames(); !slices.Equal(got, []string{"broken", "stub"}) {
		t.Errorf("STTNames: got %v", got)
	}
}

func TestRegistry_Prosody(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterProsody(config.ProsodyNative, func(config.ProsodyConfig) (prosody.Engine, error) {
		return prosody.NewNativeEngine(), nil
	})

	for _, name := range []string{"", config.ProsodyNone} {
		e, err := reg.CreateProsody(config.ProsodyConfig{Engine: name})
		if err != nil || e != nil {
			t.Errorf("engine %q: got (%v, %v), want (nil, nil)", name, e, err)
		}
	}
	e, err := reg.CreateProsody(config.ProsodyConfig{Engine: config.ProsodyNative})
	if err != nil || e == nil || e.Name() != "native" {
		t.Errorf("native: got (%v, %v)", e, err)
	}
	if _, err := reg.CreateProsody(config.ProsodyConfig{Engine: config.ProsodyPraat}); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("unregistered praat: got %v", err)
	}
	if got := reg.ProsodyNames(); !slices.Equal(got, []string{config.ProsodyNative}) {
		t.Errorf("ProsodyNames: got %v", got)
	}
}
