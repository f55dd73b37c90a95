package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/prosodia/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		extra       string
		wantLevel   bool
		wantScoring bool
		wantAlign   bool
		wantGOP     bool
		wantRestart []string
	}{
		{name: "identical"},
		{name: "log level", extra: "server:\n  log_level: debug\n", wantLevel: true},
		{name: "scoring preset", extra: "scoring:\n  preset: enhanced\n", wantScoring: true},
		{name: "issue penalty", extra: "scoring:\n  issue_penalty: 0.3\n", wantScoring: true},
		{name: "alignment priors", extra: "alignment:\n  priors:\n    correct: 0.5\n", wantAlign: true},
		{name: "classifier weight", extra: "gop:\n  classifier_weight: 0.2\n", wantGOP: true},
		{name: "listen address", extra: "server:\n  listen_addr: \":9999\"\n", wantRestart: []string{"server"}},
		{name: "prosody engine", extra: "prosody:\n  engine: none\n", wantRestart: []string{"prosody"}},
		{
			name:        "level and telemetry",
			extra:       "server:\n  log_level: warn\ntelemetry:\n  service_name: other\n",
			wantLevel:   true,
			wantRestart: []string{"telemetry"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := mustLoad(t, minimalYAML)
			next := mustLoad(t, minimalYAML+tc.extra)

			d := config.Diff(old, next)
			if d.LogLevelChanged != tc.wantLevel {
				t.Errorf("LogLevelChanged: got %v, want %v", d.LogLevelChanged, tc.wantLevel)
			}
			if tc.wantLevel && d.NewLogLevel != next.Server.LogLevel {
				t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, next.Server.LogLevel)
			}
			if d.ScoringChanged != tc.wantScoring {
				t.Errorf("ScoringChanged: got %v, want %v", d.ScoringChanged, tc.wantScoring)
			}
			if d.AlignmentChanged != tc.wantAlign {
				t.Errorf("AlignmentChanged: got %v, want %v", d.AlignmentChanged, tc.wantAlign)
			}
			if d.GOPChanged != tc.wantGOP {
				t.Errorf("GOPChanged: got %v, want %v", d.GOPChanged, tc.wantGOP)
			}
			if !slices.Equal(d.RestartRequired, tc.wantRestart) {
				t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, tc.wantRestart)
			}
			wantEmpty := !tc.wantLevel && !tc.wantScoring && !tc.wantAlign && !tc.wantGOP && len(tc.wantRestart) == 0
			if d.Empty() != wantEmpty {
				t.Errorf("Empty: got %v, want %v", d.Empty(), wantEmpty)
			}
		})
	}
}

func TestDiff_RecognizerBackends(t *testing.T) {
	t.Parallel()

	old := mustLoad(t, minimalYAML)
	next := mustLoad(t, "recognizer:\n  backends:\n    - name: whisper-native\n      model: other.bin\n")
	d := config.Diff(old, next)
	if !slices.Equal(d.RestartRequired, []string{"recognizer"}) {
		t.Errorf("RestartRequired: got %v", d.RestartRequired)
	}
}
