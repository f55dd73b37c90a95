// Package config provides the configuration schema, loader, hot-reload
// watcher and backend registry for the prosodia server.
package config

import (
	"github.com/MrWong99/prosodia/internal/align"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Prosody engine names.
const (
	ProsodyNone   = "none"
	ProsodyNative = "native"
	ProsodyPraat  = "praat"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	G2P        G2PConfig        `yaml:"g2p"`
	Prosody    ProsodyConfig    `yaml:"prosody"`
	Alignment  AlignmentConfig  `yaml:"alignment"`
	GOP        GOPConfig        `yaml:"gop"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network, logging and request-limit settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// RateLimit is the sustained number of analyses per second. 0 disables
	// rate limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the number of analyses allowed in a burst.
	RateBurst int `yaml:"rate_burst"`

	// MaxUploadBytes caps the multipart request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// RecognizerConfig selects the speech recognition backends.
type RecognizerConfig struct {
	// Language is the recognition language code.
	Language string `yaml:"language"`

	// Backends are tried in order; later entries are fallbacks.
	Backends []BackendEntry `yaml:"backends"`
}

// BackendEntry configures one recognition backend. Name selects the factory
// in the [Registry].
type BackendEntry struct {
	// Name selects the registered backend ("whisper-native" or "whisper").
	Name string `yaml:"name"`

	// Model is the model file for in-process backends, or the model name sent
	// to a server backend.
	Model string `yaml:"model"`

	// BaseURL is the server address for HTTP backends.
	BaseURL string `yaml:"base_url"`

	// Options holds backend-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// G2PConfig configures grapheme-to-phoneme resolution.
type G2PConfig struct {
	// DictionaryPath optionally points at a full CMU-format dictionary. The
	// bundled core lexicon is used when empty or unreadable.
	DictionaryPath string `yaml:"dictionary_path"`

	// Strategies is the resolution order.
	Strategies []string `yaml:"strategies"`
}

// ProsodyConfig selects the prosody engine.
type ProsodyConfig struct {
	// Engine is "native", "praat" or "none".
	Engine string `yaml:"engine"`

	// TempDir holds per-call WAV files. Empty uses the system default.
	TempDir string `yaml:"temp_dir"`

	// PraatPath is the Praat binary used by the "praat" engine.
	PraatPath string `yaml:"praat_path"`
}

// AlignmentConfig tunes the phoneme aligner. Hot-reloadable.
type AlignmentConfig struct {
	// MaxCells bounds the edit-distance matrix before the positional
	// fallback is used.
	MaxCells int `yaml:"max_cells"`

	// Priors are the per-category segment confidences.
	Priors *align.Priors `yaml:"priors"`
}

// GOPConfig configures goodness-of-pronunciation scoring. Hot-reloadable.
type GOPConfig struct {
	// ClassifierURL is an optional external posterior service.
	ClassifierURL string `yaml:"classifier_url"`

	// ClassifierWeight blends classifier posteriors into the base scores.
	// Nil selects the default.
	ClassifierWeight *float64 `yaml:"classifier_weight"`
}

// ScoringConfig selects the scoring thresholds. Hot-reloadable.
type ScoringConfig struct {
	// Preset is "basic" or "enhanced".
	Preset string `yaml:"preset"`

	// IssuePenalty is subtracted per stress or intonation issue. 0 keeps the
	// preset value.
	IssuePenalty float64 `yaml:"issue_penalty"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}
