package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/prosodia/internal/align"
	"github.com/MrWong99/prosodia/internal/g2p"
	"github.com/MrWong99/prosodia/internal/gop"
	"github.com/MrWong99/prosodia/internal/scoring"
)

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":8080"
	DefaultMaxUploadBytes = 10 << 20
	DefaultLanguage       = "en"
	DefaultPraatPath      = "praat"
	DefaultServiceName    = "prosodia"
)

// ValidBackendNames lists the recognition backends shipped with prosodia.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = []string{"whisper", "whisper-native"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.RateLimit > 0 && s.RateBurst == 0 {
		s.RateBurst = max(1, int(s.RateLimit))
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if cfg.Recognizer.Language == "" {
		cfg.Recognizer.Language = DefaultLanguage
	}
	if len(cfg.G2P.Strategies) == 0 {
		cfg.G2P.Strategies = slices.Clone(g2p.DefaultStrategies)
	}
	if cfg.Prosody.Engine == "" {
		cfg.Prosody.Engine = ProsodyNative
	}
	if cfg.Prosody.PraatPath == "" {
		cfg.Prosody.PraatPath = DefaultPraatPath
	}
	if cfg.Alignment.MaxCells == 0 {
		cfg.Alignment.MaxCells = align.DefaultMaxCells
	}
	if cfg.Alignment.Priors == nil {
		p := align.DefaultPriors()
		cfg.Alignment.Priors = &p
	}
	if cfg.GOP.ClassifierWeight == nil {
		w := gop.DefaultClassifierWeight
		cfg.GOP.ClassifierWeight = &w
	}
	if cfg.Scoring.Preset == "" {
		cfg.Scoring.Preset = scoring.PresetBasic
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	s := cfg.Server
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", s.LogLevel))
	}
	if s.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit %.2f must not be negative", s.RateLimit))
	}
	if s.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("server.rate_burst %d must not be negative", s.RateBurst))
	}
	if s.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", s.MaxUploadBytes))
	}

	// Recognizer
	if len(cfg.Recognizer.Backends) == 0 {
		errs = append(errs, errors.New("recognizer.backends: at least one backend is required"))
	}
	for i, b := range cfg.Recognizer.Backends {
		prefix := fmt.Sprintf("recognizer.backends[%d]", i)
		switch b.Name {
		case "":
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		case "whisper":
			if b.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s.base_url is required for the whisper backend", prefix))
			} else if _, err := url.ParseRequestURI(b.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("%s.base_url %q is not a valid URL", prefix, b.BaseURL))
			}
		case "whisper-native":
			if b.Model == "" {
				errs = append(errs, fmt.Errorf("%s.model is required for the whisper-native backend", prefix))
			}
		default:
			slog.Warn("unknown recognizer backend; it must be registered before start",
				"name", b.Name,
				"known", ValidBackendNames,
			)
		}
	}

	// G2P
	for i, name := range cfg.G2P.Strategies {
		if !slices.Contains(g2p.DefaultStrategies, name) {
			errs = append(errs, fmt.Errorf("g2p.strategies[%d] %q is invalid; valid values: %v", i, name, g2p.DefaultStrategies))
		}
	}

	// Prosody
	switch cfg.Prosody.Engine {
	case "", ProsodyNone, ProsodyNative, ProsodyPraat:
	default:
		errs = append(errs, fmt.Errorf("prosody.engine %q is invalid; valid values: native, praat, none", cfg.Prosody.Engine))
	}

	// Alignment
	if cfg.Alignment.MaxCells < 0 {
		errs = append(errs, fmt.Errorf("alignment.max_cells %d must not be negative", cfg.Alignment.MaxCells))
	}
	if p := cfg.Alignment.Priors; p != nil {
		for name, v := range map[string]float64{
			"correct":      p.Correct,
			"substitution": p.Substitution,
			"deletion":     p.Deletion,
			"insertion":    p.Insertion,
		} {
			if v < 0 || v > 1 {
				errs = append(errs, fmt.Errorf("alignment.priors.%s %.2f is out of range [0, 1]", name, v))
			}
		}
	}

	// GOP
	if w := cfg.GOP.ClassifierWeight; w != nil && (*w < 0 || *w > 1) {
		errs = append(errs, fmt.Errorf("gop.classifier_weight %.2f is out of range [0, 1]", *w))
	}
	if u := cfg.GOP.ClassifierURL; u != "" {
		if _, err := url.ParseRequestURI(u); err != nil {
			errs = append(errs, fmt.Errorf("gop.classifier_url %q is not a valid URL", u))
		}
	}

	// Scoring
	if _, err := scoring.Preset(cfg.Scoring.Preset); err != nil {
		errs = append(errs, fmt.Errorf("scoring.preset %q is invalid; valid values: basic, enhanced", cfg.Scoring.Preset))
	}
	if cfg.Scoring.IssuePenalty < 0 {
		errs = append(errs, fmt.Errorf("scoring.issue_penalty %.2f must not be negative", cfg.Scoring.IssuePenalty))
	}

	return errors.Join(errs...)
}

// Thresholds returns the scoring thresholds selected by the preset, with the
// issue penalty override applied.
func (s ScoringConfig) Thresholds() (scoring.Thresholds, error) {
	th, err := scoring.Preset(s.Preset)
	if err != nil {
		return th, err
	}
	if s.IssuePenalty > 0 {
		th.IssuePenalty = s.IssuePenalty
	}
	return th, nil
}

// Aligner builds the aligner described by a.
func (a AlignmentConfig) Aligner() *align.Aligner {
	opts := []align.Option{align.WithMaxCells(a.MaxCells)}
	if a.Priors != nil {
		opts = append(opts, align.WithPriors(*a.Priors))
	}
	return align.New(opts...)
}

// Weight returns the classifier weight, or the default when unset.
func (g GOPConfig) Weight() float64 {
	if g.ClassifierWeight == nil {
		return gop.DefaultClassifierWeight
	}
	return *g.ClassifierWeight
}
