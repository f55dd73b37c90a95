// Command prosodia is the pronunciation-scoring server and one-shot CLI.
//
//	prosodia -config config.yaml                          serve HTTP
//	prosodia -config config.yaml -audio in.wav -text "…"  print one report
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/prosodia/internal/app"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/prosody"
	"github.com/MrWong99/prosodia/internal/report"
	"github.com/MrWong99/prosodia/internal/results"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/provider/stt/whisper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "analyse this WAV file once and print the report")
	text := flag.String("text", "", "reference text for -audio")
	summary := flag.Bool("summary", false, "with -audio, print the condensed results view")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "prosodia: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "prosodia: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	application, err := app.New(cfg, reg, app.WithMetricsHandler(tel.MetricsHandler))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer shutdown(application)

	if *audioPath != "" {
		return analyseOnce(ctx, application, *audioPath, *text, *summary)
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, next *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.Apply(next, d)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("prosodia starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"backends", reg.STTNames(),
		"prosody", cfg.Prosody.Engine,
		"preset", cfg.Scoring.Preset,
	)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("shutdown signal received, stopping")
	return 0
}

// analyseOnce runs one analysis and writes the JSON result to stdout.
func analyseOnce(ctx context.Context, a *app.App, path, text string, summary bool) int {
	wav, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prosodia: %v\n", err)
		return 1
	}
	rep, err := a.Analyzer().Analyze(ctx, wav, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prosodia: %v\n", err)
		return 1
	}

	var out []byte
	if summary {
		out, err = json.MarshalIndent(results.Process(rep), "", "  ")
	} else {
		out, err = report.Marshal(rep)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "prosodia: encode: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func shutdown(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltins wires the recognition backends and prosody engines that
// ship with prosodia into reg.
func registerBuiltins(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.BackendEntry, lang string) (stt.Provider, error) {
		opts := []whisper.Option{whisper.WithLanguage(lang)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if rms, ok := optFloat(entry.Options, "rms_threshold"); ok {
			opts = append(opts, whisper.WithRMSThreshold(rms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.BackendEntry, lang string) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		opts := []whisper.NativeOption{whisper.WithNativeLanguage(lang)}
		if rms, ok := optFloat(entry.Options, "rms_threshold"); ok {
			opts = append(opts, whisper.WithNativeRMSThreshold(rms))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterProsody(config.ProsodyNative, func(config.ProsodyConfig) (prosody.Engine, error) {
		return prosody.NewNativeEngine(), nil
	})
	reg.RegisterProsody(config.ProsodyPraat, func(c config.ProsodyConfig) (prosody.Engine, error) {
		return prosody.NewPraatEngine(c.PraatPath, c.TempDir), nil
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered recognizer backend", "name", name)
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a backend Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a number from a backend Options map. YAML decodes
// integers and floats into different types.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
