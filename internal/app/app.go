// Package app wires the prosodia subsystems into a running service.
//
// The App owns the full lifecycle: New builds the recognizer, G2P resolver,
// extractors, scorers and HTTP server from the config; Run serves until the
// context is cancelled; Shutdown drains the server and releases models.
//
// For tests, inject doubles via functional options (WithRecognizer,
// WithPhonemizer, ...). Anything not injected is created from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/prosodia/internal/analyzer"
	"github.com/MrWong99/prosodia/internal/config"
	"github.com/MrWong99/prosodia/internal/g2p"
	"github.com/MrWong99/prosodia/internal/gop"
	"github.com/MrWong99/prosodia/internal/health"
	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/prosody"
	"github.com/MrWong99/prosodia/internal/recognizer"
	"github.com/MrWong99/prosodia/internal/resilience"
	"github.com/MrWong99/prosodia/internal/server"
)

// Recognizer is the recognition front end the app needs: the analyzer's view
// plus a load state for the readiness probe.
type Recognizer interface {
	analyzer.Recognizer
	State() lazy.State
}

// Compile-time interface assertion.
var _ Recognizer = (*recognizer.Recognizer)(nil)

// g2pBreaker trips a failing G2P strategy after a few errors and probes it
// again after a short pause.
var g2pBreaker = resilience.CircuitBreakerConfig{
	MaxFailures:  3,
	ResetTimeout: 30 * time.Second,
	HalfOpenMax:  1,
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	reg *config.Registry

	rec        Recognizer
	backends   *resilience.STTFallback
	phonemizer g2p.Phonemizer
	resolver   *g2p.Resolver
	prosody    *prosody.Extractor
	analyzer   *analyzer.Analyzer
	server     *server.Server
	metrics    *observe.Metrics
	metricsH   http.Handler
	classifier gop.Classifier
	httpSrv    *http.Server

	// closers run in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithRecognizer injects a recognizer instead of building one from the
// configured backends.
func WithRecognizer(r Recognizer) Option {
	return func(a *App) { a.rec = r }
}

// WithPhonemizer overrides the phonemizer behind the "rules" G2P strategy.
func WithPhonemizer(p g2p.Phonemizer) Option {
	return func(a *App) { a.phonemizer = p }
}

// WithClassifier overrides the GOP classifier built from gop.classifier_url.
func WithClassifier(c gop.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithMetrics overrides the metrics sink for every subsystem.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New builds an App from cfg. Backend and engine names are resolved through
// reg. Models are not loaded here; see [App.Warmup].
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Recognizer ────────────────────────────────────────────────────
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}

	// ── 2. G2P ───────────────────────────────────────────────────────────
	if err := a.initG2P(); err != nil {
		return nil, fmt.Errorf("app: init g2p: %w", err)
	}

	// ── 3. Prosody ───────────────────────────────────────────────────────
	if err := a.initProsody(); err != nil {
		return nil, fmt.Errorf("app: init prosody: %w", err)
	}

	// ── 4. Analyzer ──────────────────────────────────────────────────────
	th, err := cfg.Scoring.Thresholds()
	if err != nil {
		return nil, fmt.Errorf("app: scoring: %w", err)
	}
	a.analyzer = analyzer.New(a.rec, a.resolver,
		analyzer.WithProsody(a.prosody),
		analyzer.WithAligner(cfg.Alignment.Aligner()),
		analyzer.WithGOP(a.buildGOP(cfg.GOP)),
		analyzer.WithThresholds(th),
		analyzer.WithMetrics(a.metrics),
	)

	// ── 5. HTTP server ───────────────────────────────────────────────────
	a.server = server.New(a.analyzer,
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithHealth(health.New(a.checkers()...)),
		server.WithMetricsHandler(a.metricsH),
		server.WithMetrics(a.metrics),
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// checkers lists the readiness probes. Backend availability is only known
// for chains built from config.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{health.StateCheck("recognizer", a.rec.State)}
	if a.backends != nil {
		cs = append(cs, health.Checker{
			Name:  "recognizer_backends",
			Check: func(context.Context) error { return a.backends.Available() },
		})
	}
	return cs
}

func (a *App) recordBreaker(prefix string) func(string, resilience.State, resilience.State) {
	return func(name string, _, to resilience.State) {
		a.metrics.RecordBreakerTransition(context.Background(), prefix+name, to.String())
	}
}

// initRecognizer creates every configured backend and chains them behind a
// single recognizer. The first backend is the primary.
func (a *App) initRecognizer() error {
	if a.rec != nil {
		return nil
	}
	backends := a.cfg.Recognizer.Backends
	if len(backends) == 0 {
		return errors.New("no recognizer backends configured")
	}

	var chain *resilience.STTFallback
	for _, b := range backends {
		p, err := a.reg.CreateSTT(b, a.cfg.Recognizer.Language)
		if err != nil {
			return fmt.Errorf("backend %q: %w", b.Name, err)
		}
		if chain == nil {
			chain = resilience.NewSTTFallback(p, b.Name, resilience.FallbackConfig{
				CircuitBreaker: resilience.CircuitBreakerConfig{
					OnStateChange: a.recordBreaker("recognizer/"),
				},
			})
		} else {
			chain.AddFallback(b.Name, p)
		}
		slog.Info("recognizer backend created", "name", b.Name, "model", b.Model)
	}

	rec := recognizer.New(backends[0].Name, chain,
		recognizer.WithLanguage(a.cfg.Recognizer.Language),
		recognizer.WithMetrics(a.metrics),
	)
	a.rec = rec
	a.backends = chain
	a.closers = append(a.closers, rec.Close)
	return nil
}

func (a *App) initG2P() error {
	strategies, err := g2p.FromNames(a.cfg.G2P.Strategies, a.cfg.G2P.DictionaryPath, a.phonemizer)
	if err != nil {
		return err
	}
	a.resolver, err = g2p.New(strategies,
		g2p.WithMetrics(a.metrics),
		g2p.WithBreaker(g2pBreaker),
	)
	return err
}

func (a *App) initProsody() error {
	engine, err := a.reg.CreateProsody(a.cfg.Prosody)
	if err != nil {
		return err
	}
	if c, ok := engine.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.prosody = prosody.NewExtractor(engine,
		prosody.WithTempDir(a.cfg.Prosody.TempDir),
		prosody.WithMetrics(a.metrics),
	)
	return nil
}

// buildGOP creates a scorer for cfg. An injected classifier wins over the
// configured URL.
func (a *App) buildGOP(cfg config.GOPConfig) *gop.Scorer {
	opts := []gop.Option{
		gop.WithClassifierWeight(cfg.Weight()),
		gop.WithMetrics(a.metrics),
	}
	switch {
	case a.classifier != nil:
		opts = append(opts, gop.WithClassifier(a.classifier))
	case cfg.ClassifierURL != "":
		opts = append(opts, gop.WithClassifier(gop.NewHTTPClassifier(cfg.ClassifierURL)))
	}
	return gop.New(opts...)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Analyzer returns the analysis pipeline.
func (a *App) Analyzer() *analyzer.Analyzer { return a.analyzer }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// ─── Hot reload ──────────────────────────────────────────────────────────────

// Apply pushes the hot-reloadable sections of cfg into the running
// analyzer. Sections listed in d.RestartRequired are only logged.
func (a *App) Apply(cfg *config.Config, d config.ConfigDiff) {
	if d.ScoringChanged {
		th, err := cfg.Scoring.Thresholds()
		if err != nil {
			slog.Warn("app: ignoring scoring change", "err", err)
		} else {
			a.analyzer.SetThresholds(th)
			slog.Info("app: scoring thresholds updated", "preset", cfg.Scoring.Preset)
		}
	}
	if d.AlignmentChanged {
		a.analyzer.SetAligner(cfg.Alignment.Aligner())
		slog.Info("app: aligner updated", "max_cells", cfg.Alignment.MaxCells)
	}
	if d.GOPChanged {
		a.analyzer.SetGOP(a.buildGOP(cfg.GOP))
		slog.Info("app: gop scorer updated", "classifier", cfg.GOP.ClassifierURL != "")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Warmup loads the recognition model. A failure is logged; the service keeps
// running and reports not ready.
func (a *App) Warmup(ctx context.Context) {
	start := time.Now()
	if err := a.rec.Load(ctx); err != nil {
		slog.Error("app: recognition model unavailable", "err", err)
		return
	}
	slog.Info("app: recognition model loaded", "took", time.Since(start))
}

// Run serves HTTP on the configured address until ctx is cancelled. The model
// is loaded in the background so the probes answer immediately.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.httpSrv = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go a.Warmup(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- a.httpSrv.Serve(ln) }()
	slog.Info("app running", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains in-flight requests and then runs the closers in order. If
// ctx expires first the remaining closers are skipped and the context error
// is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
				shutdownErr = err
				return
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
