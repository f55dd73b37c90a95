// Package server exposes the analysis pipeline over HTTP.
//
// Routes:
//
//   - POST /v1/analyze  multipart form with an "audio" WAV file and a "text"
//     field. Responds with the report JSON, or the condensed results view
//     when called with ?view=summary.
//   - GET /healthz, GET /readyz  probes from [health.Handler].
//   - GET /metrics  Prometheus exposition, when a handler is configured.
//
// Every response to /v1/analyze carries an X-Analysis-ID header.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MrWong99/prosodia/internal/analyzer"
	"github.com/MrWong99/prosodia/internal/health"
	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/recognizer"
	"github.com/MrWong99/prosodia/internal/report"
	"github.com/MrWong99/prosodia/internal/results"
	"github.com/MrWong99/prosodia/pkg/types"
)

// DefaultMaxUploadBytes caps the request body when no limit is configured.
const DefaultMaxUploadBytes = 12 << 20

// Form field names.
const (
	FieldAudio = "audio"
	FieldText  = "text"
)

// HeaderAnalysisID names the response header carrying the per-request ID.
const HeaderAnalysisID = "X-Analysis-ID"

// multipartMemory is the in-memory budget for ParseMultipartForm. The body
// itself is already bounded by MaxBytesReader.
const multipartMemory = 4 << 20

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, wav []byte, text string) (*types.AnalysisReport, error)
}

// Compile-time interface assertion.
var _ Analyzer = (*analyzer.Analyzer)(nil)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithRateLimit allows perSecond analyses per second with the given burst.
// A rate of 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
	}
}

// WithMaxUploadBytes caps the request body of /v1/analyze.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithHealth registers the health probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMetrics overrides the metrics used by the request middleware.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the HTTP front end.
type Server struct {
	analyzer       Analyzer
	limiter        *rate.Limiter
	maxUpload      int64
	health         *health.Handler
	metricsHandler http.Handler
	metrics        *observe.Metrics
}

// New creates a Server over a.
func New(a Analyzer, opts ...Option) *Server {
	s := &Server{analyzer: a, maxUpload: DefaultMaxUploadBytes}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed handler wrapped in the tracing middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(HeaderAnalysisID, id)
	log := observe.Logger(r.Context()).With("analysis_id", id)

	if s.limiter != nil {
		if res := s.limiter.Reserve(); res.Delay() > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.Delay().Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	wav, text, err := readForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body larger than %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), wav, text)
	if err != nil {
		status := StatusOf(err)
		if status == http.StatusInternalServerError {
			log.Error("server: analysis failed", "err", err)
			writeError(w, status, "internal error")
			return
		}
		log.Info("server: analysis rejected", "status", status, "err", err)
		writeError(w, status, err.Error())
		return
	}

	var body []byte
	if r.URL.Query().Get("view") == "summary" {
		body, err = json.Marshal(results.Process(rep))
	} else {
		body, err = report.Marshal(rep)
	}
	if err != nil {
		log.Error("server: encode response", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// StatusOf maps an analysis error to its HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, recognizer.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// readForm extracts the audio file and reference text from a multipart form.
func readForm(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile(FieldAudio)
	if err != nil {
		return nil, "", fmt.Errorf("missing %q file: %w", FieldAudio, err)
	}
	defer f.Close()
	wav, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read %q file: %w", FieldAudio, err)
	}
	return wav, strings.TrimSpace(r.FormValue(FieldText)), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Warn("server: write error body", "err", err)
	}
}
