// Package whisper provides whisper.cpp-backed batch STT providers.
//
// [Provider] talks to a running whisper-server binary over its REST API
// (POST /inference). [NativeProvider] runs the model in-process through the
// whisper.cpp CGO bindings and loads it lazily on first use.
//
// Both providers short-circuit utterances whose energy is below a silence
// threshold and return an empty transcript without running inference.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8081", whisper.WithLanguage("en"))
//	tr, err := p.Transcribe(ctx, pcm, stt.Config{SampleRate: 16000, Channels: 1})
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/prosodia/pkg/audio"
	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/types"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which an utterance is considered silent. The maximum
	// possible value for 16-bit audio is 32 767; 300 corresponds to
	// near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage = "en"
	defaultTimeout  = 60 * time.Second

	// maxErrorBody caps how much of a non-200 response body is quoted in errors.
	maxErrorBody = 512
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithRMSThreshold overrides the silence gate. Zero disables it.
func WithRMSThreshold(rms float64) Option {
	return func(p *Provider) {
		p.rmsThreshold = rms
	}
}

// WithHTTPClient replaces the HTTP client used to reach the server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL    string
	model        string
	language     string
	rmsThreshold float64
	httpClient   *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8081"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:    strings.TrimRight(serverURL, "/"),
		language:     defaultLanguage,
		rmsThreshold: defaultRMSThreshold,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe encodes pcm as a WAV file and POSTs it to the whisper.cpp
// /inference endpoint as multipart/form-data.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	cfg = cfg.WithDefaults()
	sr, ch := cfg.SampleRate, cfg.Channels
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	dur := pcmDuration(pcm, sr, ch)

	if p.rmsThreshold > 0 && computeRMS(pcm) < p.rmsThreshold {
		return types.Transcript{Language: lang, Duration: dur}, nil
	}

	wav := audio.EncodeWAV(pcm, sr, ch)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write format field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return types.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return types.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: lang,
		Duration: dur,
	}, nil
}

// ---- helpers ----------------------------------------------------------------

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
// The result is expressed in the same units as PCM sample values (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// pcmDuration returns the playback length of pcm.
func pcmDuration(pcm []byte, sampleRate, channels int) time.Duration {
	bytesPerSec := sampleRate * channels * 2
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSec)
}
