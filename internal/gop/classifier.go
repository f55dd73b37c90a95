package gop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/prosodia/pkg/types"
)

// CountMismatchError reports a classifier response with the wrong number of
// posteriors.
type CountMismatchError struct {
	Want, Got int
}

// Error implements error.
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("gop: classifier returned %d posteriors for %d segments", e.Got, e.Want)
}

// Compile-time interface assertion.
var _ Classifier = (*HTTPClassifier)(nil)

type classifyReq struct {
	Segments []classifySegment `json:"segments"`
}

type classifySegment struct {
	Reference *string `json:"reference"`
	Predicted *string `json:"predicted"`
	Error     string  `json:"error"`
}

type classifyResp struct {
	Posteriors []float64 `json:"posteriors"`
}

// HTTPClassifier posts segments to an external classification service at
// POST {baseURL}/classify and reads {"posteriors": [...]}.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClassifier.
type HTTPOption func(*HTTPClassifier)

// WithHTTPClient overrides the HTTP client. Defaults to a client with a
// 30-second timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClassifier) { h.client = c }
}

// NewHTTPClassifier creates a classifier for the service at baseURL.
func NewHTTPClassifier(baseURL string, opts ...HTTPOption) *HTTPClassifier {
	h := &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// GoodPronunciation implements [Classifier].
func (h *HTTPClassifier) GoodPronunciation(ctx context.Context, segs []types.AlignedSegment) ([]float64, error) {
	body := classifyReq{Segments: make([]classifySegment, len(segs))}
	for i, s := range segs {
		body.Segments[i] = classifySegment{Reference: s.Reference, Predicted: s.Predicted, Error: s.Error.String()}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gop: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/classify", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gop: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gop: classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return nil, fmt.Errorf("gop: classify %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out classifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gop: decode response: %w", err)
	}
	return out.Posteriors, nil
}
