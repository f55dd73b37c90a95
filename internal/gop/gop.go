// Package gop computes a Goodness-of-Pronunciation score for every aligned
// phoneme segment.
//
// The base score is a category-based approximation of acoustic-likelihood GOP:
// each error category maps to a fixed value. When a [Classifier] is
// configured its posteriors are blended with the base scores.
package gop

import (
	"context"
	"time"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Base scores per error category.
const (
	BaseCorrect      = 0.9
	BaseSubstitution = 0.3
	BaseDeletion     = 0.1
	BaseInsertion    = 0.4
	BaseUnknown      = 0.5
)

// DefaultClassifierWeight is the share of the classifier posterior in a
// blended score.
const DefaultClassifierWeight = 0.7

// Classifier returns a good-pronunciation posterior in [0, 1] for each segment.
// Implementations must return exactly one value per segment.
type Classifier interface {
	GoodPronunciation(ctx context.Context, segs []types.AlignedSegment) ([]float64, error)
}

// Option is a functional option for configuring a Scorer.
type Option func(*Scorer)

// WithClassifier enables posterior blending.
func WithClassifier(c Classifier) Option {
	return func(s *Scorer) { s.classifier = c }
}

// WithClassifierWeight sets the blend weight, clamped to [0, 1].
func WithClassifierWeight(w float64) Option {
	return func(s *Scorer) { s.weight = min(max(w, 0), 1) }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// Scorer is safe for concurrent use if its Classifier is.
type Scorer struct {
	classifier Classifier
	weight     float64
	metrics    *observe.Metrics
}

// New creates a Scorer. Without a classifier it returns base scores only.
func New(opts ...Option) *Scorer {
	s := &Scorer{weight: DefaultClassifierWeight}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Weight returns the configured blend weight.
func (s *Scorer) Weight() float64 { return s.weight }

// Base returns the category score for e.
func Base(e types.ErrorType) float64 {
	switch e {
	case types.ErrorCorrect:
		return BaseCorrect
	case types.ErrorSubstitution:
		return BaseSubstitution
	case types.ErrorDeletion:
		return BaseDeletion
	case types.ErrorInsertion:
		return BaseInsertion
	default:
		return BaseUnknown
	}
}

// Score returns one score in [0, 1] per segment. Classifier failures fall
// back to the base scores.
func (s *Scorer) Score(ctx context.Context, segs []types.AlignedSegment) []float64 {
	start := time.Now()
	defer func() { s.metrics.RecordStage(ctx, observe.StageGOP, time.Since(start)) }()

	scores := make([]float64, len(segs))
	for i, seg := range segs {
		scores[i] = Base(seg.Error)
	}
	if s.classifier == nil || len(segs) == 0 {
		return scores
	}

	post, err := s.classifier.GoodPronunciation(ctx, segs)
	if err == nil && len(post) != len(segs) {
		err = &CountMismatchError{Want: len(segs), Got: len(post)}
	}
	if err != nil {
		observe.Logger(ctx).Warn("gop: classifier failed, using base scores", "err", err)
		s.metrics.RecordDegraded(ctx, observe.StageGOP)
		return scores
	}
	for i, p := range post {
		p = min(max(p, 0), 1)
		scores[i] = (1-s.weight)*scores[i] + s.weight*p
	}
	return scores
}
