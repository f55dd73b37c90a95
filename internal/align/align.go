// Package align aligns a reference phoneme sequence against a predicted one
// and classifies every position as correct, substituted, deleted or inserted.
//
// The primary path computes a unit-cost edit distance and expands its
// opcodes into [types.AlignedSegment] values. When the sequences are too
// large for the dynamic-programming matrix, or the primary path fails, a
// positional fallback pairs symbols index by index.
package align

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/prosodia/pkg/types"
)

// Priors are the confidence values attached to each segment category by the
// primary alignment path.
type Priors struct {
	Correct      float64 `yaml:"correct"`
	Substitution float64 `yaml:"substitution"`
	Deletion     float64 `yaml:"deletion"`
	Insertion    float64 `yaml:"insertion"`
}

// DefaultPriors returns the standard category confidences.
func DefaultPriors() Priors {
	return Priors{Correct: 0.95, Substitution: 0.3, Deletion: 0.2, Insertion: 0.4}
}

// Confidence values used by the positional fallback.
const (
	fallbackMatch    = 0.9
	fallbackMismatch = 0.5
)

// DefaultMaxCells bounds the edit-distance matrix. Larger inputs use the
// positional fallback.
const DefaultMaxCells = 4_000_000

// Option is a functional option for configuring an Aligner.
type Option func(*Aligner)

// WithPriors overrides the segment confidences.
func WithPriors(p Priors) Option {
	return func(a *Aligner) { a.priors = p }
}

// WithMaxCells overrides the matrix size limit. Zero or negative means no
// limit.
func WithMaxCells(n int) Option {
	return func(a *Aligner) { a.maxCells = n }
}

// Aligner is stateless apart from its configuration and safe for concurrent
// use.
type Aligner struct {
	priors   Priors
	maxCells int
}

// New creates an Aligner with [DefaultPriors] and [DefaultMaxCells].
func New(opts ...Option) *Aligner {
	a := &Aligner{priors: DefaultPriors(), maxCells: DefaultMaxCells}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Priors returns the configured confidences.
func (a *Aligner) Priors() Priors { return a.priors }

// Align aligns ref against pred. It never fails: if the primary path is
// unavailable the positional fallback is used.
func (a *Aligner) Align(ref, pred []string) []types.AlignedSegment {
	cells := (len(ref) + 1) * (len(pred) + 1)
	if a.maxCells > 0 && cells > a.maxCells {
		slog.Warn("align: sequence too large for edit distance, using positional fallback",
			"ref", len(ref), "pred", len(pred))
		return Positional(ref, pred)
	}
	segs, err := a.primary(ref, pred)
	if err != nil {
		slog.Warn("align: primary path failed, using positional fallback", "err", err)
		return Positional(ref, pred)
	}
	return segs
}

// primary runs the edit-distance path and converts a panic into an error.
func (a *Aligner) primary(ref, pred []string) (segs []types.AlignedSegment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("align: edit distance panic: %v", r)
		}
	}()
	return a.expand(ref, pred, Opcodes(ref, pred)), nil
}

// expand turns opcodes into one segment per position.
func (a *Aligner) expand(ref, pred []string, ops []Opcode) []types.AlignedSegment {
	segs := make([]types.AlignedSegment, 0, max(len(ref), len(pred)))
	for _, op := range ops {
		switch op.Tag {
		case OpEqual:
			for k := range op.RefEnd - op.RefStart {
				segs = append(segs, both(ref[op.RefStart+k], pred[op.PredStart+k], types.ErrorCorrect, a.priors.Correct))
			}
		case OpReplace:
			for k := range op.RefEnd - op.RefStart {
				segs = append(segs, both(ref[op.RefStart+k], pred[op.PredStart+k], types.ErrorSubstitution, a.priors.Substitution))
			}
		case OpDelete:
			for i := op.RefStart; i < op.RefEnd; i++ {
				segs = append(segs, deletion(ref[i], a.priors.Deletion))
			}
		case OpInsert:
			for j := op.PredStart; j < op.PredEnd; j++ {
				segs = append(segs, insertion(pred[j], a.priors.Insertion))
			}
		}
	}
	return segs
}

// Positional pairs ref and pred index by index. Equal symbols are correct,
// differing symbols are substitutions, and positions beyond the shorter
// sequence are deletions or insertions.
func Positional(ref, pred []string) []types.AlignedSegment {
	n := max(len(ref), len(pred))
	segs := make([]types.AlignedSegment, 0, n)
	for i := range n {
		switch {
		case i >= len(pred):
			segs = append(segs, deletion(ref[i], fallbackMismatch))
		case i >= len(ref):
			segs = append(segs, insertion(pred[i], fallbackMismatch))
		case ref[i] == pred[i]:
			segs = append(segs, both(ref[i], pred[i], types.ErrorCorrect, fallbackMatch))
		default:
			segs = append(segs, both(ref[i], pred[i], types.ErrorSubstitution, fallbackMismatch))
		}
	}
	return segs
}

func both(r, p string, e types.ErrorType, conf float64) types.AlignedSegment {
	return types.AlignedSegment{Reference: &r, Predicted: &p, Error: e, Confidence: conf}
}

func deletion(r string, conf float64) types.AlignedSegment {
	return types.AlignedSegment{Reference: &r, Error: types.ErrorDeletion, Confidence: conf}
}

func insertion(p string, conf float64) types.AlignedSegment {
	return types.AlignedSegment{Predicted: &p, Error: types.ErrorInsertion, Confidence: conf}
}
