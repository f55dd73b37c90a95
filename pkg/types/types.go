// Package types defines the data model shared across the prosodia pipeline.
//
// These types are the common language between the recognizer, the G2P
// resolver, the aligner, the scorers and the report builder. Each package keeps
// its own internal types; anything that crosses a package boundary lives here
// to avoid circular imports.
package types

import (
	"strings"
	"time"
)

// Transcript is a batch speech-to-text result for one utterance.
type Transcript struct {
	// Text is the recognized speech content. Empty when nothing was recognized.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report one.
	Confidence float64

	// Language is the language the backend decoded with, if reported.
	Language string

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// Stress is the lexical stress marker carried by a phoneme.
type Stress int

const (
	// StressNone marks an unstressed phoneme (CMU digit 0, or no digit at all).
	StressNone Stress = iota

	// StressPrimary marks primary stress (CMU digit 1).
	StressPrimary

	// StressSecondary marks secondary stress (CMU digit 2).
	StressSecondary
)

// String returns the human-readable name of the stress level.
func (s Stress) String() string {
	switch s {
	case StressNone:
		return "none"
	case StressPrimary:
		return "primary"
	case StressSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// PhonemeSource records which text a phoneme was derived from.
type PhonemeSource int

const (
	// SourceReference marks phonemes derived from the reference script.
	SourceReference PhonemeSource = iota

	// SourcePredicted marks phonemes derived from the recognized text.
	SourcePredicted
)

// String returns the human-readable name of the source.
func (s PhonemeSource) String() string {
	if s == SourcePredicted {
		return "predicted"
	}
	return "reference"
}

// PhonemeUnit is one symbol of a phoneme sequence. Values are immutable once
// produced.
type PhonemeUnit struct {
	// Symbol is the phoneme without any stress digit (e.g. "AH", not "AH0").
	Symbol string

	// Stress is the lexical stress stripped from the symbol.
	Stress Stress

	// Source records whether this unit came from the reference or the
	// recognized text.
	Source PhonemeSource
}

// WordPhonemes is the pronunciation resolved for a single word.
type WordPhonemes struct {
	// Word is the cleaned, lower-cased orthographic form.
	Word string

	// Phonemes is the resolved sequence. Empty when no strategy could resolve
	// the word.
	Phonemes []PhonemeUnit

	// StressPositions lists the indices into Phonemes whose stress is nonzero.
	StressPositions []int

	// Strategy names the resolver strategy that produced Phonemes. Empty when
	// unresolved.
	Strategy string
}

// Symbols returns the plain phoneme symbols of w.
func (w WordPhonemes) Symbols() []string {
	out := make([]string, len(w.Phonemes))
	for i, p := range w.Phonemes {
		out[i] = p.Symbol
	}
	return out
}

// FlattenSymbols concatenates the symbols of every word in order.
func FlattenSymbols(words []WordPhonemes) []string {
	var out []string
	for _, w := range words {
		out = append(out, w.Symbols()...)
	}
	return out
}

// JoinSymbols renders a phoneme sequence the way it appears on the wire.
func JoinSymbols(symbols []string) string {
	return strings.Join(symbols, " ")
}
