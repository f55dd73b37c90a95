// Package report assembles an [types.AnalysisReport] from the pipeline
// outputs and converts it to and from the shared API wire shape.
package report

import (
	"fmt"
	"strings"

	"github.com/MrWong99/prosodia/internal/g2p"
	"github.com/MrWong99/prosodia/internal/scoring"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Sentence-end prosody tokens.
const (
	SentenceEndNormal  = "normal"
	SentenceEndRising  = "awkward_rising"
	SentenceEndFalling = "awkward_falling"
)

// Phone error tags used in the phone-level view.
const (
	TagSubstitution = "sub"
	TagDeletion     = "del"
	TagInsertion    = "ins"
)

// DefaultUnintelligibleBelow is the word score under which a word is flagged
// as unintelligible.
const DefaultUnintelligibleBelow = 0.3

// Input carries the pipeline results for one analysis.
type Input struct {
	ReferenceText     string
	RecognizedText    string
	ReferenceWords    []types.WordPhonemes
	ReferencePhonemes []string
	PredictedPhonemes []string
	Alignment         []types.AlignedSegment
	GOP               []float64
	Scores            scoring.Result
	StressIssues      []string
	IntonationIssues  []string
	Prosody           *types.ProsodyFeatures
}

// Option is a functional option for configuring a Builder.
type Option func(*Builder)

// WithIPA overrides the ARPAbet to IPA mapping. Defaults to [g2p.ToIPA].
func WithIPA(fn func(string) string) Option {
	return func(b *Builder) { b.ipa = fn }
}

// WithUnintelligibleBelow sets the word score under which a word is flagged
// as unintelligible.
func WithUnintelligibleBelow(v float64) Option {
	return func(b *Builder) { b.unintelligibleBelow = v }
}

// Builder is stateless after construction and safe for concurrent use.
type Builder struct {
	ipa                 func(string) string
	unintelligibleBelow float64
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{ipa: g2p.ToIPA, unintelligibleBelow: DefaultUnintelligibleBelow}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build assembles the report. Word records already carry their phoneme
// details when Build returns.
func (b *Builder) Build(in Input) *types.AnalysisReport {
	words := strings.Fields(in.ReferenceText)
	s := in.Scores.Scores

	r := &types.AnalysisReport{
		ScriptText:            in.ReferenceText,
		RecognizedText:        in.RecognizedText,
		ReferencePhonemes:     in.ReferencePhonemes,
		PredictedPhonemes:     in.PredictedPhonemes,
		ReferenceScore:        in.Scores.ReferenceScore,
		AdjustedSentenceScore: s.Holistic / 5,
		GeneralComment:        in.Scores.Comment,
		Scores:                s,
		Words:                 b.words(words, in.ReferenceWords, s.Holistic/5),
		Alignment:             b.alignment(words, in),
		Sentence: types.SentenceDiagnostics{
			Monotonous:       s.Intonation < 3,
			SentenceEnd:      SentenceEndNormal,
			Fragmented:       s.Chunking < 3,
			AwkwardPause:     types.AwkwardPause{Flag: s.SpeedPause < 3},
			StressIssues:     in.StressIssues,
			IntonationIssues: in.IntonationIssues,
			Prosody:          in.Prosody,
		},
	}
	if r.GeneralComment == "" {
		r.GeneralComment = scoring.GeneralComment(s.Holistic, len(in.StressIssues), len(in.IntonationIssues), scoring.DefaultThresholds())
	}
	Merge(r.Words, r.Alignment)
	r.PhoneErrors = b.phoneErrors(in.Alignment, r.Alignment)
	return r
}

func (b *Builder) words(tokens []string, resolved []types.WordPhonemes, score float64) []types.WordRecord {
	out := make([]types.WordRecord, len(tokens))
	next := 0
	for i, w := range tokens {
		rec := types.WordRecord{
			Word:           w,
			Index:          i,
			Score:          score,
			Unintelligible: score < b.unintelligibleBelow,
		}
		// Resolution skips tokens with no letters or digits.
		if g2p.Normalize(w) != "" {
			if next < len(resolved) {
				rec.PhonemeCount = len(resolved[next].Phonemes)
				if pos := resolved[next].StressPositions; len(pos) > 0 {
					rec.StressError = &types.StressError{ExpectedStress: pos, HasStress: true}
				}
			}
			next++
		}
		out[i] = rec
	}
	return out
}

// WordIndex maps alignment position i to a word by spreading the reference
// phonemes evenly over the words.
func WordIndex(i, refPhonemes, words int) int {
	if words == 0 {
		return 0
	}
	ppw := refPhonemes / words
	idx := 0
	if ppw > 0 {
		idx = i / ppw
	}
	return min(idx, words-1)
}

func (b *Builder) alignment(words []string, in Input) []types.AlignEntry {
	out := make([]types.AlignEntry, len(in.Alignment))
	for i, seg := range in.Alignment {
		idx := WordIndex(i, len(in.ReferencePhonemes), len(words))
		e := types.AlignEntry{
			WordIndex:  idx,
			RefPhoneme: seg.Ref(),
			RefIPA:     []string{b.ipa(seg.Ref())},
			Score:      seg.Confidence,
			Error:      seg.Error,
		}
		if idx < len(words) {
			e.Word = words[idx]
		}
		e.AdjustedScore = e.Score
		if i < len(in.GOP) {
			e.AdjustedScore = in.GOP[i]
		}
		out[i] = e
	}
	return out
}

// Merge attaches alignment entries to the word records they belong to.
// Entries pointing outside words are dropped.
func Merge(words []types.WordRecord, align []types.AlignEntry) {
	for i := range words {
		words[i].Phonemes = nil
	}
	for _, e := range align {
		if e.WordIndex < 0 || e.WordIndex >= len(words) {
			continue
		}
		ipa := ""
		if len(e.RefIPA) > 0 {
			ipa = e.RefIPA[0]
		}
		w := &words[e.WordIndex]
		w.Phonemes = append(w.Phonemes, types.PhonemeDetail{
			Phoneme: e.RefPhoneme,
			IPA:     ipa,
			Score:   e.AdjustedScore,
			Error:   e.Error,
		})
	}
}

func (b *Builder) phoneErrors(segs []types.AlignedSegment, entries []types.AlignEntry) []types.PhoneError {
	var out []types.PhoneError
	for i, seg := range segs {
		tag := Tag(seg.Error)
		if tag == "" {
			continue
		}
		e := entries[i]
		out = append(out, types.PhoneError{
			Word:       e.Word,
			WordIndex:  e.WordIndex,
			Error:      seg.Error,
			Tag:        tag,
			Definition: b.definition(seg, e.Word),
			SpellView:  b.spellView(segs, entries, i),
		})
	}
	return out
}

// Tag returns the short phone-error tag for e, or "" for correct and unknown
// positions.
func Tag(e types.ErrorType) string {
	switch e {
	case types.ErrorSubstitution:
		return TagSubstitution
	case types.ErrorDeletion:
		return TagDeletion
	case types.ErrorInsertion:
		return TagInsertion
	default:
		return ""
	}
}

func (b *Builder) definition(seg types.AlignedSegment, word string) string {
	switch seg.Error {
	case types.ErrorSubstitution:
		return fmt.Sprintf("Expected /%s/ but heard /%s/ in %q", b.ipa(seg.Ref()), b.ipa(seg.Pred()), word)
	case types.ErrorDeletion:
		return fmt.Sprintf("Missing /%s/ in %q", b.ipa(seg.Ref()), word)
	case types.ErrorInsertion:
		return fmt.Sprintf("Extra /%s/ inserted in %q", b.ipa(seg.Pred()), word)
	default:
		return ""
	}
}

// spellView renders the word's phonemes in IPA with the erroneous position
// bracketed, for example "k [æ] t".
func (b *Builder) spellView(segs []types.AlignedSegment, entries []types.AlignEntry, at int) string {
	word := entries[at].WordIndex
	var parts []string
	for i, seg := range segs {
		if entries[i].WordIndex != word {
			continue
		}
		sym := seg.Ref()
		if seg.Reference == nil {
			sym = seg.Pred()
		}
		p := b.ipa(sym)
		if i == at {
			p = "[" + p + "]"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
