package g2p

import (
	"context"
	"fmt"
	"strings"

	"github.com/neurlang/goruut/lib"
	"github.com/neurlang/goruut/models/requests"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Phonemizer produces an IPA transcription for a word.
type Phonemizer interface {
	Phonemize(ctx context.Context, word string) (string, error)
}

// Compile-time interface assertions.
var (
	_ Strategy   = (*Rules)(nil)
	_ Phonemizer = (*Goruut)(nil)
)

// Rules resolves words through a rule-based [Phonemizer] and segments the
// resulting IPA into symbols.
type Rules struct {
	p Phonemizer
}

// NewRules creates a Rules strategy over p.
func NewRules(p Phonemizer) *Rules { return &Rules{p: p} }

// Name implements [Strategy].
func (r *Rules) Name() string { return "rules" }

// Lookup implements [Strategy].
func (r *Rules) Lookup(ctx context.Context, word string) ([]types.PhonemeUnit, error) {
	ipa, err := r.p.Phonemize(ctx, word)
	if err != nil {
		return nil, fmt.Errorf("rules %q: %w", word, err)
	}
	segs := SegmentIPA(ipa)
	if len(segs) == 0 {
		return nil, fmt.Errorf("rules %q: %w", word, ErrNoPronunciation)
	}
	units := make([]types.PhonemeUnit, len(segs))
	for i, s := range segs {
		units[i] = types.PhonemeUnit{Symbol: s.Symbol}
		switch {
		case s.Primary:
			units[i].Stress = types.StressPrimary
		case s.Secondary:
			units[i].Stress = types.StressSecondary
		}
	}
	return units, nil
}

// Goruut is a [Phonemizer] backed by the goruut English model. The model is
// created on first use.
type Goruut struct {
	language string
	p        *lazy.Value[*lib.Phonemizer]
}

// NewGoruut creates a goruut phonemizer for English.
func NewGoruut() *Goruut {
	return &Goruut{
		language: "English",
		p: lazy.New("goruut", func(context.Context) (*lib.Phonemizer, error) {
			return lib.NewPhonemizer(nil), nil
		}),
	}
}

// Phonemize implements [Phonemizer].
func (g *Goruut) Phonemize(ctx context.Context, word string) (string, error) {
	p, err := g.p.Get(ctx)
	if err != nil {
		return "", err
	}
	resp := p.Sentence(requests.PhonemizeSentence{Language: g.language, Sentence: word})
	var sb strings.Builder
	for _, w := range resp.Words {
		sb.WriteString(w.Phonetic)
	}
	return sb.String(), nil
}
