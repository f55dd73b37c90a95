package g2p

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/prosodia/pkg/types"
)

// Compile-time interface assertions.
var (
	_ Strategy = Transliteration{}
	_ Strategy = Characters{}
)

// Transliteration encodes a word with Double Metaphone and treats each letter
// of the primary code as a pseudo-phoneme.
type Transliteration struct{}

// Name implements [Strategy].
func (Transliteration) Name() string { return "transliteration" }

// Lookup implements [Strategy].
func (Transliteration) Lookup(_ context.Context, word string) ([]types.PhonemeUnit, error) {
	primary, _ := matchr.DoubleMetaphone(word)
	if primary == "" {
		return nil, fmt.Errorf("transliteration %q: %w", word, ErrNoPronunciation)
	}
	units := make([]types.PhonemeUnit, 0, len(primary))
	for _, r := range primary {
		units = append(units, types.PhonemeUnit{Symbol: string(r)})
	}
	return units, nil
}

// Characters maps every rune of the word to an upper-cased symbol. It
// resolves any non-empty word.
type Characters struct{}

// Name implements [Strategy].
func (Characters) Name() string { return "characters" }

// Lookup implements [Strategy].
func (Characters) Lookup(_ context.Context, word string) ([]types.PhonemeUnit, error) {
	units := make([]types.PhonemeUnit, 0, len(word))
	for _, r := range word {
		units = append(units, types.PhonemeUnit{Symbol: strings.ToUpper(string(r))})
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("characters: %w", ErrNoPronunciation)
	}
	return units, nil
}

// Strategy names accepted by [FromNames].
const (
	StrategyDictionary      = "dictionary"
	StrategyRules           = "rules"
	StrategyTransliteration = "transliteration"
	StrategyCharacters      = "characters"
)

// DefaultStrategies is the standard resolution order.
var DefaultStrategies = []string{StrategyDictionary, StrategyRules, StrategyTransliteration, StrategyCharacters}

// FromNames builds strategies in the given order. dictPath is the optional
// full dictionary; p is the phonemizer for the rules strategy (nil uses
// goruut).
func FromNames(names []string, dictPath string, p Phonemizer) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		switch n {
		case StrategyDictionary:
			out = append(out, NewDictionary(dictPath))
		case StrategyRules:
			if p == nil {
				p = NewGoruut()
			}
			out = append(out, NewRules(p))
		case StrategyTransliteration:
			out = append(out, Transliteration{})
		case StrategyCharacters:
			out = append(out, Characters{})
		default:
			return nil, fmt.Errorf("g2p: unknown strategy %q", n)
		}
	}
	return out, nil
}
