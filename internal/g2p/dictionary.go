package g2p

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/types"
)

//go:embed core_lexicon.txt
var coreLexicon string

var (
	coreOnce sync.Once
	coreDict map[string][]string
)

// core returns the parsed embedded lexicon.
func core() map[string][]string {
	coreOnce.Do(func() {
		d, err := ParseDictionary(strings.NewReader(coreLexicon))
		if err != nil {
			panic(fmt.Sprintf("g2p: embedded lexicon: %v", err))
		}
		coreDict = d
	})
	return coreDict
}

// Compile-time interface assertion.
var _ Strategy = (*Dictionary)(nil)

// Dictionary looks words up in a CMU-format pronunciation dictionary.
//
// An embedded core lexicon is always consulted. If a path to a full
// dictionary is configured it is loaded on the first lookup and takes
// precedence; a failed load is logged once and the core lexicon keeps
// serving.
type Dictionary struct {
	full   *lazy.Value[map[string][]string]
	warned sync.Once
}

// NewDictionary creates a Dictionary. path may be empty.
func NewDictionary(path string) *Dictionary {
	d := &Dictionary{}
	if path != "" {
		d.full = lazy.New("cmudict", func(context.Context) (map[string][]string, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("g2p: open dictionary: %w", err)
			}
			defer f.Close()
			return ParseDictionary(f)
		})
	}
	return d
}

// Name implements [Strategy].
func (d *Dictionary) Name() string { return "dictionary" }

// Lookup implements [Strategy].
func (d *Dictionary) Lookup(ctx context.Context, word string) ([]types.PhonemeUnit, error) {
	if d.full != nil {
		full, err := d.full.Get(ctx)
		switch {
		case err == nil:
			if pron, ok := full[word]; ok {
				return SplitStress(pron), nil
			}
		case ctx.Err() != nil:
			return nil, err
		default:
			d.warned.Do(func() {
				slog.Warn("g2p: dictionary unavailable, using core lexicon", "err", err)
			})
		}
	}
	if pron, ok := core()[word]; ok {
		return SplitStress(pron), nil
	}
	return nil, fmt.Errorf("dictionary %q: %w", word, ErrNoPronunciation)
}

// ParseDictionary reads CMU dictionary lines ("WORD  P1 P2 ..."). Keys are
// lower-cased. Alternate pronunciations ("WORD(2)") are skipped, so the first
// entry for a word wins. Lines starting with ";;;" are comments.
func ParseDictionary(r io.Reader) (map[string][]string, error) {
	dict := make(map[string][]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		word := strings.ToLower(fields[0])
		if strings.HasSuffix(word, ")") && strings.Contains(word, "(") {
			continue
		}
		if _, ok := dict[word]; ok {
			continue
		}
		dict[word] = fields[1:]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("g2p: read dictionary: %w", err)
	}
	return dict, nil
}

// SplitStress strips CMU stress digits from pron and records them on each
// unit.
func SplitStress(pron []string) []types.PhonemeUnit {
	units := make([]types.PhonemeUnit, len(pron))
	for i, p := range pron {
		u := types.PhonemeUnit{Symbol: p}
		if n := len(p); n > 1 {
			switch p[n-1] {
			case '0':
				u.Symbol = p[:n-1]
			case '1':
				u.Symbol, u.Stress = p[:n-1], types.StressPrimary
			case '2':
				u.Symbol, u.Stress = p[:n-1], types.StressSecondary
			}
		}
		units[i] = u
	}
	return units
}
