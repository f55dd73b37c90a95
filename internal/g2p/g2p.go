// Package g2p converts English text into phoneme sequences.
//
// A [Resolver] normalises the text into words and resolves each word through
// an ordered chain of [Strategy] implementations: a pronunciation dictionary,
// a rule-based phonemizer, a phonetic transliteration and finally a
// character fallback. The chain runs on a [resilience.FallbackGroup] so a
// strategy that keeps failing is skipped by its circuit breaker. A plain
// lookup miss ([ErrNoPronunciation]) is not a failure and never trips it.
//
// Resolution never fails: a word that no strategy resolves is returned with
// an empty phoneme list.
package g2p

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/prosodia/internal/observe"
	"github.com/MrWong99/prosodia/internal/resilience"
	"github.com/MrWong99/prosodia/pkg/types"
)

// ErrNoPronunciation is returned by a [Strategy] that has no pronunciation for
// a word.
var ErrNoPronunciation = errors.New("g2p: no pronunciation")

// Strategy resolves a single cleaned, lower-cased word.
//
// Implementations return phonemes with their stress already separated from
// the symbol, or an error wrapping [ErrNoPronunciation] on a miss. They must
// be safe for concurrent use.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, word string) ([]types.PhonemeUnit, error)
}

// Option is a functional option for configuring a Resolver.
type Option func(*Resolver)

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithBreaker overrides the per-strategy circuit breaker settings. The
// IsFailure classifier is always replaced so lookup misses are ignored.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(r *Resolver) { r.breaker = cfg }
}

// Resolver is safe for concurrent use.
type Resolver struct {
	chain   *resilience.FallbackGroup[Strategy]
	metrics *observe.Metrics
	breaker resilience.CircuitBreakerConfig
}

// New creates a Resolver that tries strategies in order.
func New(strategies []Strategy, opts ...Option) (*Resolver, error) {
	if len(strategies) == 0 {
		return nil, errors.New("g2p: at least one strategy is required")
	}
	r := &Resolver{}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	r.breaker.IsFailure = func(err error) bool { return !errors.Is(err, ErrNoPronunciation) }
	if r.breaker.OnStateChange == nil {
		r.breaker.OnStateChange = func(name string, _, to resilience.State) {
			r.metrics.RecordBreakerTransition(context.Background(), "g2p/"+name, to.String())
		}
	}

	cfg := resilience.FallbackConfig{CircuitBreaker: r.breaker}
	r.chain = resilience.NewFallbackGroup(strategies[0], strategies[0].Name(), cfg)
	for _, s := range strategies[1:] {
		r.chain.AddFallback(s.Name(), s)
	}
	return r, nil
}

// Strategies returns the strategy names in the order they are tried.
func (r *Resolver) Strategies() []string { return r.chain.Names() }

// Resolve returns one entry per word of text, in order, tagging every phoneme
// with src.
func (r *Resolver) Resolve(ctx context.Context, text string, src types.PhonemeSource) []types.WordPhonemes {
	start := time.Now()
	defer func() { r.metrics.RecordStage(ctx, observe.StageG2P, time.Since(start)) }()

	words := Words(text)
	out := make([]types.WordPhonemes, 0, len(words))
	for _, w := range words {
		out = append(out, r.resolveWord(ctx, w, src))
	}
	return out
}

// Symbols resolves text and returns the flattened phoneme symbols.
func (r *Resolver) Symbols(ctx context.Context, text string, src types.PhonemeSource) []string {
	return types.FlattenSymbols(r.Resolve(ctx, text, src))
}

type resolution struct {
	strategy string
	units    []types.PhonemeUnit
}

func (r *Resolver) resolveWord(ctx context.Context, word string, src types.PhonemeSource) types.WordPhonemes {
	res, err := resilience.ExecuteWithResult(r.chain, func(s Strategy) (resolution, error) {
		units, err := lookup(ctx, s, word)
		if err != nil {
			return resolution{}, err
		}
		if len(units) == 0 {
			return resolution{}, fmt.Errorf("%s: %w", s.Name(), ErrNoPronunciation)
		}
		return resolution{strategy: s.Name(), units: units}, nil
	})

	wp := types.WordPhonemes{Word: word}
	if err != nil {
		observe.Logger(ctx).Debug("g2p: word unresolved", "word", word, "err", err)
		r.metrics.RecordG2P(ctx, "")
		return wp
	}
	r.metrics.RecordG2P(ctx, res.strategy)

	wp.Strategy = res.strategy
	wp.Phonemes = make([]types.PhonemeUnit, len(res.units))
	for i, u := range res.units {
		u.Source = src
		wp.Phonemes[i] = u
		if u.Stress != types.StressNone {
			wp.StressPositions = append(wp.StressPositions, i)
		}
	}
	return wp
}

// lookup calls s and converts a panic into an error.
func lookup(ctx context.Context, s Strategy, word string) (units []types.PhonemeUnit, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("g2p: strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	return s.Lookup(ctx, word)
}

// Words lower-cases text, splits it on whitespace and normalizes each token
// with [Normalize]. Tokens left empty are dropped.
func Words(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := Normalize(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Normalize lower-cases token and strips every non-alphanumeric rune.
func Normalize(token string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, token)
}
