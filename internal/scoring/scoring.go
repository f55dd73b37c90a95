// Package scoring turns alignment, GOP and feature measurements into the
// seven proficiency dimensions and a general comment.
//
// Every band edge is a named field of [Thresholds] so deployments can tune
// scoring through configuration without code changes.
package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/prosodia/pkg/types"
)

// Preset names accepted by [Preset].
const (
	PresetBasic    = "basic"
	PresetEnhanced = "enhanced"
)

// Thresholds holds every band edge and constant used by [Synthesize] and the
// issue detectors.
type Thresholds struct {
	// Acoustic.
	AcousticBase    float64 `yaml:"acoustic_base"`
	AcousticBonus   float64 `yaml:"acoustic_bonus"`
	StablePitchStd  float64 `yaml:"stable_pitch_std"`
	StableEnergyStd float64 `yaml:"stable_energy_std"`
	AcousticCap     float64 `yaml:"acoustic_cap"`

	// Stress and rhythm pitch std bands.
	RhythmGoodLow  float64 `yaml:"rhythm_good_low"`
	RhythmGoodHigh float64 `yaml:"rhythm_good_high"`
	RhythmFairLow  float64 `yaml:"rhythm_fair_low"`
	RhythmFairHigh float64 `yaml:"rhythm_fair_high"`

	// Intonation pitch range bands.
	IntonationGoodRange float64 `yaml:"intonation_good_range"`
	IntonationFairRange float64 `yaml:"intonation_fair_range"`

	// Speed and pause: syllable rate bands, then tempo bands.
	RateGoodLow   float64 `yaml:"rate_good_low"`
	RateGoodHigh  float64 `yaml:"rate_good_high"`
	RateFairLow   float64 `yaml:"rate_fair_low"`
	RateFairHigh  float64 `yaml:"rate_fair_high"`
	TempoGoodLow  float64 `yaml:"tempo_good_low"`
	TempoGoodHigh float64 `yaml:"tempo_good_high"`
	TempoFairLow  float64 `yaml:"tempo_fair_low"`
	TempoFairHigh float64 `yaml:"tempo_fair_high"`

	// Chunking pause-rate band in pauses per second.
	PauseRateLow  float64 `yaml:"pause_rate_low"`
	PauseRateHigh float64 `yaml:"pause_rate_high"`

	// IssuePenalty is subtracted per detected stress or intonation issue.
	IssuePenalty float64 `yaml:"issue_penalty"`

	// Intonation issue detection.
	MonotoneF0Std   float64 `yaml:"monotone_f0_std"`
	NarrowRange     float64 `yaml:"narrow_range"`
	WideRange       float64 `yaml:"wide_range"` // 0 disables
	FastRate        float64 `yaml:"fast_rate"`
	SlowRate        float64 `yaml:"slow_rate"`
	SlowNeedsSpeech bool    `yaml:"slow_needs_speech"`

	// Stress issue detection.
	FlatStressStd    float64 `yaml:"flat_stress_std"`
	WeakStressStd    float64 `yaml:"weak_stress_std"`
	NarrowStressSpan float64 `yaml:"narrow_stress_span"`

	// AdjustIntonation enables the bonus/penalty applied after issue
	// detection.
	AdjustIntonation bool    `yaml:"adjust_intonation"`
	CleanBonus       float64 `yaml:"clean_bonus"`
	ManyIssues       int     `yaml:"many_issues"`

	// General comment bands on the holistic score.
	ExcellentAt float64 `yaml:"excellent_at"`
	GoodAt      float64 `yaml:"good_at"`
	FairAt      float64 `yaml:"fair_at"`
}

// DefaultThresholds returns the basic preset.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AcousticBase:    70,
		AcousticBonus:   10,
		StablePitchStd:  50,
		StableEnergyStd: 0.1,
		AcousticCap:     100,

		RhythmGoodLow:  20,
		RhythmGoodHigh: 80,
		RhythmFairLow:  10,
		RhythmFairHigh: 100,

		IntonationGoodRange: 100,
		IntonationFairRange: 50,

		RateGoodLow:   3,
		RateGoodHigh:  5,
		RateFairLow:   2,
		RateFairHigh:  6,
		TempoGoodLow:  100,
		TempoGoodHigh: 140,
		TempoFairLow:  80,
		TempoFairHigh: 160,

		PauseRateLow:  0.5,
		PauseRateHigh: 2,

		IssuePenalty: 0.3,

		MonotoneF0Std: 15,
		NarrowRange:   30,
		FastRate:      6,
		SlowRate:      2,

		FlatStressStd:    10,
		WeakStressStd:    20,
		NarrowStressSpan: 30,

		CleanBonus: 0.5,
		ManyIssues: 2,

		ExcellentAt: 4.5,
		GoodAt:      4.0,
		FairAt:      3.0,
	}
}

// EnhancedThresholds returns the enhanced preset: wide-range detection, a
// slow-speech check that ignores silent input, and the intonation adjustment.
func EnhancedThresholds() Thresholds {
	th := DefaultThresholds()
	th.WideRange = 300
	th.SlowNeedsSpeech = true
	th.AdjustIntonation = true
	return th
}

// Preset returns the thresholds registered under name. An empty name selects
// the basic preset.
func Preset(name string) (Thresholds, error) {
	switch name {
	case "", PresetBasic:
		return DefaultThresholds(), nil
	case PresetEnhanced:
		return EnhancedThresholds(), nil
	default:
		return Thresholds{}, fmt.Errorf("scoring: unknown preset %q", name)
	}
}

// Input carries everything the synthesizer reads. Acoustic and Prosody may be
// nil.
type Input struct {
	ReferenceText     string
	RecognizedText    string
	ReferencePhonemes []string
	PredictedPhonemes []string
	Alignment         []types.AlignedSegment
	GOP               []float64
	Acoustic          *types.AcousticFeatures
	Prosody           *types.ProsodyFeatures
	StressIssues      []string
	IntonationIssues  []string
}

// Result is the output of [Synthesize].
type Result struct {
	Scores types.ProficiencyScores

	// ReferenceScore is the holistic score mapped to 0..1.
	ReferenceScore float64

	Comment string
}

// Synthesize computes all scores. It never fails: missing inputs fall back to
// the documented defaults.
func Synthesize(in Input, th Thresholds) Result {
	var s types.ProficiencyScores
	s.Acoustic = acousticScore(in.Acoustic, in.GOP, th)
	s.Segmental = Segmental(in.Alignment, len(in.ReferencePhonemes))
	s.Holistic = Holistic(in.ReferenceText, in.RecognizedText)
	s.StressRhythm = penalize(stressRhythm(in.Acoustic, th), len(in.StressIssues), th.IssuePenalty)
	s.Intonation = penalize(intonation(in.Acoustic, th), len(in.IntonationIssues), th.IssuePenalty)
	if th.AdjustIntonation {
		s.Intonation = adjustIntonation(s.Intonation, len(in.IntonationIssues), th)
	}
	s.SpeedPause = speedPause(in.Acoustic, in.Prosody, th)
	s.Chunking = chunking(in.Acoustic, th)

	return Result{
		Scores:         s,
		ReferenceScore: s.Holistic / 5,
		Comment:        GeneralComment(s.Holistic, len(in.StressIssues), len(in.IntonationIssues), th),
	}
}

func acousticScore(f *types.AcousticFeatures, gop []float64, th Thresholds) float64 {
	if len(gop) > 0 {
		var sum float64
		for _, g := range gop {
			sum += g
		}
		return sum / float64(len(gop)) * 100
	}
	score := th.AcousticBase
	if f == nil {
		return score
	}
	if f.PitchStd < th.StablePitchStd {
		score += th.AcousticBonus
	}
	if f.EnergyStd < th.StableEnergyStd {
		score += th.AcousticBonus
	}
	return min(score, th.AcousticCap)
}

// Segmental maps the share of correct positions over refLen onto 1..5. An
// empty reference scores 3.
func Segmental(alignment []types.AlignedSegment, refLen int) float64 {
	if refLen == 0 {
		return 3
	}
	correct := types.CountErrors(alignment, types.ErrorCorrect)
	return 1 + 4*float64(correct)/float64(refLen)
}

// Holistic maps the case-insensitive text similarity of the reference and the
// recognized text onto 1..5.
func Holistic(reference, recognized string) float64 {
	return 1 + 4*Similarity(strings.ToLower(reference), strings.ToLower(recognized))
}

// Similarity is the indel-normalised ratio 2*LCS/(len(a)+len(b)) over
// runes. Two empty strings are fully similar.
func Similarity(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchr.LongestCommonSubsequence(a, b)) / float64(total)
}

func stressRhythm(f *types.AcousticFeatures, th Thresholds) float64 {
	if f == nil {
		return 3
	}
	switch std := f.PitchStd; {
	case std > th.RhythmGoodLow && std < th.RhythmGoodHigh:
		return 4
	case std > th.RhythmFairLow && std < th.RhythmFairHigh:
		return 3.5
	default:
		return 3
	}
}

func intonation(f *types.AcousticFeatures, th Thresholds) float64 {
	if f == nil {
		return 3
	}
	switch {
	case f.PitchRange > th.IntonationGoodRange:
		return 4
	case f.PitchRange > th.IntonationFairRange:
		return 3.5
	default:
		return 3
	}
}

func speedPause(f *types.AcousticFeatures, p *types.ProsodyFeatures, th Thresholds) float64 {
	if p != nil {
		switch r := p.SyllableRate; {
		case r >= th.RateGoodLow && r <= th.RateGoodHigh:
			return 4.5
		case r >= th.RateFairLow && r <= th.RateFairHigh:
			return 3.5
		default:
			return 2.5
		}
	}
	if f == nil {
		return 3.5
	}
	switch t := f.Tempo; {
	case t > th.TempoGoodLow && t < th.TempoGoodHigh:
		return 4
	case t > th.TempoFairLow && t < th.TempoFairHigh:
		return 3.5
	default:
		return 3
	}
}

func chunking(f *types.AcousticFeatures, th Thresholds) float64 {
	if f == nil {
		return 3.5
	}
	var rate float64
	if f.Duration > 0 {
		rate = float64(f.NumPauses) / f.Duration
	}
	if rate > th.PauseRateLow && rate < th.PauseRateHigh {
		return 4
	}
	return 3.5
}

func penalize(score float64, issues int, penalty float64) float64 {
	if issues == 0 {
		return score
	}
	return max(1, score-float64(issues)*penalty)
}

func adjustIntonation(score float64, issues int, th Thresholds) float64 {
	switch {
	case issues == 0:
		return min(5, score+th.CleanBonus)
	case issues >= th.ManyIssues:
		return max(1, score-th.IssuePenalty)
	default:
		return score
	}
}

// GeneralComment returns the sentence verdict for a holistic score, with
// issue counts appended. The result is never empty.
func GeneralComment(holistic float64, stressIssues, intonationIssues int, th Thresholds) string {
	var comment string
	switch {
	case holistic >= th.ExcellentAt:
		comment = "excellent"
	case holistic >= th.GoodAt:
		comment = "good"
	case holistic >= th.FairAt:
		comment = "fair"
	default:
		comment = "needs improvement"
	}
	if stressIssues > 0 {
		comment += fmt.Sprintf(" (%d stress issue(s))", stressIssues)
	}
	if intonationIssues > 0 {
		comment += fmt.Sprintf(" (%d intonation issue(s))", intonationIssues)
	}
	return comment
}
