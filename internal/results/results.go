// Package results derives display values from an analysis report: score
// percentages, colour bands, prosody statuses and an overall assessment.
package results

import (
	"github.com/MrWong99/prosodia/internal/report"
	"github.com/MrWong99/prosodia/pkg/types"
)

// Band thresholds on the 0..100 percentage scale.
const (
	ExcellentAt = 80
	GoodAt      = 60
)

// Band is the colour band of a percentage.
type Band string

const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs_improvement"
)

// Colour returns the display colour for b.
func (b Band) Colour() string {
	switch b {
	case BandExcellent:
		return "#28a745"
	case BandGood:
		return "#ffc107"
	default:
		return "#dc3545"
	}
}

// Prosody status labels.
const (
	StatusVaried     = "Varied"
	StatusMonotonous = "Monotonous"
	StatusNormal     = "Normal"
	StatusRising     = "Rising"
	StatusFalling    = "Falling"
	StatusFluent     = "Fluent"
	StatusFragmented = "Fragmented"
	StatusNatural    = "Natural"
	StatusAwkward    = "Awkward"
)

// Overall assessment texts.
const (
	AssessExcellent = "Excellent pronunciation!"
	AssessGood      = "Good pronunciation with room for improvement"
	AssessPractice  = "Keep practicing to improve your pronunciation"
)

// Score is one dimension as displayed.
type Score struct {
	Name    string  `json:"name"`
	Raw     float64 `json:"raw"`
	Percent float64 `json:"percent"`
	Band    Band    `json:"band"`
}

// Prosody holds the sentence-level status labels.
type Prosody struct {
	Intonation    string `json:"intonation"`
	SentenceEnd   string `json:"sentence_end"`
	SpeechFlow    string `json:"speech_flow"`
	Pauses        string `json:"pauses"`
	PauseSentence string `json:"pause_sentence,omitempty"`
}

// Phoneme is a phoneme detail with its score as a percentage.
type Phoneme struct {
	Phoneme string  `json:"phoneme"`
	IPA     string  `json:"ipa"`
	Percent float64 `json:"percent"`
	Error   string  `json:"error"`
}

// Word is a word record as displayed.
type Word struct {
	Word           string    `json:"word"`
	Index          int       `json:"index"`
	Percent        float64   `json:"percent"`
	Band           Band      `json:"band"`
	IPA            string    `json:"ipa"`
	Unintelligible bool      `json:"unintelligible"`
	Phonemes       []Phoneme `json:"phonemes"`
}

// Summary is the display view of one report.
type Summary struct {
	Comment          string             `json:"comment"`
	RecognizedText   string             `json:"recognized_text"`
	ReferencePercent float64            `json:"reference_percent"`
	Scores           []Score            `json:"scores"`
	AveragePercent   float64            `json:"average_percent"`
	Assessment       string             `json:"assessment"`
	Prosody          Prosody            `json:"prosody"`
	Words            []Word             `json:"words"`
	PhoneErrors      []types.PhoneError `json:"phone_errors,omitempty"`
}

// Process builds the display summary of r.
func Process(r *types.AnalysisReport) Summary {
	s := Summary{
		Comment:          r.GeneralComment,
		RecognizedText:   r.RecognizedText,
		ReferencePercent: r.ReferenceScore * 100,
		Prosody:          ProsodyStatus(r.Sentence),
		PhoneErrors:      r.PhoneErrors,
	}
	var sum float64
	dims := r.Scores.Dimensions()
	for _, d := range dims {
		p := Percent(d)
		sum += p
		s.Scores = append(s.Scores, Score{Name: d.Name, Raw: d.Score, Percent: p, Band: BandOf(p)})
	}
	s.AveragePercent = sum / float64(len(dims))
	s.Assessment = Assessment(s.AveragePercent)

	for _, w := range r.Words {
		pct := w.Score * 100
		dw := Word{
			Word:           w.Word,
			Index:          w.Index,
			Percent:        pct,
			Band:           BandOf(pct),
			Unintelligible: w.Unintelligible,
		}
		for i, p := range w.Phonemes {
			if i > 0 {
				dw.IPA += " "
			}
			dw.IPA += p.IPA
			dw.Phonemes = append(dw.Phonemes, Phoneme{
				Phoneme: p.Phoneme,
				IPA:     p.IPA,
				Percent: p.Score * 100,
				Error:   p.Error.String(),
			})
		}
		s.Words = append(s.Words, dw)
	}
	return s
}

// Decode parses a wire-format response into a report.
func Decode(data []byte) (*types.AnalysisReport, error) {
	return report.Unmarshal(data)
}

// Percent maps a dimension to 0..100. Scores on the 1..5 scale are
// multiplied by 20; 0..100 scores are used as they are. Other ranges are
// rescaled linearly.
func Percent(d types.Dimension) float64 {
	var p float64
	switch {
	case d.Min == 1 && d.Max == 5:
		p = d.Score * 20
	case d.Max == 100:
		p = d.Score
	case d.Max > d.Min:
		p = (d.Score - d.Min) / (d.Max - d.Min) * 100
	default:
		return d.Score
	}
	return max(0, min(100, p))
}

// BandOf returns the colour band of a percentage.
func BandOf(pct float64) Band {
	switch {
	case pct >= ExcellentAt:
		return BandExcellent
	case pct >= GoodAt:
		return BandGood
	default:
		return BandNeedsImprovement
	}
}

// Assessment returns the overall assessment for a mean percentage.
func Assessment(avg float64) string {
	switch BandOf(avg) {
	case BandExcellent:
		return AssessExcellent
	case BandGood:
		return AssessGood
	default:
		return AssessPractice
	}
}

// ProsodyStatus maps sentence diagnostics to display labels.
func ProsodyStatus(sd types.SentenceDiagnostics) Prosody {
	p := Prosody{
		Intonation:  StatusVaried,
		SentenceEnd: StatusNormal,
		SpeechFlow:  StatusFluent,
		Pauses:      StatusNatural,
	}
	if sd.Monotonous {
		p.Intonation = StatusMonotonous
	}
	switch sd.SentenceEnd {
	case report.SentenceEndRising:
		p.SentenceEnd = StatusRising
	case report.SentenceEndFalling:
		p.SentenceEnd = StatusFalling
	}
	if sd.Fragmented {
		p.SpeechFlow = StatusFragmented
	}
	if sd.AwkwardPause.Flag {
		p.Pauses = StatusAwkward
		p.PauseSentence = sd.AwkwardPause.Span
	}
	return p
}
