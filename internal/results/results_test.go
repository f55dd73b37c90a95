package results_test

import (
	"math"
	"testing"

	"github.com/MrWong99/prosodia/internal/report"
	"github.com/MrWong99/prosodia/internal/results"
	"github.com/MrWong99/prosodia/pkg/types"
)

func sampleReport() *types.AnalysisReport {
	return &types.AnalysisReport{
		GeneralComment: "good",
		RecognizedText: "the cat",
		ReferenceScore: 0.85,
		Scores: types.ProficiencyScores{
			Acoustic: 90, Holistic: 4.25, Segmental: 5, Chunking: 4,
			SpeedPause: 4.5, StressRhythm: 4, Intonation: 3.5,
		},
		Words: []types.WordRecord{
			{Word: "the", Index: 0, Score: 0.85, Phonemes: []types.PhonemeDetail{
				{Phoneme: "DH", IPA: "ð", Score: 0.9, Error: types.ErrorCorrect},
				{Phoneme: "AH", IPA: "ʌ", Score: 0.3, Error: types.ErrorSubstitution},
			}},
			{Word: "cat", Index: 1, Score: 0.85},
		},
		Sentence: types.SentenceDiagnostics{SentenceEnd: report.SentenceEndNormal},
	}
}

func TestProcess(t *testing.T) {
	t.Parallel()

	s := results.Process(sampleReport())
	if len(s.Scores) != 7 {
		t.Fatalf("got %d scores, want 7", len(s.Scores))
	}
	wantPct := []float64{90, 85, 100, 80, 90, 80, 70}
	var sum float64
	for i, sc := range s.Scores {
		if math.Abs(sc.Percent-wantPct[i]) > 1e-9 {
			t.Errorf("%s percent = %v, want %v", sc.Name, sc.Percent, wantPct[i])
		}
		sum += wantPct[i]
	}
	if math.Abs(s.AveragePercent-sum/7) > 1e-9 {
		t.Errorf("AveragePercent = %v, want %v", s.AveragePercent, sum/7)
	}
	if s.Assessment != results.AssessExcellent {
		t.Errorf("Assessment = %q", s.Assessment)
	}
	if math.Abs(s.ReferencePercent-85) > 1e-9 {
		t.Errorf("ReferencePercent = %v, want 85", s.ReferencePercent)
	}
	the := s.Words[0]
	if the.IPA != "ð ʌ" || len(the.Phonemes) != 2 {
		t.Errorf("word view = %+v", the)
	}
	if p := the.Phonemes[1]; math.Abs(p.Percent-30) > 1e-9 || p.Error != "substitution" {
		t.Errorf("phoneme view = %+v", p)
	}
	if s.Prosody != (results.Prosody{Intonation: "Varied", SentenceEnd: "Normal", SpeechFlow: "Fluent", Pauses: "Natural"}) {
		t.Errorf("Prosody = %+v", s.Prosody)
	}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    types.Dimension
		want float64
	}{
		{"likert", types.Dimension{Score: 3.5, Min: 1, Max: 5}, 70},
		{"likert clamps", types.Dimension{Score: 6, Min: 1, Max: 5}, 100},
		{"percentage", types.Dimension{Score: 72, Min: 0, Max: 100}, 72},
		{"percentage clamps", types.Dimension{Score: -4, Min: 0, Max: 100}, 0},
		{"other range", types.Dimension{Score: 5, Min: 0, Max: 10}, 50},
		{"degenerate range", types.Dimension{Score: 7, Min: 2, Max: 2}, 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := results.Percent(tc.d); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Percent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBandAndAssessment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pct    float64
		band   results.Band
		assess string
	}{
		{95, results.BandExcellent, results.AssessExcellent},
		{80, results.BandExcellent, results.AssessExcellent},
		{79.9, results.BandGood, results.AssessGood},
		{60, results.BandGood, results.AssessGood},
		{10, results.BandNeedsImprovement, results.AssessPractice},
	}
	for _, tc := range tests {
		if got := results.BandOf(tc.pct); got != tc.band {
			t.Errorf("BandOf(%v) = %v, want %v", tc.pct, got, tc.band)
		}
		if got := results.Assessment(tc.pct); got != tc.assess {
			t.Errorf("Assessment(%v) = %q, want %q", tc.pct, got, tc.assess)
		}
	}
	if results.BandExcellent.Colour() == results.BandNeedsImprovement.Colour() {
		t.Error("bands share a colour")
	}
}

func TestProsodyStatus(t *testing.T) {
	t.Parallel()

	got := results.ProsodyStatus(types.SentenceDiagnostics{
		Monotonous:   true,
		SentenceEnd:  report.SentenceEndRising,
		Fragmented:   true,
		AwkwardPause: types.AwkwardPause{Flag: true, Span: "the [pause] cat"},
	})
	want := results.Prosody{
		Intonation:    results.StatusMonotonous,
		SentenceEnd:   results.StatusRising,
		SpeechFlow:    results.StatusFragmented,
		Pauses:        results.StatusAwkward,
		PauseSentence: "the [pause] cat",
	}
	if got != want {
		t.Errorf("ProsodyStatus = %+v, want %+v", got, want)
	}
	if got := results.ProsodyStatus(types.SentenceDiagnostics{SentenceEnd: report.SentenceEndFalling}); got.SentenceEnd != results.StatusFalling {
		t.Errorf("falling end = %q", got.SentenceEnd)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	const wire = `{"data":{"script_text":"the cat","general_comment":"fair","stt_recog":"the cap",
		"score_of_refernce":0.7,
		"align_info":[{"word":"cat","word_idx":1,"ref_ph":"T","ref_ph_ipa":["t"],"ref_ph_score":0.3,"ref_ph_adjusted_score":0.25,"phone_error_type":"substitution"}],
		"feedback":{"sentence_detail":{"is_monotonous":true,"prosody_of_sentence_end":"normal"},
			"word_detail":[{"word":"the","word_idx":0,"score":0.7},{"word":"cat","word_idx":1,"score":0.7,"stress_error":{"expected_stress":[1],"has_stress":true}}],
			"phone_detail":[]},
		"proficiencyScore":[{"name":"EN_HOLISTIC","score":3.8,"min":1,"max":5},{"name":"bogus","score":1,"min":0,"max":1}]}}`

	r, err := results.Decode([]byte(wire))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Scores.Holistic != 3.8 || r.RecognizedText != "the cap" || !r.Sentence.Monotonous {
		t.Errorf("report = %+v", r)
	}
	if len(r.Words) != 2 || len(r.Words[1].Phonemes) != 1 || r.Words[1].Phonemes[0].Score != 0.25 {
		t.Errorf("words = %+v", r.Words)
	}
	if r.Words[1].StressError == nil || r.Words[0].StressError != nil {
		t.Errorf("stress errors = %+v / %+v", r.Words[0].StressError, r.Words[1].StressError)
	}
	s := results.Process(r)
	if s.Prosody.Intonation != results.StatusMonotonous {
		t.Errorf("Intonation = %q", s.Prosody.Intonation)
	}

	if _, err := results.Decode([]byte("not json")); err == nil {
		t.Error("expected error")
	}
}
