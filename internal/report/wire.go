package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/prosodia/pkg/types"
)

type envelope struct {
	Data wireReport `json:"data"`
}

type wirePhonemes struct {
	Sequence string `json:"phoneme_sequence"`
	Number   int    `json:"phoneme_number"`
}

type wireReport struct {
	ScriptText            string          `json:"script_text"`
	ReferencePhoneme      wirePhonemes    `json:"reference_phoneme"`
	PredictPhoneme        wirePhonemes    `json:"predict_phoneme"`
	ScoreOfReference      float64         `json:"score_of_refernce"`
	AdjustedSentenceScore float64         `json:"adjusted_sentence_score"`
	GeneralComment        string          `json:"general_comment"`
	STTRecog              string          `json:"stt_recog"`
	AlignInfo             []wireAlign     `json:"align_info"`
	Feedback              wireFeedback    `json:"feedback"`
	ProficiencyScore      []wireDimension `json:"proficiencyScore"`
}

type wireAlign struct {
	Word          string          `json:"word"`
	WordIdx       int             `json:"word_idx"`
	RefPh         string          `json:"ref_ph"`
	RefPhIPA      []string        `json:"ref_ph_ipa"`
	RefPhScore    float64         `json:"ref_ph_score"`
	AdjustedScore float64         `json:"ref_ph_adjusted_score"`
	ErrorType     types.ErrorType `json:"phone_error_type"`
}

type wireFeedback struct {
	SentenceDetail wireSentence `json:"sentence_detail"`
	WordDetail     []wireWord   `json:"word_detail"`
	PhoneDetail    []wirePhone  `json:"phone_detail"`
}

type wirePause struct {
	Flag     bool   `json:"flag"`
	Sentence string `json:"sentence"`
}

type wireSentence struct {
	IsMonotonous         bool                   `json:"is_monotonous"`
	ProsodyOfSentenceEnd string                 `json:"prosody_of_sentence_end"`
	FragmentedSpeech     bool                   `json:"fragmented_speech"`
	AwkwardPause         wirePause              `json:"awkward_pause"`
	StressIssues         []string               `json:"stress_issues,omitempty"`
	IntonationIssues     []string               `json:"intonation_issues,omitempty"`
	ProsodyFeatures      *types.ProsodyFeatures `json:"prosody_features,omitempty"`
}

type wireStress struct {
	ExpectedStress []int `json:"expected_stress,omitempty"`
	HasStress      bool  `json:"has_stress,omitempty"`
}

type wireWord struct {
	Word           string     `json:"word"`
	Score          float64    `json:"score"`
	WordIdx        int        `json:"word_idx"`
	PhCnt          int        `json:"ph_cnt"`
	Unintelligible bool       `json:"unintelligible"`
	EqualStress    bool       `json:"equal_stress"`
	StressError    wireStress `json:"stress_error"`
}

type wirePhone struct {
	Word       string          `json:"word"`
	WordIdx    int             `json:"word_idx"`
	ErrorType  types.ErrorType `json:"error_type"`
	ErrorTag   string          `json:"error_tag"`
	Definition string          `json:"definition"`
	SpellView  string          `json:"spell_view"`
}

type wireDimension struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Marshal encodes r in the shared API wire shape.
func Marshal(r *types.AnalysisReport) ([]byte, error) {
	b, err := json.Marshal(envelope{Data: toWire(r)})
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return b, nil
}

// ToMap returns the wire shape of r as a generic map.
func ToMap(r *types.AnalysisReport) (map[string]any, error) {
	b, err := Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("report: to map: %w", err)
	}
	return m, nil
}

// Unmarshal decodes a wire-shape response. Word records get their phoneme
// details from the alignment entries, as [Builder.Build] does.
func Unmarshal(data []byte) (*types.AnalysisReport, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("report: unmarshal: %w", err)
	}
	return fromWire(env.Data), nil
}

func toWire(r *types.AnalysisReport) wireReport {
	w := wireReport{
		ScriptText:            r.ScriptText,
		ReferencePhoneme:      wirePhonemes{types.JoinSymbols(r.ReferencePhonemes), len(r.ReferencePhonemes)},
		PredictPhoneme:        wirePhonemes{types.JoinSymbols(r.PredictedPhonemes), len(r.PredictedPhonemes)},
		ScoreOfReference:      r.ReferenceScore,
		AdjustedSentenceScore: r.AdjustedSentenceScore,
		GeneralComment:        r.GeneralComment,
		STTRecog:              r.RecognizedText,
		AlignInfo:             make([]wireAlign, 0, len(r.Alignment)),
		ProficiencyScore:      make([]wireDimension, 0, 7),
		Feedback: wireFeedback{
			SentenceDetail: wireSentence{
				IsMonotonous:         r.Sentence.Monotonous,
				ProsodyOfSentenceEnd: r.Sentence.SentenceEnd,
				FragmentedSpeech:     r.Sentence.Fragmented,
				AwkwardPause:         wirePause{r.Sentence.AwkwardPause.Flag, r.Sentence.AwkwardPause.Span},
				StressIssues:         r.Sentence.StressIssues,
				IntonationIssues:     r.Sentence.IntonationIssues,
				ProsodyFeatures:      r.Sentence.Prosody,
			},
			WordDetail:  make([]wireWord, 0, len(r.Words)),
			PhoneDetail: make([]wirePhone, 0, len(r.PhoneErrors)),
		},
	}
	for _, a := range r.Alignment {
		w.AlignInfo = append(w.AlignInfo, wireAlign{
			Word:          a.Word,
			WordIdx:       a.WordIndex,
			RefPh:         a.RefPhoneme,
			RefPhIPA:      a.RefIPA,
			RefPhScore:    a.Score,
			AdjustedScore: a.AdjustedScore,
			ErrorType:     a.Error,
		})
	}
	for _, wr := range r.Words {
		ww := wireWord{
			Word:           wr.Word,
			Score:          wr.Score,
			WordIdx:        wr.Index,
			PhCnt:          wr.PhonemeCount,
			Unintelligible: wr.Unintelligible,
			EqualStress:    wr.EqualStress,
		}
		if wr.StressError != nil {
			ww.StressError = wireStress{wr.StressError.ExpectedStress, wr.StressError.HasStress}
		}
		w.Feedback.WordDetail = append(w.Feedback.WordDetail, ww)
	}
	for _, pe := range r.PhoneErrors {
		w.Feedback.PhoneDetail = append(w.Feedback.PhoneDetail, wirePhone{
			Word:       pe.Word,
			WordIdx:    pe.WordIndex,
			ErrorType:  pe.Error,
			ErrorTag:   pe.Tag,
			Definition: pe.Definition,
			SpellView:  pe.SpellView,
		})
	}
	for _, d := range r.Scores.Dimensions() {
		w.ProficiencyScore = append(w.ProficiencyScore, wireDimension(d))
	}
	return w
}

func fromWire(w wireReport) *types.AnalysisReport {
	sd := w.Feedback.SentenceDetail
	r := &types.AnalysisReport{
		ScriptText:            w.ScriptText,
		RecognizedText:        w.STTRecog,
		ReferencePhonemes:     strings.Fields(w.ReferencePhoneme.Sequence),
		PredictedPhonemes:     strings.Fields(w.PredictPhoneme.Sequence),
		ReferenceScore:        w.ScoreOfReference,
		AdjustedSentenceScore: w.AdjustedSentenceScore,
		GeneralComment:        w.GeneralComment,
		Sentence: types.SentenceDiagnostics{
			Monotonous:       sd.IsMonotonous,
			SentenceEnd:      sd.ProsodyOfSentenceEnd,
			Fragmented:       sd.FragmentedSpeech,
			AwkwardPause:     types.AwkwardPause{Flag: sd.AwkwardPause.Flag, Span: sd.AwkwardPause.Sentence},
			StressIssues:     sd.StressIssues,
			IntonationIssues: sd.IntonationIssues,
			Prosody:          sd.ProsodyFeatures,
		},
	}
	for _, d := range w.ProficiencyScore {
		r.Scores.Set(d.Name, d.Score)
	}
	for _, a := range w.AlignInfo {
		r.Alignment = append(r.Alignment, types.AlignEntry{
			Word:          a.Word,
			WordIndex:     a.WordIdx,
			RefPhoneme:    a.RefPh,
			RefIPA:        a.RefPhIPA,
			Score:         a.RefPhScore,
			AdjustedScore: a.AdjustedScore,
			Error:         a.ErrorType,
		})
	}
	for _, ww := range w.Feedback.WordDetail {
		wr := types.WordRecord{
			Word:           ww.Word,
			Index:          ww.WordIdx,
			Score:          ww.Score,
			PhonemeCount:   ww.PhCnt,
			Unintelligible: ww.Unintelligible,
			EqualStress:    ww.EqualStress,
		}
		if ww.StressError.HasStress || len(ww.StressError.ExpectedStress) > 0 {
			wr.StressError = &types.StressError{ExpectedStress: ww.StressError.ExpectedStress, HasStress: ww.StressError.HasStress}
		}
		r.Words = append(r.Words, wr)
	}
	for _, p := range w.Feedback.PhoneDetail {
		r.PhoneErrors = append(r.PhoneErrors, types.PhoneError{
			Word:       p.Word,
			WordIndex:  p.WordIdx,
			Error:      p.ErrorType,
			Tag:        p.ErrorTag,
			Definition: p.Definition,
			SpellView:  p.SpellView,
		})
	}
	Merge(r.Words, r.Alignment)
	return r
}
