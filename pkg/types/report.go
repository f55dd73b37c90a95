package types

// Dimension names as they appear in the proficiencyScore list.
const (
	DimAcoustic     = "acoustic"
	DimHolistic     = "EN_HOLISTIC"
	DimSegmental    = "EN_SEGMENTAL"
	DimChunking     = "EN_CHUNKING"
	DimSpeedPause   = "EN_SPEED_PAUSE"
	DimStressRhythm = "EN_STRESS_RHYTHM"
	DimIntonation   = "EN_INTONATION"
)

// ProficiencyScores holds the seven scoring dimensions. Acoustic is on a
// 0..100 scale; every other dimension is on 1..5.
type ProficiencyScores struct {
	Acoustic     float64
	Holistic     float64
	Segmental    float64
	Chunking     float64
	SpeedPause   float64
	StressRhythm float64
	Intonation   float64
}

// Dimension is one named entry of the proficiency score list.
type Dimension struct {
	Name  string
	Score float64
	Min   float64
	Max   float64
}

// Dimensions returns the scores in their fixed wire order.
func (p ProficiencyScores) Dimensions() []Dimension {
	return []Dimension{
		{Name: DimAcoustic, Score: p.Acoustic, Min: 0, Max: 100},
		{Name: DimHolistic, Score: p.Holistic, Min: 1, Max: 5},
		{Name: DimSegmental, Score: p.Segmental, Min: 1, Max: 5},
		{Name: DimChunking, Score: p.Chunking, Min: 1, Max: 5},
		{Name: DimSpeedPause, Score: p.SpeedPause, Min: 1, Max: 5},
		{Name: DimStressRhythm, Score: p.StressRhythm, Min: 1, Max: 5},
		{Name: DimIntonation, Score: p.Intonation, Min: 1, Max: 5},
	}
}

// Set assigns the score for a named dimension. Unknown names are ignored and
// reported as false.
func (p *ProficiencyScores) Set(name string, score float64) bool {
	switch name {
	case DimAcoustic:
		p.Acoustic = score
	case DimHolistic:
		p.Holistic = score
	case DimSegmental:
		p.Segmental = score
	case DimChunking:
		p.Chunking = score
	case DimSpeedPause:
		p.SpeedPause = score
	case DimStressRhythm:
		p.StressRhythm = score
	case DimIntonation:
		p.Intonation = score
	default:
		return false
	}
	return true
}

// StressError describes the expected stress pattern of a word.
type StressError struct {
	ExpectedStress []int
	HasStress      bool
}

// PhonemeDetail is a per-phoneme entry attached to a word record.
type PhonemeDetail struct {
	Phoneme string
	IPA     string
	Score   float64
	Error   ErrorType
}

// WordRecord is the per-word entry of a report.
type WordRecord struct {
	Word           string
	Index          int
	Score          float64
	PhonemeCount   int
	Unintelligible bool
	EqualStress    bool

	// StressError is nil when the word has no stressed positions.
	StressError *StressError

	// Phonemes are the alignment entries assigned to this word.
	Phonemes []PhonemeDetail
}

// AwkwardPause flags unnatural pausing. Span is reserved for the offending
// stretch of text and is currently always empty.
type AwkwardPause struct {
	Flag bool
	Span string
}

// SentenceDiagnostics are the sentence-level feedback flags.
type SentenceDiagnostics struct {
	Monotonous       bool
	SentenceEnd      string
	Fragmented       bool
	AwkwardPause     AwkwardPause
	StressIssues     []string
	IntonationIssues []string

	// Prosody is attached when prosody extraction succeeded.
	Prosody *ProsodyFeatures
}

// AlignEntry is one alignment position as presented to clients.
type AlignEntry struct {
	Word          string
	WordIndex     int
	RefPhoneme    string
	RefIPA        []string
	Score         float64
	AdjustedScore float64
	Error         ErrorType
}

// PhoneError describes one mispronounced position for the phone-level view.
type PhoneError struct {
	Word       string
	WordIndex  int
	Error      ErrorType
	Tag        string
	Definition string
	SpellView  string
}

// AnalysisReport is the root result of one analysis. It is created per call
// and not modified after it is returned.
type AnalysisReport struct {
	ScriptText            string
	RecognizedText        string
	ReferencePhonemes     []string
	PredictedPhonemes     []string
	ReferenceScore        float64
	AdjustedSentenceScore float64
	GeneralComment        string
	Alignment             []AlignEntry
	Scores                ProficiencyScores
	Words                 []WordRecord
	Sentence              SentenceDiagnostics
	PhoneErrors           []PhoneError
}
