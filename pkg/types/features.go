package types

// AcousticFeatures summarises the signal-level properties of an utterance.
// A nil *AcousticFeatures means extraction failed or was skipped.
type AcousticFeatures struct {
	// Pitch statistics in Hz over voiced frames only. Zero when no frame was
	// voiced.
	PitchMean  float64
	PitchStd   float64
	PitchRange float64

	// Frame RMS energy statistics.
	EnergyMean float64
	EnergyStd  float64

	// SpectralCentroid is the mean spectral centroid in Hz.
	SpectralCentroid float64

	// ZeroCrossingRate is the mean per-frame zero-crossing rate.
	ZeroCrossingRate float64

	// Tempo is the estimated onset tempo in beats per minute.
	Tempo float64

	// NumPauses is the number of gaps between non-silent intervals.
	NumPauses int

	// Duration is the signal length in seconds.
	Duration float64
}

// ProsodyFeatures holds suprasegmental measurements of an utterance.
// A nil *ProsodyFeatures means extraction failed or was skipped.
type ProsodyFeatures struct {
	F0Mean        float64 `json:"f0_mean"`
	F0Std         float64 `json:"f0_std"`
	F0Range       float64 `json:"f0_range"`
	IntensityMean float64 `json:"intensity_mean"`
	F1            float64 `json:"f1"`
	F2            float64 `json:"f2"`
	Duration      float64 `json:"duration"`
	SyllableRate  float64 `json:"syllable_rate"`
}
