package scoring

import "github.com/MrWong99/prosodia/pkg/types"

// Issue texts reported by the detectors.
const (
	IssueMonotonous     = "Monotonous speech - very little pitch variation"
	IssueNarrowRange    = "Very narrow pitch range - lacks expressiveness"
	IssueWideRange      = "Unusually wide pitch range - try to be more consistent"
	IssueTooFast        = "Speaking too fast - may affect clarity"
	IssueTooSlow        = "Speaking too slowly - lacks fluency"
	IssueFlatStress     = "Very flat pitch - insufficient stress variation"
	IssueWeakStress     = "Limited pitch variation - weak stress patterns"
	IssueUnmarkedStress = "Narrow pitch range - stress not clearly marked"
)

// DetectIntonationIssues inspects sentence prosody. Nil features yield no
// issues.
func DetectIntonationIssues(p *types.ProsodyFeatures, th Thresholds) []string {
	if p == nil {
		return nil
	}
	var issues []string
	if p.F0Std < th.MonotoneF0Std {
		issues = append(issues, IssueMonotonous)
	}
	switch {
	case p.F0Range < th.NarrowRange:
		issues = append(issues, IssueNarrowRange)
	case th.WideRange > 0 && p.F0Range > th.WideRange:
		issues = append(issues, IssueWideRange)
	}
	switch {
	case p.SyllableRate > th.FastRate:
		issues = append(issues, IssueTooFast)
	case p.SyllableRate < th.SlowRate && (!th.SlowNeedsSpeech || p.SyllableRate > 0):
		issues = append(issues, IssueTooSlow)
	}
	return issues
}

// DetectStressIssues checks whether pitch movement is strong enough to mark
// lexical stress. It only reports when at least one word carries expected
// stress.
func DetectStressIssues(words []types.WordPhonemes, p *types.ProsodyFeatures, th Thresholds) []string {
	if p == nil || !anyStress(words) {
		return nil
	}
	var issues []string
	switch {
	case p.F0Std < th.FlatStressStd:
		issues = append(issues, IssueFlatStress)
	case p.F0Std < th.WeakStressStd:
		issues = append(issues, IssueWeakStress)
	}
	if p.F0Range < th.NarrowStressSpan {
		issues = append(issues, IssueUnmarkedStress)
	}
	return issues
}

func anyStress(words []types.WordPhonemes) bool {
	for _, w := range words {
		if len(w.StressPositions) > 0 {
			return true
		}
	}
	return false
}
