package types

// ErrorType classifies one aligned position.
type ErrorType int

const (
	// ErrorUnknown is used for tokens that do not map to a known category.
	ErrorUnknown ErrorType = iota

	// ErrorCorrect means the predicted phoneme matches the reference.
	ErrorCorrect

	// ErrorSubstitution means a different phoneme was produced.
	ErrorSubstitution

	// ErrorDeletion means the reference phoneme has no predicted counterpart.
	ErrorDeletion

	// ErrorInsertion means a predicted phoneme has no reference counterpart.
	ErrorInsertion
)

// String returns the wire token for e. The token for a correct position is
// "correction"; clients depend on that spelling.
func (e ErrorType) String() string {
	switch e {
	case ErrorCorrect:
		return "correction"
	case ErrorSubstitution:
		return "substitution"
	case ErrorDeletion:
		return "deletion"
	case ErrorInsertion:
		return "insertion"
	default:
		return "unknown"
	}
}

// ParseErrorType maps a wire token back to an [ErrorType]. Unrecognised tokens
// return [ErrorUnknown].
func ParseErrorType(s string) ErrorType {
	switch s {
	case "correction", "correct":
		return ErrorCorrect
	case "substitution":
		return ErrorSubstitution
	case "deletion":
		return ErrorDeletion
	case "insertion":
		return ErrorInsertion
	default:
		return ErrorUnknown
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (e ErrorType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (e *ErrorType) UnmarshalText(b []byte) error {
	*e = ParseErrorType(string(b))
	return nil
}

// AlignedSegment is one position of a reference/predicted alignment.
//
// For insertions Reference is nil; for deletions Predicted is nil. Correct and
// substitution segments carry both sides.
type AlignedSegment struct {
	Reference  *string
	Predicted  *string
	Error      ErrorType
	Confidence float64
}

// Ref returns the reference symbol or "" when absent.
func (s AlignedSegment) Ref() string {
	if s.Reference == nil {
		return ""
	}
	return *s.Reference
}

// Pred returns the predicted symbol or "" when absent.
func (s AlignedSegment) Pred() string {
	if s.Predicted == nil {
		return ""
	}
	return *s.Predicted
}

// CountErrors returns how many segments carry the given error type.
func CountErrors(segs []AlignedSegment, e ErrorType) int {
	n := 0
	for _, s := range segs {
		if s.Error == e {
			n++
		}
	}
	return n
}
