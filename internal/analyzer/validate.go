package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrWong99/prosodia/pkg/audio"
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("analyzer: invalid input")

// Limits bound the accepted input.
type Limits struct {
	MaxTextChars  int
	MaxAudioBytes int
	MinSeconds    float64
	MaxSeconds    float64
}

// DefaultLimits returns the standard input limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTextChars:  1000,
		MaxAudioBytes: 10 << 20,
		MinSeconds:    0.5,
		MaxSeconds:    300,
	}
}

var validate = validator.New()

// Validate checks the reference text and the WAV buffer and returns the
// decoded clip. Every failed rule is reported; the returned error wraps
// [ErrInvalidInput].
func (l Limits) Validate(wav []byte, text string) (*audio.Clip, error) {
	var errs []error
	if err := validate.Var(strings.TrimSpace(text), fmt.Sprintf("required,max=%d", l.MaxTextChars)); err != nil {
		errs = append(errs, fieldErrors("text", err)...)
	}

	var clip *audio.Clip
	switch err := validate.Var(wav, fmt.Sprintf("required,min=1,max=%d", l.MaxAudioBytes)); {
	case err != nil:
		errs = append(errs, fieldErrors("audio", err)...)
	case !audio.HasRIFFHeader(wav):
		errs = append(errs, errors.New("audio: missing RIFF header"))
	default:
		c, err := audio.DecodeWAV(wav)
		if err != nil {
			errs = append(errs, fmt.Errorf("audio: %w", err))
			break
		}
		if d := c.Seconds(); d < l.MinSeconds || d > l.MaxSeconds {
			errs = append(errs, fmt.Errorf("audio: duration %.2fs outside [%.1fs, %.0fs]", d, l.MinSeconds, l.MaxSeconds))
			break
		}
		clip = c
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return clip, nil
}

func fieldErrors(field string, err error) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			out = append(out, fmt.Errorf("%s: must not be empty", field))
		case "max":
			out = append(out, fmt.Errorf("%s: longer than %s", field, fe.Param()))
		default:
			out = append(out, fmt.Errorf("%s: failed %q rule", field, fe.Tag()))
		}
	}
	return out
}
