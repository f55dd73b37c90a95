package align_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/prosodia/internal/align"
	"github.com/MrWong99/prosodia/pkg/types"
)

func seq(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// reconstruct returns the non-nil references and predictions in order.
func reconstruct(segs []types.AlignedSegment) (ref, pred []string) {
	for _, s := range segs {
		if s.Reference != nil {
			ref = append(ref, *s.Reference)
		}
		if s.Predicted != nil {
			pred = append(pred, *s.Predicted)
		}
	}
	return ref, pred
}

func checkInvariants(t *testing.T, ref, pred []string, segs []types.AlignedSegment) {
	t.Helper()
	gotRef, gotPred := reconstruct(segs)
	if !slices.Equal(gotRef, ref) {
		t.Errorf("reference reconstruction = %v, want %v", gotRef, ref)
	}
	if !slices.Equal(gotPred, pred) {
		t.Errorf("prediction reconstruction = %v, want %v", gotPred, pred)
	}
	for i, s := range segs {
		switch s.Error {
		case types.ErrorInsertion:
			if s.Reference != nil || s.Predicted == nil {
				t.Errorf("segment %d: insertion must have only a prediction", i)
			}
		case types.ErrorDeletion:
			if s.Predicted != nil || s.Reference == nil {
				t.Errorf("segment %d: deletion must have only a reference", i)
			}
		case types.ErrorCorrect, types.ErrorSubstitution:
			if s.Reference == nil || s.Predicted == nil {
				t.Errorf("segment %d: %v must have both sides", i, s.Error)
			}
		default:
			t.Errorf("segment %d: unexpected error type %v", i, s.Error)
		}
	}
}

func TestAlign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ref   string
		pred  string
		kinds []types.ErrorType
	}{
		{
			name:  "identical",
			ref:   "K AE T",
			pred:  "K AE T",
			kinds: []types.ErrorType{types.ErrorCorrect, types.ErrorCorrect, types.ErrorCorrect},
		},
		{
			name:  "substitution",
			ref:   "K AE T",
			pred:  "K AH T",
			kinds: []types.ErrorType{types.ErrorCorrect, types.ErrorSubstitution, types.ErrorCorrect},
		},
		{
			name:  "deletion",
			ref:   "S AE T",
			pred:  "S AE",
			kinds: []types.ErrorType{types.ErrorCorrect, types.ErrorCorrect, types.ErrorDeletion},
		},
		{
			name:  "insertion",
			ref:   "K AE T",
			pred:  "K AE T S",
			kinds: []types.ErrorType{types.ErrorCorrect, types.ErrorCorrect, types.ErrorCorrect, types.ErrorInsertion},
		},
		{
			name:  "empty prediction",
			ref:   "K AE",
			pred:  "",
			kinds: []types.ErrorType{types.ErrorDeletion, types.ErrorDeletion},
		},
		{
			name:  "empty reference",
			ref:   "",
			pred:  "AH",
			kinds: []types.ErrorType{types.ErrorInsertion},
		},
		{
			name: "both empty",
		},
	}

	a := align.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ref, pred := seq(tc.ref), seq(tc.pred)
			segs := a.Align(ref, pred)
			checkInvariants(t, ref, pred, segs)

			kinds := make([]types.ErrorType, len(segs))
			for i, s := range segs {
				kinds[i] = s.Error
			}
			if !slices.Equal(kinds, tc.kinds) {
				t.Errorf("kinds = %v, want %v", kinds, tc.kinds)
			}
		})
	}
}

func TestAlign_Priors(t *testing.T) {
	t.Parallel()

	segs := align.New().Align(seq("K AE T"), seq("AE D S"))
	want := map[types.ErrorType]float64{
		types.ErrorCorrect:      0.95,
		types.ErrorSubstitution: 0.3,
		types.ErrorDeletion:     0.2,
		types.ErrorInsertion:    0.4,
	}
	for _, s := range segs {
		if s.Confidence != want[s.Error] {
			t.Errorf("%v confidence = %v, want %v", s.Error, s.Confidence, want[s.Error])
		}
	}

	custom := align.New(align.WithPriors(align.Priors{Correct: 1, Substitution: 0, Deletion: 0, Insertion: 0}))
	for _, s := range custom.Align(seq("K"), seq("K")) {
		if s.Confidence != 1 {
			t.Errorf("custom prior not applied: %v", s.Confidence)
		}
	}
}

func TestAlign_SelfAlignmentIsAllCorrect(t *testing.T) {
	t.Parallel()

	inputs := []string{"DH AH", "HH AH L OW W ER L D", "AY", "S IH K S T IY N"}
	a := align.New()
	for _, in := range inputs {
		s := seq(in)
		for i, seg := range a.Align(s, s) {
			if seg.Error != types.ErrorCorrect {
				t.Errorf("%q segment %d = %v, want correct", in, i, seg.Error)
			}
		}
	}
}

func TestAlign_ReconstructionProperty(t *testing.T) {
	t.Parallel()

	symbols := []string{"AA", "B", "K", "T", "IY"}
	a := align.New()
	// Deterministic pseudo-random sequences.
	state := uint32(7)
	next := func(n int) int {
		state = state*1103515245 + 12345
		return int(state>>16) % n
	}
	for range 200 {
		ref := make([]string, next(8))
		for i := range ref {
			ref[i] = symbols[next(len(symbols))]
		}
		pred := make([]string, next(8))
		for i := range pred {
			pred[i] = symbols[next(len(symbols))]
		}
		checkInvariants(t, ref, pred, a.Align(ref, pred))
		if d := align.Distance(ref, pred); d > max(len(ref), len(pred)) {
			t.Fatalf("distance %d exceeds upper bound for %v / %v", d, ref, pred)
		}
	}
}

func TestAlign_FallbackWhenTooLarge(t *testing.T) {
	t.Parallel()

	a := align.New(align.WithMaxCells(4))
	ref, pred := seq("K AE T S"), seq("K AH")
	segs := a.Align(ref, pred)
	checkInvariants(t, ref, pred, segs)

	want := []struct {
		kind types.ErrorType
		conf float64
	}{
		{types.ErrorCorrect, 0.9},
		{types.ErrorSubstitution, 0.5},
		{types.ErrorDeletion, 0.5},
		{types.ErrorDeletion, 0.5},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d", len(segs), len(want))
	}
	for i, w := range want {
		if segs[i].Error != w.kind || segs[i].Confidence != w.conf {
			t.Errorf("segment %d = %v/%v, want %v/%v", i, segs[i].Error, segs[i].Confidence, w.kind, w.conf)
		}
	}
}

func TestOpcodes(t *testing.T) {
	t.Parallel()

	ops := align.Opcodes(seq("a b c d"), seq("a x c"))
	want := []align.Opcode{
		{Tag: align.OpEqual, RefStart: 0, RefEnd: 1, PredStart: 0, PredEnd: 1},
		{Tag: align.OpReplace, RefStart: 1, RefEnd: 2, PredStart: 1, PredEnd: 2},
		{Tag: align.OpEqual, RefStart: 2, RefEnd: 3, PredStart: 2, PredEnd: 3},
		{Tag: align.OpDelete, RefStart: 3, RefEnd: 4, PredStart: 3, PredEnd: 3},
	}
	if !slices.Equal(ops, want) {
		t.Fatalf("ops = %+v\nwant  %+v", ops, want)
	}
	if d := align.Distance(seq("k i t t e n"), seq("s i t t i n g")); d != 3 {
		t.Errorf("Distance(kitten, sitting) = %d, want 3", d)
	}
}

func TestDistance_MultiCharacterSymbols(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ref, pred []string
		want      int
	}{
		{"one substituted phoneme", []string{"th", "ə"}, []string{"t", "ə"}, 1},
		{"diphthong dropped", []string{"k", "aɪ", "t"}, []string{"k", "t"}, 1},
		{"empty prediction", []string{"ʃ", "iː"}, nil, 2},
		{"identical", []string{"tʃ", "ɜː", "tʃ"}, []string{"tʃ", "ɜː", "tʃ"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := align.Distance(tc.ref, tc.pred); got != tc.want {
				t.Errorf("Distance(%q, %q) = %d, want %d", tc.ref, tc.pred, got, tc.want)
			}
			edits := 0
			for _, op := range align.Opcodes(tc.ref, tc.pred) {
				if op.Tag != align.OpEqual {
					edits += max(op.RefEnd-op.RefStart, op.PredEnd-op.PredStart)
				}
			}
			if edits != tc.want {
				t.Errorf("opcode edits = %d, want %d", edits, tc.want)
			}
		})
	}
}
