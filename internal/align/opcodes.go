package align

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// OpTag is the kind of an edit operation.
type OpTag int

const (
	OpEqual OpTag = iota
	OpReplace
	OpDelete
	OpInsert
)

// String returns the conventional opcode name.
func (t OpTag) String() string {
	switch t {
	case OpEqual:
		return "equal"
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// Opcode describes how ref[RefStart:RefEnd] maps onto pred[PredStart:PredEnd].
// For OpReplace both spans have the same length.
type Opcode struct {
	Tag                OpTag
	RefStart, RefEnd   int
	PredStart, PredEnd int
}

// Opcodes returns a minimal unit-cost edit script turning ref into pred.
// Backtracking prefers a diagonal step (equal or replace), then a deletion,
// then an insertion. Adjacent steps of the same kind are merged.
func Opcodes(ref, pred []string) []Opcode {
	n, m := len(ref), len(pred)

	// dist[i][j] = edit distance between ref[i:] and pred[j:]. Computing the
	// suffix table lets the walk run forwards and emit opcodes in order.
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
	}
	for i := n; i >= 0; i-- {
		for j := m; j >= 0; j-- {
			switch {
			case i == n:
				dist[i][j] = m - j
			case j == m:
				dist[i][j] = n - i
			default:
				sub := dist[i+1][j+1]
				if ref[i] != pred[j] {
					sub++
				}
				dist[i][j] = min(sub, dist[i+1][j]+1, dist[i][j+1]+1)
			}
		}
	}

	var ops []Opcode
	emit := func(tag OpTag, i, j, di, dj int) {
		if k := len(ops) - 1; k >= 0 && ops[k].Tag == tag && ops[k].RefEnd == i && ops[k].PredEnd == j {
			ops[k].RefEnd += di
			ops[k].PredEnd += dj
			return
		}
		ops = append(ops, Opcode{Tag: tag, RefStart: i, RefEnd: i + di, PredStart: j, PredEnd: j + dj})
	}

	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && ref[i] == pred[j] && dist[i][j] == dist[i+1][j+1]:
			emit(OpEqual, i, j, 1, 1)
			i, j = i+1, j+1
		case i < n && j < m && dist[i][j] == dist[i+1][j+1]+1:
			emit(OpReplace, i, j, 1, 1)
			i, j = i+1, j+1
		case i < n && dist[i][j] == dist[i+1][j]+1:
			emit(OpDelete, i, j, 1, 0)
			i++
		default:
			emit(OpInsert, i, j, 0, 1)
			j++
		}
	}
	return ops
}

// Distance returns the unit-cost edit distance between ref and pred.
func Distance(ref, pred []string) int {
	a, b := encode(ref, pred)
	return levenshtein.ComputeDistance(a, b)
}

// encode maps every distinct symbol to one private-use rune so that a
// multi-character phoneme counts as a single edit.
func encode(ref, pred []string) (string, string) {
	const base = 0xF0000
	ids := make(map[string]rune)
	enc := func(seq []string) string {
		var sb strings.Builder
		for _, sym := range seq {
			r, ok := ids[sym]
			if !ok {
				r = base + rune(len(ids))
				ids[sym] = r
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}
	return enc(ref), enc(pred)
}
