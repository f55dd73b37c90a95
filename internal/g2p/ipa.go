package g2p

import (
	"strings"
	"unicode"
)

var arpabetIPA = map[string]string{
	"AA": "ɑ", "AE": "æ", "AH": "ʌ", "AO": "ɔ", "AW": "aʊ", "AX": "ə",
	"AY": "aɪ", "EH": "ɛ", "ER": "ɝ", "EY": "eɪ", "IH": "ɪ", "IX": "ɨ",
	"IY": "i", "OW": "oʊ", "OY": "ɔɪ", "UH": "ʊ", "UW": "u",
	"B": "b", "CH": "tʃ", "D": "d", "DH": "ð", "DX": "ɾ", "EL": "l̩",
	"EM": "m̩", "EN": "n̩", "F": "f", "G": "ɡ", "HH": "h", "JH": "dʒ",
	"K": "k", "L": "l", "M": "m", "N": "n", "NG": "ŋ", "P": "p", "Q": "ʔ",
	"R": "ɹ", "S": "s", "SH": "ʃ", "T": "t", "TH": "θ", "V": "v", "W": "w",
	"WH": "ʍ", "Y": "j", "Z": "z", "ZH": "ʒ",
}

// ToIPA maps an ARPABET symbol, with or without a stress digit, to IPA.
// Symbols that are not ARPABET are returned unchanged.
func ToIPA(symbol string) string {
	key := strings.ToUpper(strings.TrimRight(symbol, "012"))
	if ipa, ok := arpabetIPA[key]; ok {
		return ipa
	}
	return symbol
}

// IPA stress marks.
const (
	primaryMark   = 'ˈ'
	secondaryMark = 'ˌ'
)

// IPASegment is one symbol of a segmented IPA string.
type IPASegment struct {
	Symbol    string
	Primary   bool
	Secondary bool
}

// attaches reports whether r modifies the preceding symbol rather than
// starting a new one.
func attaches(r rune) bool {
	switch r {
	case 'ː', 'ˑ', 'ʰ', 'ʷ', 'ʲ', 'ˠ', 'ˤ', '˞':
		return true
	}
	return unicode.Is(unicode.Mn, r)
}

// SegmentIPA splits an IPA transcription into phoneme symbols. Combining
// marks and length marks stay with their base; a tie bar also pulls in the
// following rune. Stress marks are removed and flag the next symbol.
// Whitespace, punctuation and syllable dots are dropped.
func SegmentIPA(ipa string) []IPASegment {
	var (
		out        []IPASegment
		cur        strings.Builder
		tied       bool
		pendPrim   bool
		pendSecond bool
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		out = append(out, IPASegment{Symbol: cur.String(), Primary: pendPrim, Secondary: pendSecond})
		cur.Reset()
		pendPrim, pendSecond = false, false
	}
	for _, r := range ipa {
		switch {
		case r == primaryMark || r == '\'':
			flush()
			pendPrim = true
		case r == secondaryMark:
			flush()
			pendSecond = true
		case r == '͡' || r == '͜':
			cur.WriteRune(r)
			tied = true
		case attaches(r):
			if cur.Len() > 0 {
				cur.WriteRune(r)
			}
		case unicode.IsSpace(r) || unicode.IsPunct(r) || r == '|' || r == '‖':
			flush()
			tied = false
		case tied:
			cur.WriteRune(r)
			tied = false
		default:
			flush()
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
