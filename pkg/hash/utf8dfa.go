package hash

// DFA-based UTF-8 decoder. Adapted from Bjoern Hoehrmann's decoder
// (http://bjoern.hoehrmann.de/utf-8/decoder/dfa/), the same table the
// reference tagger embeds in hash.c. Accepts only well-formed UTF-8; a
// decode failure anywhere in the buffer rejects the whole buffer so callers
// can fall back to raw-byte hashing (spec.md §4.1, §4.2).
const (
	utf8Accept = 0
	utf8Reject = 12
)

var utf8Table = [...]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	10, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 4, 3, 3, 11, 6, 6, 6, 5, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,

	0, 12, 24, 36, 60, 96, 84, 12, 12, 12, 48, 72, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
	12, 0, 12, 12, 12, 12, 12, 0, 12, 0, 12, 12, 12, 24, 12, 12, 12, 12, 12, 24, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 24, 12, 12, 12, 12, 12, 24, 12, 12, 12, 12, 12, 12, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12, 12, 36, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12,
	12, 36, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
}

func utf8Step(state *uint32, codep *uint32, b byte) {
	typ := uint32(utf8Table[b])
	if *state != utf8Accept {
		*codep = (uint32(b) & 0x3f) | (*codep << 6)
	} else {
		*codep = (uint32(0xff) >> typ) & uint32(b)
	}
	*state = uint32(utf8Table[256+*state+typ])
}

// DecodeUTF8 decodes data into a rune slice. It returns ok=false on any
// malformed sequence, including a truncated trailing sequence at EOF.
func DecodeUTF8(data []byte) ([]rune, bool) {
	out := make([]rune, 0, len(data))
	var state, codep uint32
	for _, b := range data {
		utf8Step(&state, &codep, b)
		if state == utf8Accept {
			out = append(out, rune(codep))
		} else if state == utf8Reject {
			return nil, false
		}
	}
	if state != utf8Accept {
		return nil, false
	}
	return out, true
}
