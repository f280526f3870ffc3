package backend

import (
	"encoding/json"
	"unicode/utf8"
)

// TruncateOutput bounds output by its byte length: strings directly,
// structured values by their JSON rendering. String cuts land on a rune
// boundary so truncated output stays valid UTF-8.
func TruncateOutput(output interface{}, max int) (interface{}, bool) {
	if max <= 0 {
		return output, false
	}
	switch v := output.(type) {
	case nil:
		return nil, false
	case string:
		if len(v) <= max {
			return v, false
		}
		return cutString(v, max), true
	default:
		raw, err := json.Marshal(v)
		if err != nil || len(raw) <= max {
			return output, false
		}
		return cutString(string(raw), max), true
	}
}

func cutString(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// trimIncompleteRune drops a trailing multi-byte sequence cut short by
// a byte-oriented writer. Only the final few bytes are inspected.
func trimIncompleteRune(s string) string {
	for cut := len(s); cut > 0 && len(s)-cut < utf8.UTFMax; cut-- {
		if !utf8.RuneStart(s[cut-1]) {
			continue
		}
		if r, size := utf8.DecodeRuneInString(s[cut-1:]); r == utf8.RuneError && size == 1 {
			return s[:cut-1]
		}
		return s
	}
	return s
}
