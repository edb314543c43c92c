package utils

import "unicode"

// PreserveCapitals re-applies the capitalization pattern of the typed input
// to a suggested word, so "He" presents "hello" as "Hello". Positions are
// rune-indexed and capitals past the end of the word are ignored. The
// pipeline itself works in lowercase; this is presentation only.
func PreserveCapitals(input, word string) string {
	var positions []int
	idx := 0
	for _, r := range input {
		if unicode.IsUpper(r) {
			positions = append(positions, idx)
		}
		idx++
	}
	if len(positions) == 0 {
		return word
	}

	runes := []rune(word)
	changed := false
	for _, pos := range positions {
		if pos >= len(runes) {
			continue
		}
		if up := unicode.ToUpper(runes[pos]); up != runes[pos] {
			runes[pos] = up
			changed = true
		}
	}
	if !changed {
		return word
	}
	return string(runes)
}
