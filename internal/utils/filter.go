package utils

import "unicode"

// IsValidInput reports whether s is worth running predictions for. Inputs
// with no letters at all, digit-only inputs and single-rune keyboard mashes
// ("aaaa") never produce useful suggestions, so callers skip the pipeline
// for them.
func IsValidInput(s string) bool {
	if s == "" {
		return false
	}
	if IsOnlyNumbers(s) {
		return false
	}
	if IsRepetitive(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsRepetitive checks if a string is one rune repeated three or more times
func IsRepetitive(s string) bool {
	runes := []rune(s)
	if len(runes) <= 2 {
		return false
	}
	first := runes[0]
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}
