// Package language classifies raw keyboard input into the engine's
// supported languages using Unicode script membership. Everything here is
// pure and stateless; the prediction engine owns the decision of when a
// classification actually triggers a switch.
package language

import "unicode"

// Language identifies one of the closed set of supported input languages.
type Language uint8

const (
	English Language = iota
	Japanese
)

// Default is assumed for empty input or input with no script signal.
const Default = English

func (l Language) String() string {
	switch l {
	case English:
		return "en"
	case Japanese:
		return "ja"
	}
	return "unknown"
}

// Parse maps a language code ("en", "ja") back to a Language.
func Parse(code string) (Language, bool) {
	switch code {
	case "en", "english":
		return English, true
	case "ja", "jp", "japanese":
		return Japanese, true
	}
	return Default, false
}

// Distribution holds per-script rune counts for an input sample.
type Distribution struct {
	TargetScript int // Hiragana, Katakana and CJK ideographs
	Latin        int
	Other        int
}

// isTargetScript reports whether r belongs to the Japanese target scripts.
// The Katakana table already covers the halfwidth forms (FF66..FF9D).
func isTargetScript(r rune) bool {
	return unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Han, r)
}

// Classify returns the language implied by the script content of text.
// Any rune from the Hiragana, Katakana or CJK ideograph ranges classifies
// the sample as Japanese; everything else, including empty input, falls
// back to the default.
func Classify(text string) Language {
	for _, r := range text {
		if isTargetScript(r) {
			return Japanese
		}
	}
	return Default
}

// Distribute counts the script membership of every rune in text.
func Distribute(text string) Distribution {
	var d Distribution
	for _, r := range text {
		switch {
		case isTargetScript(r):
			d.TargetScript++
		case unicode.Is(unicode.Latin, r):
			d.Latin++
		default:
			d.Other++
		}
	}
	return d
}

// ShouldSwitch reports whether the active language no longer matches the
// script of text.
func ShouldSwitch(current Language, text string) bool {
	return Classify(text) != current
}
