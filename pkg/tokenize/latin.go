package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Latin tokenizes space-delimited scripts. Tokens are lowercased and
// width-folded so fullwidth input still matches the model vocabulary.
// Apostrophes and hyphens stay inside words.
type Latin struct{}

// NewLatin returns the tokenizer for space-delimited input.
func NewLatin() Latin {
	return Latin{}
}

// Tokenize splits text into lowercase words. Input ending in a separator
// yields a trailing empty token, marking a finished word.
func (Latin) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	folded := strings.ToLower(width.Fold.String(text))

	tokens := strings.FieldsFunc(folded, isWordSeparator)
	if last, _ := utf8.DecodeLastRuneInString(folded); isWordSeparator(last) {
		tokens = append(tokens, "")
	}
	return tokens
}

func isWordSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ',', '.', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '"', '/':
		return true
	}
	return false
}
