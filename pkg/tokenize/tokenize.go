// Package tokenize turns raw keyboard input into the token windows the
// inference backends consume. Each language gets its own tokenizer: Latin
// input splits on word boundaries, Japanese input goes through morphological
// analysis.
package tokenize

// Tokenizer converts raw text into backend tokens. The final token is the
// word still being typed; a trailing empty token means the input ended at a
// word boundary and the backend should predict a fresh next word.
type Tokenizer interface {
	Tokenize(text string) []string
}

// ReadingProvider is implemented by tokenizers that can derive a phonetic
// reading for a word, used to enrich learned dictionary entries.
type ReadingProvider interface {
	Reading(word string) (string, bool)
}
