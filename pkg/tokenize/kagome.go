package tokenize

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// featureReading is the katakana reading slot in IPA dictionary features.
const featureReading = 7

// kanaFolder widens halfwidth katakana and recomposes the voiced marks the
// width fold leaves as combining runes, e.g. ﾃﾞ becomes デ rather than デ.
var kanaFolder = transform.Chain(width.Fold, norm.NFC)

func foldKana(text string) string {
	folded, _, err := transform.String(kanaFolder, text)
	if err != nil {
		return text
	}
	return folded
}

// Japanese segments unspaced input with kagome's IPA dictionary. Input is
// width-folded first so halfwidth katakana and fullwidth Latin resolve to
// the forms the dictionary knows.
type Japanese struct {
	t *tokenizer.Tokenizer
}

// NewJapanese builds the morphological tokenizer. The embedded IPA
// dictionary makes this the expensive constructor in the package; callers
// should build it once and share it.
func NewJapanese() (*Japanese, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize japanese tokenizer: %w", err)
	}
	return &Japanese{t: t}, nil
}

// Tokenize returns the surface forms of text in order. Japanese carries no
// explicit word boundaries, so the final surface is treated as the word in
// progress and no trailing empty token is produced.
func (j *Japanese) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	folded := foldKana(text)

	var tokens []string
	for _, token := range j.t.Tokenize(folded) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}
		tokens = append(tokens, token.Surface)
	}
	return tokens
}

// Reading derives the katakana reading of word by concatenating the reading
// of each morpheme. It reports false when any morpheme is out of vocabulary,
// since a partial reading would corrupt dictionary entries.
func (j *Japanese) Reading(word string) (string, bool) {
	if word == "" {
		return "", false
	}
	folded := foldKana(word)

	var reading strings.Builder
	found := false
	for _, token := range j.t.Tokenize(folded) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}
		features := token.Features()
		if len(features) <= featureReading || features[featureReading] == "*" {
			return "", false
		}
		reading.WriteString(features[featureReading])
		found = true
	}
	return reading.String(), found
}
