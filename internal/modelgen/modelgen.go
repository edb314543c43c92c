// Package modelgen builds bigram model files from plain-text corpora. It is
// the offline half of the prediction pipeline: the runtime only ever reads
// the artifacts produced here.
package modelgen

import (
	"bufio"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/suggest"
	"github.com/kaedera/predictd/pkg/tokenize"
)

// Build tokenizes every line of r, counts unigram and bigram occurrences,
// keeps the top-MaxVocab words, and normalizes counts into the (0, 1]
// scores the runtime backend expects. Scores are relative weights, not
// probabilities: each unigram is scaled against the most frequent word,
// each bigram row against its own strongest successor.
func Build(r io.Reader, lang language.Language, tok tokenize.Tokenizer) (model.ModelFile, error) {
	unigrams := make(map[string]int)
	bigrams := make(map[string]map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		tokens := tok.Tokenize(scanner.Text())
		// a trailing empty token marks a word boundary, not a word
		if n := len(tokens); n > 0 && tokens[n-1] == "" {
			tokens = tokens[:n-1]
		}
		for i, word := range tokens {
			unigrams[word]++
			if i > 0 {
				prev := tokens[i-1]
				row := bigrams[prev]
				if row == nil {
					row = make(map[string]int)
					bigrams[prev] = row
				}
				row[word]++
			}
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		return model.ModelFile{}, fmt.Errorf("read corpus: %w", err)
	}
	if len(unigrams) == 0 {
		return model.ModelFile{}, fmt.Errorf("corpus for %s produced no tokens", lang)
	}

	vocab := keepTopVocab(unigrams)
	log.Debugf("Corpus stats: %d lines, %d distinct words, %d kept", lines, len(unigrams), len(vocab))

	mf := model.ModelFile{
		Version:  model.ModelVersion,
		Language: lang.String(),
		Unigrams: normalizeUnigrams(unigrams, vocab),
		Bigrams:  normalizeBigrams(bigrams, vocab),
	}
	return mf, nil
}

// keepTopVocab selects the MaxVocab most frequent words. The top-K selector
// breaks count ties lexicographically, which keeps builds reproducible.
func keepTopVocab(unigrams map[string]int) map[string]bool {
	topk := suggest.NewTopK(model.MaxVocab)
	for word, count := range unigrams {
		topk.Insert(suggest.Suggestion{Text: word, Score: float64(count)})
	}
	vocab := make(map[string]bool, topk.Len())
	for _, s := range topk.Drain() {
		vocab[s.Text] = true
	}
	return vocab
}

func normalizeUnigrams(unigrams map[string]int, vocab map[string]bool) map[string]float64 {
	maxCount := 0
	for word, count := range unigrams {
		if vocab[word] && count > maxCount {
			maxCount = count
		}
	}
	out := make(map[string]float64, len(vocab))
	for word, count := range unigrams {
		if vocab[word] {
			out[word] = float64(count) / float64(maxCount)
		}
	}
	return out
}

func normalizeBigrams(bigrams map[string]map[string]int, vocab map[string]bool) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for prev, row := range bigrams {
		if !vocab[prev] {
			continue
		}
		maxCount := 0
		for next, count := range row {
			if vocab[next] && count > maxCount {
				maxCount = count
			}
		}
		if maxCount == 0 {
			continue
		}
		dst := make(map[string]float64, len(row))
		for next, count := range row {
			if vocab[next] {
				dst[next] = float64(count) / float64(maxCount)
			}
		}
		out[prev] = dst
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
