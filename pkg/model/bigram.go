package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kaedera/predictd/internal/utils"
	"github.com/kaedera/predictd/pkg/language"
)

const (
	// ModelVersion is the current model file layout.
	ModelVersion = 1

	// MaxVocab bounds the vocabulary a model file may carry; the training
	// pipeline emits at most this many words.
	MaxVocab = 5000

	// interpolation weights for completion scoring
	unigramWeight = 0.7
	bigramWeight  = 0.3

	// maxNextWord caps next-word candidate lists; a ranked beam, not the
	// whole vocabulary, is what downstream boosting expects.
	maxNextWord = 128
)

// ModelFile is the on-disk msgpack layout of one language model: unigram
// weights plus bigram continuation weights, both normalized to (0, 1].
type ModelFile struct {
	Version  int                           `msgpack:"v"`
	Language string                        `msgpack:"lang"`
	Unigrams map[string]float64            `msgpack:"uni"`
	Bigrams  map[string]map[string]float64 `msgpack:"bi,omitempty"`
}

// BigramModel is the on-device scorer: an interpolated unigram/bigram table
// with a prefix index over the vocabulary. All state is immutable after
// construction, so concurrent Predict calls need no locking.
type BigramModel struct {
	lang     language.Language
	unigrams map[string]float64
	bigrams  map[string]map[string]float64
	vocab    *patricia.Trie
}

// NewBigramModel builds a scorer from a decoded model file.
func NewBigramModel(lang language.Language, mf ModelFile) *BigramModel {
	vocab := patricia.NewTrie()
	for word := range mf.Unigrams {
		vocab.Insert(patricia.Prefix(word), struct{}{})
	}
	return &BigramModel{
		lang:     lang,
		unigrams: mf.Unigrams,
		bigrams:  mf.Bigrams,
		vocab:    vocab,
	}
}

// Predict completes the final token of the window, or proposes next words
// when the window ends at a word boundary. Candidates come back ranked but
// unboosted.
func (m *BigramModel) Predict(ctx context.Context, tokens []string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	prefix := tokens[len(tokens)-1]
	prev := ""
	if len(tokens) > 1 {
		prev = tokens[len(tokens)-2]
	}

	if prefix == "" {
		return m.nextWord(prev), nil
	}
	return m.complete(ctx, prefix, prev)
}

// complete scores every vocabulary word extending prefix. The word typed so
// far is not echoed back; completing it adds nothing.
func (m *BigramModel) complete(ctx context.Context, prefix, prev string) ([]Candidate, error) {
	continuations := m.bigrams[prev]

	var out []Candidate
	err := m.vocab.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, _ patricia.Item) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		word := string(p)
		if word == prefix {
			return nil
		}
		score := unigramWeight * m.unigrams[word]
		if w, ok := continuations[word]; ok {
			score += bigramWeight * w
		}
		out = append(out, Candidate{Text: word, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortCandidates(out)
	return out, nil
}

// nextWord ranks continuations of prev, falling back to the strongest
// unigrams when prev has no bigram row.
func (m *BigramModel) nextWord(prev string) []Candidate {
	row := m.bigrams[prev]

	var out []Candidate
	if len(row) > 0 {
		out = make([]Candidate, 0, len(row))
		for word, w := range row {
			out = append(out, Candidate{Text: word, Score: w})
		}
	} else {
		out = make([]Candidate, 0, len(m.unigrams))
		for word, w := range m.unigrams {
			out = append(out, Candidate{Text: word, Score: w})
		}
	}

	sortCandidates(out)
	if len(out) > maxNextWord {
		out = out[:maxNextWord]
	}
	return out
}

// Release drops nothing eagerly: in-flight queries may still hold the
// model, and the collector reclaims it once the registry reference is gone.
func (m *BigramModel) Release() {
	log.Debugf("Released %s model", m.lang)
}

func sortCandidates(out []Candidate) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
}

// FileLoader reads msgpack model files named <language>.model from a
// directory.
type FileLoader struct {
	dir string
}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// ModelPath returns where the model file for lang is expected.
func (l *FileLoader) ModelPath(lang language.Language) string {
	return filepath.Join(l.dir, lang.String()+".model")
}

// Load reads, validates and indexes the model file for lang. Missing files
// map to ErrUnavailable, undecodable ones to ErrDecodeFailure.
func (l *FileLoader) Load(ctx context.Context, lang language.Language) (Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := l.ModelPath(lang)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, path, err)
	}

	var mf ModelFile
	if err := msgpack.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrDecodeFailure, path, err)
	}
	if mf.Version != ModelVersion {
		return nil, fmt.Errorf("%w: %s has unsupported version %d", ErrDecodeFailure, path, mf.Version)
	}
	if mf.Language != lang.String() {
		return nil, fmt.Errorf("%w: %s declares language %q, expected %q", ErrDecodeFailure, path, mf.Language, lang)
	}
	if len(mf.Unigrams) == 0 || len(mf.Unigrams) > MaxVocab {
		return nil, fmt.Errorf("%w: %s has implausible vocabulary of %d words", ErrDecodeFailure, path, len(mf.Unigrams))
	}

	log.Debugf("Loaded %s model: %d words, %d bigram rows", lang, len(mf.Unigrams), len(mf.Bigrams))
	return NewBigramModel(lang, mf), nil
}

// WriteModel encodes mf and swaps it into place atomically, creating the
// directory as needed. Shared by the packaging tool and tests.
func WriteModel(path string, mf ModelFile) error {
	raw, err := msgpack.Marshal(&mf)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp model: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp model: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace model %s: %w", path, err)
	}
	return nil
}
