package suggest

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kaedera/predictd/pkg/config"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/tokenize"
)

// Engine runs the query pipeline: cache check, inference, personalization
// boosting, top-K selection, cache populate. Failures never escape to the
// caller as errors; a query degrades to fewer or zero suggestions instead.
type Engine struct {
	cfg        *config.Config
	dict       *dictionary.Store
	models     *model.Registry
	tokenizers map[language.Language]tokenize.Tokenizer
	cache      *Cache

	mu     sync.Mutex
	active language.Language

	now func() time.Time
}

// Result carries one finished asynchronous query.
type Result struct {
	Input       string
	Suggestions []Suggestion
	Err         error
}

// NewEngine wires the pipeline together. The tokenizers map decides which
// languages the engine can window input for; a language without a tokenizer
// still answers queries from the dictionary alone.
func NewEngine(cfg *config.Config, dict *dictionary.Store, models *model.Registry, tokenizers map[language.Language]tokenize.Tokenizer) *Engine {
	return &Engine{
		cfg:        cfg,
		dict:       dict,
		models:     models,
		tokenizers: tokenizers,
		cache:      NewCache(cfg.Predict.CacheCapacity),
		active:     language.Default,
		now:        time.Now,
	}
}

// Predict returns ranked suggestions for input. Empty or whitespace input
// short-circuits to nothing. The error is non-nil only when the caller's
// context was canceled; timeouts and backend failures degrade to whatever
// partial results the pipeline already had.
func (e *Engine) Predict(ctx context.Context, input string) ([]Suggestion, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	if cached, ok := e.cache.Get(input); ok {
		return cached, nil
	}

	lang := e.ActiveLanguage()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Predict.Timeout())
	defer cancel()

	candidates := e.infer(ctx, lang, input)
	pool := e.boost(candidates, input)
	final := e.selectTop(pool)

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Debugf("Query %q timed out, returning %d partial results", input, len(final))
		return final, nil
	}

	// a language switch mid-query must not seed the fresh cache
	if e.ActiveLanguage() == lang {
		e.cache.Set(input, final)
	}
	return final, nil
}

// PredictAsync runs Predict on its own goroutine and delivers the outcome on
// the returned buffered channel, so an abandoned result leaks nothing.
func (e *Engine) PredictAsync(ctx context.Context, input string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		suggestions, err := e.Predict(ctx, input)
		ch <- Result{Input: input, Suggestions: suggestions, Err: err}
	}()
	return ch
}

// RecordSelection feeds an accepted suggestion back into the dictionary.
// When the active tokenizer can derive a reading, the learned entry carries
// it, which is what makes learned Japanese words findable by kana later.
func (e *Engine) RecordSelection(text, sourceInput string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if rp, ok := e.tokenizers[e.ActiveLanguage()].(tokenize.ReadingProvider); ok {
		if reading, found := rp.Reading(text); found {
			e.dict.Add(text, reading, dictionary.SourceLearned)
			return
		}
	}
	e.dict.RecordSelection(text, sourceInput)
}

// SwitchLanguage changes the active language and clears the suggestion
// cache wholesale, since entries keyed by raw input do not record which
// language produced them.
func (e *Engine) SwitchLanguage(to language.Language) {
	e.mu.Lock()
	if e.active == to {
		e.mu.Unlock()
		return
	}
	from := e.active
	e.active = to
	e.mu.Unlock()

	e.cache.Clear()
	log.Debugf("Language switched %s -> %s, suggestion cache cleared", from, to)
}

// ActiveLanguage reports the language queries currently run under.
func (e *Engine) ActiveLanguage() language.Language {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ClearCache drops every cached result, for callers that just invalidated
// the data the results were built from.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Stats reports pipeline counters.
func (e *Engine) Stats() map[string]int {
	return map[string]int{
		"cachedQueries":  e.cache.Len(),
		"cacheCapacity":  e.cache.Cap(),
		"dictWords":      e.dict.Len(),
		"maxSuggestions": e.cfg.Predict.MaxSuggestions,
	}
}

// infer acquires the language backend and runs it under ctx. Every failure
// path returns nil: no backend, no tokenizer, backend error or timeout all
// degrade to an empty candidate set and the dictionary carries the query.
func (e *Engine) infer(ctx context.Context, lang language.Language, input string) []model.Candidate {
	backend, err := e.models.Acquire(ctx, lang)
	if err != nil {
		log.Debugf("No %s backend for this query: %v", lang, err)
		return nil
	}

	window := e.window(lang, input)
	if len(window) == 0 {
		return nil
	}

	type outcome struct {
		cands []model.Candidate
		err   error
	}
	// buffered so a late backend result is dropped, not leaked into a
	// goroutine blocked on send
	ch := make(chan outcome, 1)
	go func() {
		cands, err := backend.Predict(ctx, window)
		ch <- outcome{cands: cands, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			log.Debugf("Backend failed for %q: %v", input, out.err)
			return nil
		}
		return out.cands
	case <-ctx.Done():
		return nil
	}
}

// window tokenizes input and keeps the trailing context the model was
// trained to see.
func (e *Engine) window(lang language.Language, input string) []string {
	tok, ok := e.tokenizers[lang]
	if !ok {
		return nil
	}
	tokens := tok.Tokenize(input)
	if w := e.cfg.Predict.ContextWindow; len(tokens) > w {
		tokens = tokens[len(tokens)-w:]
	}
	return tokens
}

// boost folds the personalization dictionary into raw model scores:
//
//	frequency: ln(freq+1) * weight
//	recency:   max(0, 1 - daysSinceUse/window) * weight
//	prefix:    flat bonus when the suggestion extends the typed input and
//	           the dictionary also knows words under that input
//
// Dictionary words the model never proposed are synthesized into the pool
// at ln(freq+1) * dictionary_only weight. Duplicates collapse on first
// occurrence; candidates arrive ranked, so the strongest copy survives.
func (e *Engine) boost(candidates []model.Candidate, input string) []Suggestion {
	now := e.now()
	windowDays := float64(e.cfg.Boost.RecencyWindowDays)
	dictSharesPrefix := e.dict.HasPrefix(input)

	pool := make([]Suggestion, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seen[c.Text]; dup {
			continue
		}
		seen[c.Text] = struct{}{}

		score := c.Score
		if rec, ok := e.dict.Lookup(c.Text); ok {
			score += math.Log(float64(rec.Frequency)+1) * e.cfg.Boost.Frequency
			days := now.Sub(rec.LastUsed).Hours() / 24
			if r := 1 - days/windowDays; r > 0 {
				score += r * e.cfg.Boost.Recency
			}
		}
		if dictSharesPrefix && strings.HasPrefix(c.Text, input) {
			score += e.cfg.Boost.PrefixBonus
		}
		pool = append(pool, Suggestion{Text: c.Text, Score: score})
	}

	for _, rec := range e.dict.WordsWithPrefix(input) {
		if _, dup := seen[rec.Word]; dup {
			continue
		}
		seen[rec.Word] = struct{}{}
		pool = append(pool, Suggestion{
			Text:  rec.Word,
			Score: math.Log(float64(rec.Frequency)+1) * e.cfg.Boost.DictionaryOnly,
		})
	}
	return pool
}

// selectTop orders the pool best-first and truncates to the configured K,
// going through the bounded selector only when the pool exceeds it.
func (e *Engine) selectTop(pool []Suggestion) []Suggestion {
	k := e.cfg.Predict.MaxSuggestions
	if len(pool) <= k {
		SortDescending(pool)
		return pool
	}
	topk := NewTopK(k)
	for _, s := range pool {
		topk.Insert(s)
	}
	return topk.Drain()
}
