package cli

import (
	"context"
	"testing"

	"github.com/kaedera/predictd/pkg/config"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/suggest"
	"github.com/kaedera/predictd/pkg/tokenize"
)

type noopLoader struct{}

func (noopLoader) Load(ctx context.Context, lang language.Language) (model.Backend, error) {
	return nil, model.ErrUnavailable
}

func newTestHandler() (*InputHandler, *dictionary.Store) {
	cfg := config.DefaultConfig()
	dict := dictionary.NewInMemory()
	models := model.NewRegistry(noopLoader{})
	tokenizers := map[language.Language]tokenize.Tokenizer{
		language.English:  tokenize.NewLatin(),
		language.Japanese: tokenize.NewLatin(),
	}
	engine := suggest.NewEngine(cfg, dict, models, tokenizers)
	return NewInputHandler(engine, dict, 1, 60, 10, false), dict
}

func TestCommandDispatch(t *testing.T) {
	h, dict := newTestHandler()

	if !h.handleLine(":learn hello") || !h.handleLine(":learn hello") {
		t.Fatal("learn should keep the session alive")
	}
	rec, ok := dict.Lookup("hello")
	if !ok || rec.Frequency != 2 {
		t.Fatalf("expected frequency 2 after two learns, got %+v ok=%v", rec, ok)
	}

	if !h.handleLine(":forget hello") {
		t.Fatal("forget should keep the session alive")
	}
	if _, ok := dict.Lookup("hello"); ok {
		t.Error("word still present after forget")
	}
	if !h.handleLine(":forget hello") {
		t.Fatal("forgetting a missing word should keep the session alive")
	}

	if !h.handleLine(":lang ja") {
		t.Fatal("lang should keep the session alive")
	}
	if h.engine.ActiveLanguage() != language.Japanese {
		t.Error("language did not switch")
	}
	if !h.handleLine(":lang klingon") {
		t.Fatal("bad language code should keep the session alive")
	}
	if h.engine.ActiveLanguage() != language.Japanese {
		t.Error("bad language code changed the active language")
	}

	if !h.handleLine(":stats") || !h.handleLine(":nonsense") {
		t.Fatal("stats and unknown commands should keep the session alive")
	}

	if h.handleLine(":quit") {
		t.Error("quit should end the session")
	}
	if h.handleLine(":q") {
		t.Error(":q should end the session")
	}
}

func TestQueryLineRoutesLanguage(t *testing.T) {
	h, _ := newTestHandler()

	if !h.handleLine("こんにち") {
		t.Fatal("query should keep the session alive")
	}
	if h.engine.ActiveLanguage() != language.Japanese {
		t.Error("japanese input did not route the language")
	}
	if !h.handleLine("hel") {
		t.Fatal("query should keep the session alive")
	}
	if h.engine.ActiveLanguage() != language.English {
		t.Error("latin input did not route the language back")
	}
	if h.requestCount != 2 {
		t.Errorf("requestCount = %d, want 2", h.requestCount)
	}
}
