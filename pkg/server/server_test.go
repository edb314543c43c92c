package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kaedera/predictd/pkg/config"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/suggest"
	"github.com/kaedera/predictd/pkg/tokenize"
)

type stubBackend struct {
	cands []model.Candidate
}

func (b *stubBackend) Predict(ctx context.Context, tokens []string) ([]model.Candidate, error) {
	return b.cands, nil
}

func (b *stubBackend) Release() {}

type stubLoader struct {
	backend model.Backend
}

func (l *stubLoader) Load(ctx context.Context, lang language.Language) (model.Backend, error) {
	if l.backend == nil {
		return nil, model.ErrUnavailable
	}
	return l.backend, nil
}

// anyResponse unions every response shape so tests can decode a mixed
// stream. The "c" slot carries the count for normal responses and the
// code for errors.
type anyResponse struct {
	ID          string          `msgpack:"id"`
	Status      string          `msgpack:"status"`
	Lang        string          `msgpack:"lang"`
	C           int             `msgpack:"c"`
	Error       string          `msgpack:"e"`
	Data        string          `msgpack:"data"`
	Degraded    bool            `msgpack:"degraded"`
	Suggestions []PredictedWord `msgpack:"s"`
	TimeTaken   int64           `msgpack:"t"`
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	// One handler at a time keeps response order deterministic.
	cfg.Server.MaxInflight = 1
	return cfg
}

type harness struct {
	dict   *dictionary.Store
	models *model.Registry
	engine *suggest.Engine
	cfg    *config.Config
}

func newHarness(cfg *config.Config, backend model.Backend) *harness {
	dict := dictionary.NewInMemory()
	models := model.NewRegistry(&stubLoader{backend: backend})
	tokenizers := map[language.Language]tokenize.Tokenizer{
		language.English:  tokenize.NewLatin(),
		language.Japanese: tokenize.NewLatin(),
	}
	engine := suggest.NewEngine(cfg, dict, models, tokenizers)
	return &harness{dict: dict, models: models, engine: engine, cfg: cfg}
}

// run feeds the requests through a server over in-memory pipes and returns
// the responses after the ready signal.
func (h *harness) run(t *testing.T, reqs ...Request) []anyResponse {
	t.Helper()

	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, r := range reqs {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	var out bytes.Buffer
	srv := newServer(h.engine, h.dict, h.models, h.cfg, &in, &out)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	dec := msgpack.NewDecoder(&out)
	var resps []anyResponse
	for {
		var r anyResponse
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("decode response: %v", err)
		}
		resps = append(resps, r)
	}

	if len(resps) == 0 || resps[0].Status != "ready" {
		t.Fatalf("expected ready signal first, got %+v", resps)
	}
	return resps[1:]
}

func TestPredictRoundTrip(t *testing.T) {
	backend := &stubBackend{cands: []model.Candidate{
		{Text: "hello", Score: 0.9},
		{Text: "help", Score: 0.5},
	}}
	h := newHarness(testConfig(), backend)
	h.dict.Add("hello", "", dictionary.SourceLearned)

	resps := h.run(t, Request{ID: "q1", Op: "predict", Input: "he"})
	if len(resps) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resps))
	}
	r := resps[0]
	if r.ID != "q1" {
		t.Errorf("id = %q, want q1", r.ID)
	}
	if r.Lang != "en" {
		t.Errorf("lang = %q, want en", r.Lang)
	}
	if r.C != 2 || len(r.Suggestions) != 2 {
		t.Fatalf("count = %d, suggestions = %d, want 2", r.C, len(r.Suggestions))
	}
	if r.Suggestions[0].Word != "hello" {
		t.Errorf("top suggestion = %q, want hello", r.Suggestions[0].Word)
	}
	if r.Suggestions[0].Rank != 1 || r.Suggestions[1].Rank != 2 {
		t.Errorf("ranks = %d,%d, want 1,2", r.Suggestions[0].Rank, r.Suggestions[1].Rank)
	}
	if r.TimeTaken < 0 {
		t.Errorf("time taken = %d", r.TimeTaken)
	}
}

func TestPredictValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		wantE string
	}{
		{"empty input", Request{ID: "v1", Op: "predict"}, "Missing 'in' parameter"},
		{"too long", Request{ID: "v2", Op: "predict", Input: strings.Repeat("あ", 61)}, "Input exceeds maximum length of 60 characters"},
		{"numbers only", Request{ID: "v3", Op: "predict", Input: "1234"}, "Input rejected by filter"},
		{"repetitive", Request{ID: "v4", Op: "predict", Input: "aaaa"}, "Input rejected by filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(testConfig(), &stubBackend{})
			resps := h.run(t, tt.req)
			if len(resps) != 1 {
				t.Fatalf("expected 1 response, got %d", len(resps))
			}
			r := resps[0]
			if r.Error != tt.wantE {
				t.Errorf("error = %q, want %q", r.Error, tt.wantE)
			}
			if r.C != 400 {
				t.Errorf("code = %d, want 400", r.C)
			}
			if r.ID != tt.req.ID {
				t.Errorf("id = %q, want %q", r.ID, tt.req.ID)
			}
		})
	}
}

func TestPredictLimits(t *testing.T) {
	backend := &stubBackend{cands: []model.Candidate{
		{Text: "heap", Score: 0.9},
		{Text: "heat", Score: 0.8},
		{Text: "heavy", Score: 0.7},
		{Text: "hedge", Score: 0.6},
		{Text: "hello", Score: 0.5},
	}}

	t.Run("request limit trims results", func(t *testing.T) {
		h := newHarness(testConfig(), backend)
		resps := h.run(t, Request{ID: "l1", Op: "predict", Input: "he", Limit: 2})
		if resps[0].C != 2 {
			t.Fatalf("count = %d, want 2", resps[0].C)
		}
		if resps[0].Suggestions[0].Word != "heap" {
			t.Errorf("top = %q, want heap", resps[0].Suggestions[0].Word)
		}
	})

	t.Run("oversized limit clamps to server cap", func(t *testing.T) {
		cfg := testConfig()
		cfg.Server.MaxLimit = 3
		h := newHarness(cfg, backend)
		resps := h.run(t, Request{ID: "l2", Op: "predict", Input: "he", Limit: 999})
		if resps[0].C != 3 {
			t.Fatalf("count = %d, want 3", resps[0].C)
		}
	})
}

func TestPredictRoutesLanguageByScript(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "r1", Op: "predict", Input: "こんにち"},
		Request{ID: "r2", Op: "predict", Input: "hel"},
	)
	if resps[0].Lang != "ja" {
		t.Errorf("japanese input routed to %q, want ja", resps[0].Lang)
	}
	if resps[1].Lang != "en" {
		t.Errorf("latin input routed to %q, want en", resps[1].Lang)
	}
}

func TestSelectLearnsWord(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "s1", Op: "select", Word: "hello", Input: "he"},
		Request{ID: "s2", Op: "select", Word: "hello", Input: "hel"},
	)
	for _, r := range resps {
		if r.Status != "ok" {
			t.Fatalf("status = %q, want ok", r.Status)
		}
	}
	rec, ok := h.dict.Lookup("hello")
	if !ok {
		t.Fatal("selected word not in dictionary")
	}
	if rec.Frequency != 2 {
		t.Errorf("frequency = %d, want 2", rec.Frequency)
	}
	if rec.Source != dictionary.SourceLearned {
		t.Errorf("source = %v, want learned", rec.Source)
	}
}

func TestSelectRequiresWord(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t, Request{ID: "s1", Op: "select"})
	if resps[0].C != 400 || resps[0].Error == "" {
		t.Fatalf("expected 400 error, got %+v", resps[0])
	}
}

func TestLangOp(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "l1", Op: "lang", Lang: "ja"},
		Request{ID: "l2", Op: "lang", Lang: "klingon"},
	)
	if resps[0].Status != "ok" || resps[0].Lang != "ja" {
		t.Errorf("switch response = %+v", resps[0])
	}
	if h.engine.ActiveLanguage() != language.Japanese {
		t.Error("engine did not switch language")
	}
	if resps[1].C != 400 {
		t.Errorf("unknown language code = %d, want 400", resps[1].C)
	}
}

func TestDictOps(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "d1", Op: "dict", Action: "add", Word: "辞書", Reading: "ジショ"},
		Request{ID: "d2", Op: "dict", Action: "stats"},
		Request{ID: "d3", Op: "dict", Action: "export"},
		Request{ID: "d4", Op: "dict", Action: "remove", Word: "辞書"},
		Request{ID: "d5", Op: "dict", Action: "remove", Word: "辞書"},
	)

	if resps[0].Status != "ok" || resps[0].C != 1 {
		t.Errorf("add response = %+v", resps[0])
	}
	if resps[1].C != 1 {
		t.Errorf("stats count = %d, want 1", resps[1].C)
	}
	if resps[1].Degraded {
		t.Error("in-memory store reported degraded")
	}
	if !strings.Contains(resps[2].Data, "word,reading,frequency,lastUsed,source") {
		t.Errorf("export missing header: %q", resps[2].Data)
	}
	if !strings.Contains(resps[2].Data, "辞書,ジショ,1,") {
		t.Errorf("export missing row: %q", resps[2].Data)
	}
	if resps[3].C != 1 {
		t.Errorf("first remove count = %d, want 1", resps[3].C)
	}
	if resps[4].C != 0 {
		t.Errorf("second remove count = %d, want 0", resps[4].C)
	}
}

func TestDictImportAndClear(t *testing.T) {
	csv := "word,reading,frequency,lastUsed,source\n" +
		"hello,,5,2026-02-03T09:30:00Z,learned\n" +
		"world,,2,2026-02-03T09:30:00Z,user\n"

	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "i1", Op: "dict", Action: "import", Data: csv},
		Request{ID: "i2", Op: "dict", Action: "clear"},
	)
	if resps[0].C != 2 {
		t.Errorf("import count = %d, want 2", resps[0].C)
	}
	if resps[1].Status != "ok" {
		t.Errorf("clear response = %+v", resps[1])
	}
	if h.dict.Len() != 0 {
		t.Errorf("dictionary has %d words after clear", h.dict.Len())
	}
}

func TestDictImportRequiresData(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t, Request{ID: "i1", Op: "dict", Action: "import"})
	if resps[0].C != 400 {
		t.Fatalf("code = %d, want 400", resps[0].C)
	}
}

func TestUnloadReleasesModels(t *testing.T) {
	backend := &stubBackend{cands: []model.Candidate{{Text: "hello", Score: 0.9}}}
	h := newHarness(testConfig(), backend)
	resps := h.run(t,
		Request{ID: "p1", Op: "predict", Input: "he"},
		Request{ID: "u1", Op: "unload"},
		Request{ID: "u2", Op: "unload"},
	)
	if resps[1].C != 1 {
		t.Errorf("first unload count = %d, want 1", resps[1].C)
	}
	if resps[2].C != 0 {
		t.Errorf("second unload count = %d, want 0", resps[2].C)
	}
}

func TestHealthAndUnknownOp(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t,
		Request{ID: "h1", Op: "health"},
		Request{ID: "x1", Op: "teleport"},
	)
	if resps[0].Status != "ok" || resps[0].Lang != "en" {
		t.Errorf("health response = %+v", resps[0])
	}
	if resps[1].C != 400 || !strings.Contains(resps[1].Error, "teleport") {
		t.Errorf("unknown op response = %+v", resps[1])
	}
}

func TestAssignsRequestID(t *testing.T) {
	h := newHarness(testConfig(), &stubBackend{})
	resps := h.run(t, Request{Op: "health"})
	if resps[0].ID == "" {
		t.Error("server did not assign an id")
	}
}
