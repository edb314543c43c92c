package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kaedera/predictd/internal/utils"
	"github.com/kaedera/predictd/pkg/config"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/suggest"
)

// Server handles the IPC for predictions and dictionary management.
type Server struct {
	engine *suggest.Engine
	dict   *dictionary.Store
	models *model.Registry
	cfg    *config.Config

	dec *msgpack.Decoder
	enc *msgpack.Encoder
	out *bufio.Writer

	// writeMu serializes responses: handlers run concurrently but the
	// stream must carry one whole msgpack value at a time.
	writeMu sync.Mutex
}

// Creates a new prediction server using stdin/stdout for IPC
func NewServer(engine *suggest.Engine, dict *dictionary.Store, models *model.Registry, cfg *config.Config) *Server {
	return newServer(engine, dict, models, cfg, os.Stdin, os.Stdout)
}

func newServer(engine *suggest.Engine, dict *dictionary.Store, models *model.Registry, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	out := bufio.NewWriter(w)
	return &Server{
		engine: engine,
		dict:   dict,
		models: models,
		cfg:    cfg,
		dec:    msgpack.NewDecoder(r),
		enc:    msgpack.NewEncoder(out),
		out:    out,
	}
}

// Start begins listening for IPC requests. It returns after the request
// stream closes and every in-flight handler has finished.
func (s *Server) Start() error {
	log.Debug("Starting Server.")

	// Signal that the server is ready
	s.sendResponse(StatusResponse{Status: "ready", Lang: s.engine.ActiveLanguage().String()})

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Server.MaxInflight)

	for {
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// A bad frame poisons everything after it; a msgpack stream
			// has no record boundary to resynchronize on.
			log.Errorf("Reading from stdin: %v", err)
			_ = g.Wait()
			return fmt.Errorf("decode request: %w", err)
		}
		g.Go(func() error {
			s.handleRequest(req)
			return nil
		})
	}
	return g.Wait()
}

// handleRequest dispatches one decoded request to its op handler.
func (s *Server) handleRequest(req Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	switch req.Op {
	case "predict":
		s.handlePredict(req)
	case "select":
		s.handleSelect(req)
	case "lang":
		s.handleLang(req)
	case "dict":
		s.handleDict(req)
	case "unload":
		count := s.models.UnloadAll()
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Count: count})
	case "health":
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Lang: s.engine.ActiveLanguage().String()})
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown op: %s", req.Op), 400)
	}
}

// handlePredict validates the input, routes the language if the script
// changed, runs the engine and sends ranked suggestions. Engine failures
// past validation degrade to whatever the engine could still produce, so
// the only 500 here is a cancelled query.
func (s *Server) handlePredict(req Request) {
	input := req.Input
	if input == "" {
		s.sendError(req.ID, "Missing 'in' parameter", 400)
		log.Debug("Input is empty in request")
		return
	}

	runes := utf8.RuneCountInString(input)
	if runes < s.cfg.Server.MinPrefix {
		s.sendError(req.ID, fmt.Sprintf("Input must be at least %d characters", s.cfg.Server.MinPrefix), 400)
		log.Debug("Input is too short in request")
		return
	}
	if runes > s.cfg.Server.MaxPrefix {
		s.sendError(req.ID, fmt.Sprintf("Input exceeds maximum length of %d characters", s.cfg.Server.MaxPrefix), 400)
		log.Debug("Input is too long in request")
		return
	}
	if s.cfg.Server.EnableFilter && !utils.IsValidInput(input) {
		s.sendError(req.ID, "Input rejected by filter", 400)
		log.Debugf("Filter rejected input %q", input)
		return
	}

	// Follow the script of what the user is typing, the same way an
	// editor text-change event would.
	if language.ShouldSwitch(s.engine.ActiveLanguage(), input) {
		s.engine.SwitchLanguage(language.Classify(input))
	}

	limit := req.Limit
	if limit < 1 {
		limit = s.cfg.Predict.MaxSuggestions
	}
	if limit > s.cfg.Server.MaxLimit {
		limit = s.cfg.Server.MaxLimit
	}

	start := time.Now()
	results, err := s.engine.Predict(context.Background(), input)
	if err != nil {
		s.sendError(req.ID, fmt.Sprintf("Prediction failed: %v", err), 500)
		log.Errorf("Predicting %q: %v", input, err)
		return
	}
	elapsed := time.Since(start)

	if len(results) > limit {
		results = results[:limit]
	}
	words := make([]PredictedWord, len(results))
	for i, r := range results {
		words[i] = PredictedWord{Word: r.Text, Score: r.Score, Rank: uint16(i + 1)}
	}

	s.sendResponse(PredictResponse{
		ID:          req.ID,
		Suggestions: words,
		Count:       len(words),
		Lang:        s.engine.ActiveLanguage().String(),
		TimeTaken:   elapsed.Microseconds(),
	})
}

// handleSelect records an accepted suggestion so it ranks higher next time.
func (s *Server) handleSelect(req Request) {
	if req.Word == "" {
		s.sendError(req.ID, "Missing 'w' parameter", 400)
		log.Debug("Word is empty in select request")
		return
	}
	s.engine.RecordSelection(req.Word, req.Input)
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok"})
}

// handleLang switches the active language explicitly.
func (s *Server) handleLang(req Request) {
	lang, ok := language.Parse(req.Lang)
	if !ok {
		s.sendError(req.ID, fmt.Sprintf("Unknown language: %s", req.Lang), 400)
		return
	}
	s.engine.SwitchLanguage(lang)
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Lang: lang.String()})
}

// handleDict runs one dictionary management action. Bulk mutations also
// drop the suggestion cache, since cached results may rank stale entries;
// single add/remove keeps it, matching how learning behaves.
func (s *Server) handleDict(req Request) {
	switch req.Action {
	case "add":
		if req.Word == "" {
			s.sendError(req.ID, "Missing 'w' parameter", 400)
			return
		}
		s.dict.Add(req.Word, req.Reading, dictionary.SourceUserAdded)
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok", Count: 1})

	case "remove":
		if req.Word == "" {
			s.sendError(req.ID, "Missing 'w' parameter", 400)
			return
		}
		count := 0
		if s.dict.Remove(req.Word) {
			count = 1
		}
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok", Count: count})

	case "clear":
		s.dict.Clear()
		s.engine.ClearCache()
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok"})

	case "stats":
		s.sendResponse(DictResponse{
			ID:       req.ID,
			Status:   "ok",
			Count:    s.dict.Len(),
			Degraded: s.dict.Degraded(),
		})

	case "export":
		var buf bytes.Buffer
		if err := s.dict.ExportCSV(&buf); err != nil {
			s.sendError(req.ID, fmt.Sprintf("Export failed: %v", err), 500)
			log.Errorf("Exporting dictionary: %v", err)
			return
		}
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok", Count: s.dict.Len(), Data: buf.String()})

	case "import":
		if req.Data == "" {
			s.sendError(req.ID, "Missing 'data' parameter", 400)
			return
		}
		count, err := s.dict.ImportCSV(strings.NewReader(req.Data))
		if err != nil {
			s.sendError(req.ID, fmt.Sprintf("Import failed: %v", err), 500)
			log.Errorf("Importing dictionary: %v", err)
			return
		}
		s.engine.ClearCache()
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok", Count: count})

	case "reload":
		if err := s.dict.Reload(); err != nil {
			s.sendError(req.ID, fmt.Sprintf("Reload failed: %v", err), 500)
			log.Errorf("Reloading dictionary: %v", err)
			return
		}
		s.engine.ClearCache()
		s.sendResponse(DictResponse{ID: req.ID, Status: "ok", Count: s.dict.Len()})

	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown dict action: %s", req.Action), 400)
	}
}

// sendResponse encodes one response onto the stream.
func (s *Server) sendResponse(response interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.enc.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		log.Errorf("Flushing response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(ErrorResponse{ID: id, Error: message, Code: code})
}
