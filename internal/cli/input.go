// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/kaedera/predictd/internal/utils"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/suggest"
)

// InputHandler processes user input from stdin, providing scored
// suggestions. It accepts flags to control behavior such as minimum and
// maximum prefix length, suggestion limits, and filtering options. Lines
// starting with ':' are commands for poking the learning and language
// machinery; everything else is treated as a prefix query.
type InputHandler struct {
	engine          *suggest.Engine
	dict            *dictionary.Store
	minPrefixLength int
	maxPrefixLength int
	suggestLimit    int
	requestCount    int
	noFilter        bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(engine *suggest.Engine, dict *dictionary.Store, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		engine:          engine,
		dict:            dict,
		minPrefixLength: minLength,
		maxPrefixLength: maxLength,
		suggestLimit:    limit,
		noFilter:        noFilter,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin, and passes
// the trimmed line to handleLine(). The loop terminates on :quit or when
// reading from stdin fails.
func (h *InputHandler) Start() error {
	log.Print("predictd CLI [BETA]")
	reader := bufio.NewReader(os.Stdin)
	log.Print("type something and press Enter to see the suggestions (Ctrl+C to exit)")
	log.Print("commands: :lang en|ja  :learn <word>  :forget <word>  :stats  :quit")

	for {
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !h.handleLine(line) {
			return nil
		}
	}
}

// handleLine runs one command or query. It returns false when the session
// should end.
func (h *InputHandler) handleLine(line string) bool {
	if strings.HasPrefix(line, ":") {
		return h.handleCommand(line)
	}
	h.handleInput(line)
	return true
}

func (h *InputHandler) handleCommand(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case ":quit", ":q":
		return false
	case ":lang":
		lang, ok := language.Parse(arg)
		if !ok {
			log.Errorf("Unknown language: %s", arg)
			return true
		}
		h.engine.SwitchLanguage(lang)
		log.Printf("Active language: %s", lang)
	case ":learn":
		if arg == "" {
			log.Error("Usage: :learn <word>")
			return true
		}
		h.engine.RecordSelection(arg, "")
		rec, _ := h.dict.Lookup(arg)
		log.Printf("Learned '%s' (frequency %d)", arg, rec.Frequency)
	case ":forget":
		if arg == "" {
			log.Error("Usage: :forget <word>")
			return true
		}
		if h.dict.Remove(arg) {
			log.Printf("Removed '%s'", arg)
		} else {
			log.Warnf("'%s' is not in the dictionary", arg)
		}
	case ":stats":
		stats := h.engine.Stats()
		log.Printf("language: %s", h.engine.ActiveLanguage())
		log.Printf("session queries: %d", h.requestCount)
		for _, key := range []string{"dictWords", "cachedQueries", "cacheCapacity", "maxSuggestions"} {
			log.Printf("%s: %d", key, stats[key])
		}
		if h.dict.Degraded() {
			log.Warn("dictionary persistence is degraded (in-memory only)")
		}
	default:
		log.Errorf("Unknown command: %s", cmd)
	}
	return true
}

// handleInput processes a single prefix to generate suggestions.
// It validates the prefix's length and content, routes the language by
// script, then asks the engine for suggestions. Results are formatted and
// printed to the log.
func (h *InputHandler) handleInput(prefix string) {
	h.requestCount++

	runes := utf8.RuneCountInString(prefix)
	if runes < h.minPrefixLength {
		log.Errorf("Prefix too short: %s", prefix)
		return
	}
	if runes > h.maxPrefixLength {
		log.Errorf("Prefix too long: %s", prefix)
		return
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter {
		if !utils.IsValidInput(prefix) {
			log.Warnf("No suggestions found for prefix: '%s' (filtered out)", prefix)
			return
		}
	} else {
		log.Debug("Input filtering disabled - allowing all inputs")
	}

	if language.ShouldSwitch(h.engine.ActiveLanguage(), prefix) {
		h.engine.SwitchLanguage(language.Classify(prefix))
		log.Debugf("Routed to %s by script", h.engine.ActiveLanguage())
	}

	start := time.Now()
	log.Debug("Processing request for", "prefix", prefix)

	suggestions, err := h.engine.Predict(context.Background(), prefix)
	if err != nil {
		log.Errorf("Prediction failed: %v", err)
		return
	}
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for prefix '%s'", elapsed, prefix)

	if len(suggestions) == 0 {
		log.Warnf("No suggestions found for prefix: '%s'", prefix)
		return
	}
	if len(suggestions) > h.suggestLimit {
		suggestions = suggestions[:h.suggestLimit]
	}

	log.Printf("Found %d suggestions for prefix '%s':", len(suggestions), prefix)
	for i, s := range suggestions {
		word := utils.PreserveCapitals(prefix, s.Text)
		clWord := fmt.Sprintf("\033[38;5;75m%s\033[0m", word)
		log.Printf("%2d. %-40s (score: %7.4f)", i+1, clWord, s.Score)
	}
}
