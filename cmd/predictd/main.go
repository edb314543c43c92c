// Copyright 2025 The predictd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the predictd prediction server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

predictd provides on-device predictive text: context-aware suggestions from
per-language bigram models, boosted by a learned user dictionary and served
over MessagePack IPC for integration with editors and input methods. It can
also run as an interactive CLI for testing and debugging.

Models are loaded lazily per language and can be released on demand, so a
host that never switches to Japanese never pays for the Japanese model. The
user dictionary is a single snapshot file shared between processes; learning
keeps working in memory even when the snapshot location is unreachable.

# Usage

Start the server with default settings:

	predictd

Use a custom model directory and enable debug mode:

	predictd -models /path/to/models -d

Run in CLI mode for interactive testing:

	predictd -c -limit 10

Build a model file from a plain-text corpus:

	predictd -mkmodel corpus.txt -lang en

The model directory holds per-language msgpack files named en.model,
ja.model, etc. These are produced offline (see -mkmodel) and loaded on
demand the first time a language is queried.

# Configuration

Runtime configuration is managed through a TOML file that supports pipeline
parameters, boosting weights, and server limits:

	[predict]
	max_suggestions = 30
	cache_capacity = 100
	timeout_ms = 50

	[boost]
	frequency = 0.3
	recency = 0.2
	prefix_bonus = 0.1

	[server]
	max_limit = 64
	min_prefix = 1
	max_prefix = 60
	enable_filter = true

The config file is automatically created with defaults if it doesn't exist.
Values a hand-edited file breaks are clamped back to sane minimums.

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. Prediction
requests are handled concurrently with microsecond timing information
included in responses.

Send a prediction request:

	{"id": "req1", "op": "predict", "in": "he", "l": 20}

Receive scored suggestions:

	{"id": "req1", "s": [{"w": "hello", "s": 1.43, "r": 1}], "c": 1, "lang": "en", "t": 912}

Report an accepted suggestion so it ranks higher next time:

	{"id": "sel1", "op": "select", "w": "hello", "in": "he"}

Dictionary management requests allow runtime editing, CSV export/import and
reloading the snapshot written by another process:

	{"id": "dict1", "op": "dict", "action": "stats"}
	{"id": "dict2", "op": "dict", "action": "export"}

# Server Mode

The default mode starts a MessagePack IPC server that processes requests
from stdin and writes responses to stdout. Logging goes to stderr so the
response stream stays clean.

	srv := server.NewServer(engine, dict, registry, appConfig)
	err := srv.Start()

Responses come back in completion order; a slow query does not block the
queries behind it. Clients correlate by request ID.

# CLI Mode

CLI mode provides an interactive interface for testing and debugging the
pipeline. It reads prefixes from stdin and displays scored suggestions, and
accepts :commands for poking the learning machinery (:lang, :learn,
:forget, :stats).

	inputHandler := cli.NewInputHandler(engine, dict, minLen, maxLen, limit, noFilter)
	err := inputHandler.Start()

This mode is primarily intended for development and testing new features
before deploying to server mode.

# Degraded Modes

Every failure degrades instead of crashing: a missing model file means empty
model candidates (dictionary-only suggestions still flow), a corrupt user
dictionary starts empty but keeps persisting, an unreachable dictionary
location keeps learning in memory for the session, and a query that
overruns its budget returns whatever was ranked in time.

# Command Line Flags

The following flags control application behavior:

	-config string
	    Path to a TOML config file (default: per-user config dir)
	-dict string
	    Path to the user dictionary snapshot (overrides config)
	-models string
	    Directory containing model files (overrides config)
	-lang string
	    Initial language, en or ja (default "en")
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-limit int
	    Number of suggestions to show in CLI mode (default from config)
	-no-filter
	    Disable input filtering for debugging
	-mkmodel string
	    Build a model file from the given corpus and exit
	-o string
	    Output path for -mkmodel (default: <model dir>/<lang>.model)
	-init-config
	    Rewrite the default config file with builtin defaults and exit
	-version
	    Show current version
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/kaedera/predictd/internal/cli"
	"github.com/kaedera/predictd/internal/logger"
	"github.com/kaedera/predictd/internal/modelgen"
	"github.com/kaedera/predictd/pkg/config"
	"github.com/kaedera/predictd/pkg/dictionary"
	"github.com/kaedera/predictd/pkg/language"
	"github.com/kaedera/predictd/pkg/model"
	"github.com/kaedera/predictd/pkg/server"
	"github.com/kaedera/predictd/pkg/suggest"
	"github.com/kaedera/predictd/pkg/tokenize"
)

const (
	Version = "0.3.0-beta"
	AppName = "predictd"
	gh      = "https://github.com/kaedera/predictd"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	// custom Flags
	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to a TOML config file")
	dictPath := flag.String("dict", "", "Path to the user dictionary snapshot (overrides config)")
	modelDir := flag.String("models", "", "Directory containing model files (overrides config)")
	langCode := flag.String("lang", "en", "Initial language (en, ja)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to show in CLI mode")
	noFilter := flag.Bool("no-filter", defaultConfig.CLI.DefaultNoFilter, "Disable input filtering (DBG only) - runs predictions for numbers, repeats, etc")
	mkModel := flag.String("mkmodel", "", "Build a model file from the given plain-text corpus and exit")
	outPath := flag.String("o", "", "Output path for -mkmodel (default: <model dir>/<lang>.model)")
	initConfig := flag.Bool("init-config", false, "Rewrite the default config file with builtin defaults and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *initConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote default config to %s\n", config.GetActiveConfigPath(""))
		return
	}

	appConfig, activeConfigPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(activeConfigPath))

	if *dictPath != "" {
		appConfig.Dict.Path = *dictPath
	}
	if *modelDir != "" {
		appConfig.Model.Dir = *modelDir
	}

	startLang, ok := language.Parse(*langCode)
	if !ok {
		log.Warnf("Unknown language %q, using %s", *langCode, language.Default)
		startLang = language.Default
	}

	if *mkModel != "" {
		if err := buildModel(appConfig, startLang, *mkModel, *outPath); err != nil {
			log.Fatalf("Model build failed: %v", err)
		}
		return
	}

	dict := dictionary.Open(appConfig.DictionaryPath())
	log.Debugf("Dictionary: %d words at (%s)", dict.Len(), dict.Path())

	loader := model.NewFileLoader(appConfig.ModelDir())
	registry := model.NewRegistry(loader)

	engine := suggest.NewEngine(appConfig, dict, registry, buildTokenizers())
	if startLang != language.Default {
		engine.SwitchLanguage(startLang)
	}

	// CLI would be mainly used for testing and dbg purposes.
	// Any new features or changes should be tested in CLI mode first.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"minPrefix", appConfig.Server.MinPrefix,
			"maxPrefix", appConfig.Server.MaxPrefix,
			"limit", *limit,
			"noFilter", *noFilter)

		inputHandler := cli.NewInputHandler(engine, dict, appConfig.Server.MinPrefix, appConfig.Server.MaxPrefix, *limit, *noFilter)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(engine, dict, registry, appConfig)

	showStartupInfo(dict, appConfig.ModelDir())

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildTokenizers wires one tokenizer per language. The Japanese tokenizer
// embeds a dictionary and can fail to initialize; queries then degrade to
// separator tokenization instead of taking the process down.
func buildTokenizers() map[language.Language]tokenize.Tokenizer {
	tokenizers := map[language.Language]tokenize.Tokenizer{
		language.English: tokenize.NewLatin(),
	}
	ja, err := tokenize.NewJapanese()
	if err != nil {
		log.Warnf("Japanese tokenizer unavailable, falling back to separator tokenization: %v", err)
		tokenizers[language.Japanese] = tokenize.NewLatin()
		return tokenizers
	}
	tokenizers[language.Japanese] = ja
	return tokenizers
}

// buildModel runs the offline corpus-to-model pipeline for one language.
func buildModel(appConfig *config.Config, lang language.Language, corpusPath, outPath string) error {
	var tok tokenize.Tokenizer = tokenize.NewLatin()
	if lang == language.Japanese {
		ja, err := tokenize.NewJapanese()
		if err != nil {
			return fmt.Errorf("japanese tokenizer: %w", err)
		}
		tok = ja
	}

	corpus, err := os.Open(corpusPath)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer corpus.Close()

	mf, err := modelgen.Build(corpus, lang, tok)
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = model.NewFileLoader(appConfig.ModelDir()).ModelPath(lang)
	}
	if err := model.WriteModel(outPath, mf); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s model (%d words) to %s\n", lang, len(mf.Unigrams), outPath)
	return nil
}

// printVersion displays the version banner.
func printVersion() {
	banner := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()

	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})

	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ predictd ] On-device predictive text, served fast!")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(dict *dictionary.Store, modelDir string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println("  predictd ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("user dict: %d words ( %s )", dict.Len(), dict.Path())
	if dict.Degraded() {
		log.Warn("dictionary persistence degraded: learning is in-memory only")
	}
	log.Infof("model dir: ( %s )", modelDir)
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
