// Package model owns the per-language inference backends and the registry
// that loads, shares and unloads them. Loads are lazy and happen at most
// once per language no matter how many queries race for the handle.
package model

import (
	"context"
	"errors"

	"github.com/kaedera/predictd/pkg/language"
)

// Candidate is one raw model suggestion before personalization. Scores are
// backend-normalized to (0, 1].
type Candidate struct {
	Text  string
	Score float64
}

// Backend scores completion candidates for a token window. The final token
// of the window is the word being typed; an empty final token asks for
// next-word predictions instead. Predict honors ctx and returns early with
// ctx.Err() when the caller gives up. Implementations must be safe for
// concurrent Predict calls.
type Backend interface {
	Predict(ctx context.Context, tokens []string) ([]Candidate, error)
	Release()
}

// Loader produces a ready backend for a language. The registry is the only
// caller; it guarantees one Load per language at a time.
type Loader interface {
	Load(ctx context.Context, lang language.Language) (Backend, error)
}

var (
	// ErrUnavailable means no backend could serve the language: the model
	// file is missing, still loading, or failed to load.
	ErrUnavailable = errors.New("model unavailable")

	// ErrDecodeFailure means the model file exists but could not be decoded.
	ErrDecodeFailure = errors.New("model decode failure")
)
