package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/kaedera/predictd/pkg/language"
)

// State tracks a language handle through its lifecycle.
type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type handle struct {
	state   State
	backend Backend
	lastErr error
}

// Registry owns one handle per language. Loads are lazy: the first query
// for a language triggers the load, concurrent queries during loading share
// that single attempt, and a failed handle retries on the next query.
type Registry struct {
	mu      sync.Mutex
	loader  Loader
	handles map[language.Language]*handle
	group   singleflight.Group
}

// NewRegistry returns a registry with every language unloaded.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		handles: make(map[language.Language]*handle),
	}
}

// Acquire returns the ready backend for lang, starting a load if none is in
// flight. It waits no longer than ctx allows; on expiry the load keeps
// running in the background so a later query can find the handle ready, and
// the caller gets ErrUnavailable now.
func (r *Registry) Acquire(ctx context.Context, lang language.Language) (Backend, error) {
	r.mu.Lock()
	h := r.handleLocked(lang)
	if h.state == StateReady {
		b := h.backend
		r.mu.Unlock()
		return b, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(lang.String(), func() (interface{}, error) {
		return r.load(lang)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Backend), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s model still loading", ErrUnavailable, lang)
	}
}

// load runs inside the singleflight group, so at most one executes per
// language at a time. It deliberately ignores request contexts: a load
// triggered by a timed-out query should still finish and serve the next one.
func (r *Registry) load(lang language.Language) (Backend, error) {
	r.mu.Lock()
	h := r.handleLocked(lang)
	if h.state == StateReady {
		// a load that completed between our fast path and this call
		b := h.backend
		r.mu.Unlock()
		return b, nil
	}
	h.state = StateLoading
	h.lastErr = nil
	r.mu.Unlock()

	backend, err := r.loader.Load(context.Background(), lang)

	r.mu.Lock()
	defer r.mu.Unlock()
	h = r.handleLocked(lang)
	if err != nil {
		h.state = StateFailed
		h.lastErr = err
		h.backend = nil
		log.Errorf("Failed to load %s model: %v", lang, err)
		return nil, err
	}
	h.state = StateReady
	h.backend = backend
	log.Debugf("Loaded %s model", lang)
	return backend, nil
}

// State reports the lifecycle state for lang without side effects.
func (r *Registry) State(lang language.Language) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[lang]; ok {
		return h.state
	}
	return StateUnloaded
}

// LastError returns the error recorded by the most recent failed load.
func (r *Registry) LastError(lang language.Language) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[lang]; ok {
		return h.lastErr
	}
	return nil
}

// Unload releases a ready backend, reporting whether one was released.
// Queries holding the backend keep using it until they finish; the next
// query for lang triggers a fresh load.
func (r *Registry) Unload(lang language.Language) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[lang]
	if !ok || h.state != StateReady {
		return false
	}
	h.backend.Release()
	h.backend = nil
	h.state = StateUnloaded
	log.Debugf("Unloaded %s model", lang)
	return true
}

// UnloadAll releases every ready backend, the response to a memory pressure
// signal. Returns how many were released.
func (r *Registry) UnloadAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for lang, h := range r.handles {
		if h.state != StateReady {
			continue
		}
		h.backend.Release()
		h.backend = nil
		h.state = StateUnloaded
		released++
		log.Debugf("Unloaded %s model", lang)
	}
	return released
}

func (r *Registry) handleLocked(lang language.Language) *handle {
	h, ok := r.handles[lang]
	if !ok {
		h = &handle{}
		r.handles[lang] = h
	}
	return h
}
