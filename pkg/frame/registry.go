package frame

import (
	"log/slog"
	"sync"
)

// SourceFactory constructs a fresh Source for a URI. Production wiring
// supplies an adapter over a real capture library; tests supply a fake that
// emits synthetic frames.
type SourceFactory func(uri string) Source

// Registry deduplicates providers by URI and is the sole owner of their
// lifecycle. Workers hold a *Provider reference plus their own *Consumer.
//
// Provider teardown on last-unsubscribe is intentionally not implemented
// (SPEC_FULL.md §12 decided to match the original, which never refcounts
// providers): once created, a provider lives until Registry.StopAll is
// called at process shutdown. This is a documented simplification, not an
// oversight.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*Provider
	newSource SourceFactory
	logger    *slog.Logger
}

// NewRegistry constructs an empty registry using newSource to build a Source
// for each distinct URI it's asked to open.
func NewRegistry(newSource SourceFactory, logger *slog.Logger) *Registry {
	return &Registry{
		providers: make(map[string]*Provider),
		newSource: newSource,
		logger:    logger.With("component", "frame.Registry"),
	}
}

// GetOrCreate returns the existing provider for uri or constructs, starts,
// and registers a new one. A failed start is not cached — the next call
// retries from scratch.
func (r *Registry) GetOrCreate(uri string) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[uri]; ok {
		return p, nil
	}

	p := NewProvider(uri, r.newSource(uri), r.logger)
	if err := p.Start(); err != nil {
		return nil, err
	}

	r.providers[uri] = p
	return p, nil
}

// StopAll stops every tracked provider. Intended for process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	providers := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	r.providers = make(map[string]*Provider)
	r.mu.Unlock()

	for _, p := range providers {
		p.Stop()
	}
}
