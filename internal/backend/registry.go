package backend

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ekisa-team/voxa/internal/config"
)

// Deps are the shared resources handed to every engine factory.
type Deps struct {
	Servers  *ServerManager
	Logger   *slog.Logger
	Executor *Executor
}

// Factory builds an engine from the speech configuration.
type Factory func(cfg config.SpeechConfig, deps Deps) (Backend, error)

// Registry maps providers to engine factories.
type Registry struct {
	factories map[Provider]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Provider]Factory),
	}
}

// Register adds the factory for p.
func (r *Registry) Register(p Provider, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[p]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, p)
	}

	r.factories[p] = f
	return nil
}

// Providers lists the registered providers in sorted order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// New builds the engine selected by cfg.Backend.
func (r *Registry) New(cfg config.SpeechConfig, deps Deps) (Backend, error) {
	p := Provider(cfg.Backend)

	r.mu.RLock()
	f, ok := r.factories[p]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	b, err := f(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to build %s: %w", p, err)
	}

	return b, nil
}
