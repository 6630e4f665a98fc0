package llm

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/logging"
)

// Backend names registered by NewRegistryFromConfig.
const (
	BackendXAI     = "xai"
	BackendGrok420 = "grok420"
	BackendDemo    = "demo"
)

// DemoCredential is the literal credential value that selects the demo backend.
const DemoCredential = "demo"

// Registry manages agent backends and resolves names to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // backend name → client
	aliases  map[string]string // alias → backend name
	fallback string            // default backend name
	log      *logging.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given backend name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("backend", name).Msg("registered agent backend")
}

// Alias maps an alternate name to a backend.
// e.g., Alias("extended", "grok420").
func (r *Registry) Alias(alias, backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = backend
}

// SetFallback sets the backend used when no name or alias matches.
func (r *Registry) SetFallback(backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = backend
}

// Resolve returns the Client for the given name.
// Resolution order: exact backend name → alias → fallback.
func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[name]; ok {
		return c, nil
	}

	if backend, ok := r.aliases[name]; ok {
		if c, ok := r.clients[backend]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no agent backend named %q", name)
}

// Select picks the backend for a round. An empty or "demo" credential selects
// the demo backend; otherwise the extended backend is used when enabled.
func (r *Registry) Select(credential string, extended bool) (Client, error) {
	cred := strings.TrimSpace(credential)
	switch {
	case cred == "" || strings.EqualFold(cred, DemoCredential):
		return r.Resolve(BackendDemo)
	case extended:
		return r.Resolve(BackendGrok420)
	default:
		return r.Resolve(BackendXAI)
	}
}

// List returns all registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the live, extended and demo backends for cfg.
// httpClient may be nil.
func NewRegistryFromConfig(cfg config.Config, httpClient *http.Client, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	live := NewXAIClient(cfg.BaseURL, httpClient)
	reg.Register(BackendXAI, live)
	reg.Alias("live", BackendXAI)

	if cfg.Features.ExtendedEnabled() {
		reg.Register(BackendGrok420, NewExtendedClient(live))
		reg.Alias("extended", BackendGrok420)
		reg.SetFallback(BackendGrok420)
	} else {
		reg.SetFallback(BackendXAI)
	}

	reg.Register(BackendDemo, NewDemoClient(cfg.DemoDelay()))
	reg.Alias("offline", BackendDemo)

	return reg
}
