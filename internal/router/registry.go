// Package router selects which registered agent should handle a thread's
// next turn (spec.md §4.8): a Registry holds named agents, and a Router
// picks one by scanning for an @mention or falling back to a classifier.
package router

import (
	"strings"
	"sync"

	"github.com/flores8/tyler/internal/agent"
)

// Registry holds named agents, keyed case-insensitively. It answers
// lookup and listing only; it does not own agent lifecycle.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	// order preserves registration order for List, independent of map
	// iteration order.
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*agent.Agent)}
}

// Register adds or replaces the agent under name, lower-cased. Re-
// registering an existing name keeps its position in List order.
func (r *Registry) Register(name string, a *agent.Agent) {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[key]; !exists {
		r.order = append(r.order, key)
	}
	r.agents[key] = a
}

// Get returns the agent registered under name (case-insensitive) and
// whether it was found.
func (r *Registry) Get(name string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[strings.ToLower(name)]
	return a, ok
}

// Has reports whether name (case-insensitive) is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns registered agent names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
