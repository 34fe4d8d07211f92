package analyzer

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps objective names to analyzer factories. Registration
// happens once at startup; duplicates fail loudly.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under the objective name its analyzers report.
func (r *Registry) Register(f Factory) error {
	name := f().ObjectiveName()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("registry: objective %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is a
// programmer error.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for an objective.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown objective %q", name)
	}
	return f, nil
}

// Objectives returns the registered objective names, alphabetically.
func (r *Registry) Objectives() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry is the process-wide registry populated at startup by
// the analyzer/all wire-up package.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }
