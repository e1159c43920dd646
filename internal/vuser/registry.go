package vuser

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps type names to user types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds types. A name may only be registered once.
func (r *Registry) Register(types ...Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t.Name == "" {
			return fmt.Errorf("vuser: cannot register a type without a name")
		}
		if _, exists := r.types[t.Name]; exists {
			return fmt.Errorf("vuser: type %q already registered", t.Name)
		}
		r.types[t.Name] = t
	}
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
