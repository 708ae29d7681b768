package source

import (
	"fmt"
	"sync"
)

// Registry holds the configured connectors in priority order. The fallback
// coordinator iterates this static ordering; there is no runtime provider
// discovery.
type Registry struct {
	mu      sync.RWMutex
	ordered []Connector
	byName  map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Connector)}
}

// Register appends a connector to the priority order. Registering a name
// twice is a configuration error.
func (r *Registry) Register(c Connector) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("connector name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("connector %q already registered", name)
	}
	r.byName[name] = c
	r.ordered = append(r.ordered, c)
	return nil
}

// Get returns a connector by name.
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Ordered returns the connectors in registration (priority) order.
func (r *Registry) Ordered() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connector, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered provider names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		names[i] = c.Name()
	}
	return names
}
