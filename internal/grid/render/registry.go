// Package render maps declared render types to the template components that
// draw them. Only registered types can be rendered.
package render

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

var (
	// ErrUnregistered is returned for a type with no registered component.
	ErrUnregistered = errors.New("render: type not registered")
	// ErrAlreadyRegistered is returned when registering an existing type.
	ErrAlreadyRegistered = errors.New("render: type already registered")
	// ErrEmptyComponent is returned when registering a blank component name.
	ErrEmptyComponent = errors.New("render: empty component")
)

// Registry is an allowlist from render type to component name.
type Registry[K ~string] struct {
	kind       string
	mu         sync.RWMutex
	components map[K]string
}

func newRegistry[K ~string](kind string, types []K) *Registry[K] {
	r := &Registry[K]{kind: kind, components: make(map[K]string, len(types))}
	for _, t := range types {
		r.components[t] = kind + "/" + string(t)
	}
	return r
}

// NewCellRegistry is seeded with every grid.RenderType.
func NewCellRegistry() *Registry[grid.RenderType] {
	return newRegistry("cell", grid.RenderTypes())
}

// NewFilterRegistry is seeded with every grid.FilterType.
func NewFilterRegistry() *Registry[grid.FilterType] {
	return newRegistry("filter", grid.FilterTypes())
}

// Component returns the component registered for t.
func (r *Registry[K]) Component(t K) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	component, ok := r.components[t]
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrUnregistered, r.kind, string(t))
	}
	return component, nil
}

// Register adds a host component. Existing types cannot be overridden.
func (r *Registry[K]) Register(t K, component string) error {
	if t == "" || component == "" {
		return ErrEmptyComponent
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[t]; exists {
		return fmt.Errorf("%w: %s %q", ErrAlreadyRegistered, r.kind, string(t))
	}
	r.components[t] = component
	return nil
}

// Types returns the registered types in sorted order.
func (r *Registry[K]) Types() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.components))
}
