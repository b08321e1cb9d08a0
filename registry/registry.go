// Package registry maps well-known names to engine modules so a driver can
// find a subsystem without importing its concrete type.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound  = errors.New("registry: module not found")
	ErrWrongType = errors.New("registry: module has a different type")
	ErrDuplicate = errors.New("registry: module already registered")
)

// Registry is a name to module dictionary. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]any
}

func New() *Registry {
	return &Registry{modules: make(map[string]any)}
}

var global = New()

// Global returns the process wide registry.
func Global() *Registry {
	return global
}

// Register adds m under name. The first registration of a name wins.
func (r *Registry) Register(name string, m any) error {
	if m == nil {
		return fmt.Errorf("registry: nil module for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.modules[name] = m
	return nil
}

// Find returns the module registered under name without a type check.
func (r *Registry) Find(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Merge copies other's modules into r. Names already present in r keep
// their current module. It returns the number of modules added.
func (r *Registry) Merge(other *Registry) int {
	if other == nil || other == r {
		return 0
	}
	other.mu.RLock()
	entries := make(map[string]any, len(other.modules))
	for k, v := range other.modules {
		entries[k] = v
	}
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for k, v := range entries {
		if _, ok := r.modules[k]; ok {
			continue
		}
		r.modules[k] = v
		added++
	}
	return added
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for k := range r.modules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the module registered under name as a T.
func Lookup[T any](r *Registry, name string) (T, error) {
	var zero T
	m, ok := r.Find(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	t, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongType, name, m)
	}
	return t, nil
}
