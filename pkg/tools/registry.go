package tools

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Registry is an in-memory Provider. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

var _ Provider = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. It returns ErrAlreadyExists if the name is taken.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ListTools returns a snapshot of the registered tools.
func (r *Registry) ListTools(ctx context.Context) (map[string]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.tools), nil
}

// Execute dispatches a call by tool name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Execute(ctx, t, args)
}

// Execute runs t, wrapping failures with the tool name.
func Execute(ctx context.Context, t Tool, args map[string]any) (any, error) {
	if t.Execute == nil {
		return nil, fmt.Errorf("tool %s has no execute function", t.Name)
	}
	if args == nil {
		args = map[string]any{}
	}
	out, err := t.Execute(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s execution failed: %w", t.Name, err)
	}
	return out, nil
}
