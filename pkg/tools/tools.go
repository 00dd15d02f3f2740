// Package tools defines the model-callable tools offered on each chat turn
// and exposed through the capability server.
package tools

import (
	"context"
	"errors"
	"sort"
)

// Sentinel errors for tool registration and dispatch.
var (
	ErrNotFound      = errors.New("tool not found")
	ErrAlreadyExists = errors.New("tool already registered")
	ErrEmptyName     = errors.New("tool name is empty")
)

// ExecuteFunc runs a tool with the arguments chosen by the model.
// The returned value is JSON-encoded before it is shown to the model.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a callable the model may invoke zero or more times per turn.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object describing the arguments.
	Parameters map[string]any
	Execute    ExecuteFunc
}

// Provider produces the set of tools to offer the model this turn.
type Provider interface {
	ListTools(ctx context.Context) (map[string]Tool, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (map[string]Tool, error)

func (f ProviderFunc) ListTools(ctx context.Context) (map[string]Tool, error) {
	return f(ctx)
}

// Sorted returns the tools ordered by name.
func Sorted(set map[string]Tool) []Tool {
	out := make([]Tool, 0, len(set))
	for _, t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ObjectSchema builds a JSON schema for an object with string properties.
// Keys of props are property names, values their descriptions.
func ObjectSchema(props map[string]string, required ...string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "string", "description": desc}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
