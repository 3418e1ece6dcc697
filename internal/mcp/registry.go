package mcp

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolHandler runs a tool and returns the text placed in the result content.
// args is never nil.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool pairs a tool definition with its handler.
type Tool struct {
	Definition *sdk.Tool
	Handler    ToolHandler
}

// Registry is an ordered, immutable set of tools keyed by name.
type Registry struct {
	order  []*sdk.Tool
	byName map[string]Tool
}

// NewRegistry builds a registry in the given order. Tool names must be unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		order:  make([]*sdk.Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if t.Definition == nil || t.Definition.Name == "" {
			return nil, errors.New("tool definition with a name is required")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", t.Definition.Name)
		}
		if _, dup := r.byName[t.Definition.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Definition.Name)
		}
		r.order = append(r.order, t.Definition)
		r.byName[t.Definition.Name] = t
	}
	return r, nil
}

// NewRegistryFromCatalog selects the named tools from catalog, in the order given.
func NewRegistryFromCatalog(catalog map[string]Tool, names []string) (*Registry, error) {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q in tool set", name)
		}
		tools = append(tools, t)
	}
	return NewRegistry(tools...)
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Definitions returns the tool definitions in registration order.
func (r *Registry) Definitions() []*sdk.Tool {
	out := make([]*sdk.Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
