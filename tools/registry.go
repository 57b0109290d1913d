package tools

import (
	"context"
	"errors"
	"iter"

	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/schema"
)

// Handler produces the content blocks of a tool call from validated
// arguments. The session of the call, if any, is available through
// session.FromContext.
type Handler func(ctx context.Context, args schema.Args) ([]mcp.Content, error)

// Tool is an immutable registered tool.
type Tool struct {
	name        string
	description string
	schema      *schema.Descriptor
	handler     Handler
}

func (t *Tool) Name() string               { return t.name }
func (t *Tool) Description() string        { return t.description }
func (t *Tool) Schema() *schema.Descriptor { return t.schema }

// Info returns the discoverable part of the tool.
func (t *Tool) Info() Info {
	return Info{Name: t.name, Description: t.description, Schema: t.schema}
}

// Info is the discoverable part of a tool: everything but its handler.
type Info struct {
	Name        string
	Description string
	Schema      *schema.Descriptor
}

// MCP renders the info as a tools/list entry.
func (i Info) MCP() mcp.Tool {
	return mcp.Tool{
		Name:        i.Name,
		Description: i.Description,
		InputSchema: i.Schema.InputSchema(""),
	}
}

// Definition bundles the arguments of Register for table-driven setup.
type Definition struct {
	Name        string
	Description string
	Schema      *schema.Descriptor
	Handler     Handler
}

// Registry is an ordered, append-only set of tools. Registration happens
// once at startup; after Seal the registry is read-only and safe for
// concurrent use without locking.
type Registry struct {
	order  []*Tool
	byName map[string]*Tool
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool)}
}

// Register adds a tool. A name collision fails with *DuplicateToolError and
// leaves the first registration in place.
func (r *Registry) Register(name, description string, desc *schema.Descriptor, handler Handler) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if handler == nil {
		return errors.New("tool handler cannot be nil")
	}
	if _, exists := r.byName[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	if desc == nil {
		desc = schema.MustNew()
	}

	tool := &Tool{name: name, description: description, schema: desc, handler: handler}
	r.order = append(r.order, tool)
	r.byName[name] = tool
	logger.Debug("Tool registered", "name", name, "params", desc.Len())
	return nil
}

// Add registers every definition in order, stopping at the first error.
func (r *Registry) Add(defs ...Definition) error {
	for _, def := range defs {
		if err := r.Register(def.Name, def.Description, def.Schema, def.Handler); err != nil {
			return err
		}
	}
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether registration has ended.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup finds a tool by exact name.
func (r *Registry) Lookup(name string) (*Tool, error) {
	tool, ok := r.byName[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// List yields every tool's info in registration order. Each call starts a
// fresh iteration.
func (r *Registry) List() iter.Seq[Info] {
	return func(yield func(Info) bool) {
		for _, tool := range r.order {
			if !yield(tool.Info()) {
				return
			}
		}
	}
}

// Tools returns the tools/list entries in registration order.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for info := range r.List() {
		out = append(out, info.MCP())
	}
	return out
}
