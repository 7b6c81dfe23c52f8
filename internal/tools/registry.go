// Package tools implements the assistant's tool surface: sandboxed file
// operations, web fetching and search, stock lookups, and user management.
// The same registry backs the MCP endpoint, the legacy tool routes, and
// the chat agent.
package tools

import "context"

// Handler runs one tool call. Soft failures (bad arguments, missing
// files, upstream trouble) come back inside the result map under the
// "error" key; a non-nil error means the call itself blew up and maps to
// a protocol-level error.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Registry keeps tools in registration order so listings stay stable.
type Registry struct {
	tools []Tool
	index map[string]int
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[string]int)}
	r.Add(tools...)
	return r
}

func (r *Registry) Add(tools ...Tool) {
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			continue
		}
		if _, dup := r.index[t.Name]; dup {
			continue
		}
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Name)
	}
	return out
}

// List returns the tool descriptors in MCP wire shape.
func (r *Registry) List() []map[string]any {
	out := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return out
}

func (r *Registry) Get(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Call dispatches to the named tool. The second return is false when the
// tool does not exist.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error, bool) {
	t, ok := r.Get(name)
	if !ok {
		return nil, nil, false
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := t.Handler(ctx, args)
	return res, err, true
}

// DefaultRegistry wires every available tool group in the canonical
// order: files, web, stocks, users. Nil groups are skipped.
func DefaultRegistry(files *FileTools, web *WebTools, stocks *StockTools, users *UserTools) *Registry {
	r := NewRegistry()
	if files != nil {
		r.Add(files.Tools()...)
	}
	if web != nil {
		r.Add(web.Tools()...)
	}
	if stocks != nil {
		r.Add(stocks.Tools()...)
	}
	if users != nil {
		r.Add(users.Tools()...)
	}
	return r
}

func objectSchema(required []string, props map[string]any) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

func errResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
