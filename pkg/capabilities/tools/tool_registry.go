package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler is a function that handles tool execution
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (*ToolResult, error)

// ToolRegistry holds the fixed set of tools exposed by the server. The set
// is established at construction and never changes afterwards, so lookups
// need no locking and listings keep registration order.
type ToolRegistry struct {
	ordered []*ToolWithHandler
	byName  map[string]*ToolWithHandler
}

// NewToolRegistry creates a registry over the given tools
func NewToolRegistry(tools ...*ToolWithHandler) (*ToolRegistry, error) {
	registry := &ToolRegistry{
		ordered: make([]*ToolWithHandler, 0, len(tools)),
		byName:  make(map[string]*ToolWithHandler, len(tools)),
	}

	for _, tool := range tools {
		if tool == nil {
			return nil, fmt.Errorf("tool cannot be nil")
		}

		if tool.Name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}

		if tool.Handler == nil {
			return nil, fmt.Errorf("tool handler cannot be nil")
		}

		if _, exists := registry.byName[tool.Name]; exists {
			return nil, fmt.Errorf("tool with name %s already exists", tool.Name)
		}

		registry.ordered = append(registry.ordered, tool)
		registry.byName[tool.Name] = tool
	}

	return registry, nil
}

// GetTool returns a tool by name
func (r *ToolRegistry) GetTool(name string) (*ToolWithHandler, error) {
	tool, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("tool with name %s does not exist", name)
	}

	return tool, nil
}

// ListTools returns all registered tools in registration order
func (r *ToolRegistry) ListTools() []*ToolWithHandler {
	tools := make([]*ToolWithHandler, len(r.ordered))
	copy(tools, r.ordered)
	return tools
}

// Names returns the tool names in registration order
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, tool := range r.ordered {
		names[i] = tool.Name
	}
	return names
}

// Count returns the number of registered tools
func (r *ToolRegistry) Count() int {
	return len(r.ordered)
}
