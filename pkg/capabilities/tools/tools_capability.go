// Package tools provides the tools capability implementation
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pcurtin/mcp-texttools/pkg/capability"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// ToolsCapability represents the Tools server capability. The tool set is
// fixed at construction, so the capability never advertises list change
// notifications and needs no session tracking.
type ToolsCapability struct {
	capability.BasicCapability
	registry *ToolRegistry
	// Endpoint associated with this capability
	endpoint *ToolsEndpoint
}

// ToolsCapabilityFactory creates a new instance of ToolsCapability.
// An optional first option carries the tool set as a []*ToolWithHandler.
func ToolsCapabilityFactory(options ...interface{}) (capability.Capability, error) {
	var toolSet []*ToolWithHandler

	if len(options) > 0 {
		set, ok := options[0].([]*ToolWithHandler)
		if !ok {
			return nil, &capability.CapabilityError{
				Message: "tools capability options must be a tool list",
			}
		}
		toolSet = set
	}

	return NewToolsCapability(toolSet...)
}

// NewToolsCapability creates a new instance of ToolsCapability exposing the
// given tools, listed in registration order.
func NewToolsCapability(toolSet ...*ToolWithHandler) (*ToolsCapability, error) {
	registry, err := NewToolRegistry(toolSet...)
	if err != nil {
		return nil, &capability.CapabilityError{
			Message: "invalid tool set",
			Cause:   err,
		}
	}

	tc := &ToolsCapability{
		registry: registry,
	}
	tc.TypeName = capability.Tools
	tc.DescText = "Tools capability implementation"
	tc.endpoint = NewToolsEndpoint(tc)

	// The tool set never changes, so listChanged is always false
	optionsMap := map[string]interface{}{
		"listChanged": false,
	}
	optionsJSON, _ := json.Marshal(optionsMap)
	tc.OptionsData = optionsJSON

	return tc, nil
}

func (t *ToolsCapability) GetEndpoint() protocol.Endpoint {
	return t.endpoint
}

// Initialize initializes the capability. The tool set and the advertised
// options are fixed at construction, so there is nothing to configure.
func (t *ToolsCapability) Initialize(ctx context.Context, options json.RawMessage) error {
	return nil
}

// Shutdown performs any necessary cleanup when the capability is no longer needed
func (t *ToolsCapability) Shutdown(ctx context.Context) error {
	// No special cleanup needed for this capability
	return nil
}

// GetTool returns a tool by name
func (t *ToolsCapability) GetTool(name string) (*ToolWithHandler, error) {
	return t.registry.GetTool(name)
}

// ListTools returns all registered tools
func (t *ToolsCapability) ListTools() []*ToolWithHandler {
	return t.registry.ListTools()
}

// ToolNames returns the registered tool names in registration order
func (t *ToolsCapability) ToolNames() []string {
	return t.registry.Names()
}

// CountTools returns the number of registered tools
func (t *ToolsCapability) CountTools() int {
	return t.registry.Count()
}

// HandleToolsList handles the tools/list request
func (t *ToolsCapability) HandleToolsList(ctx context.Context, params protocol.ToolsListParams) (*protocol.ToolsListResult, error) {
	tools := t.ListTools()

	// Convert to the format expected by the protocol
	resultTools := make([]protocol.Tool, 0, len(tools))
	for _, tool := range tools {
		// Just copy the embedded Tool struct directly
		resultTools = append(resultTools, tool.Tool)
	}

	// The full set always fits in one page, so NextCursor stays empty
	result := &protocol.ToolsListResult{
		Tools: resultTools,
	}

	return result, nil
}

// HandleToolsCall handles the tools/call request. A name that matches no
// registered tool is a protocol error naming the valid tools; failures inside
// a registered tool are reported by the tool result itself.
func (t *ToolsCapability) HandleToolsCall(ctx context.Context, params protocol.ToolsCallParams) (*protocol.ToolsCallResult, error) {
	tool, err := t.GetTool(params.Name)
	if err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInvalidRequest,
			Message: fmt.Sprintf("Unknown tool: %s. Available tools: %s", params.Name, strings.Join(t.registry.Names(), ", ")),
		}
	}

	// Execute the tool
	arguments, err := json.Marshal(params.Arguments)
	if err != nil {
		return nil, protocol.NewJSONRPCError(protocol.ErrorCodeInvalidParams, "Invalid arguments format", err)
	}

	result, err := tool.Handler(ctx, arguments)
	if err != nil {
		// Handle protocol errors
		var jsonrpcErr *protocol.JSONRPCError
		if errors.As(err, &jsonrpcErr) {
			return nil, jsonrpcErr
		}

		// Return a generic error
		return nil, protocol.NewJSONRPCError(protocol.ErrorCodeInternalError, "Tool execution failed", err)
	}

	if result == nil {
		result = NewSuccessToolResult("")
	}

	// Convert to protocol format
	protocolContent := make([]protocol.ToolResultContent, 0, len(result.Content))
	for _, content := range result.Content {
		protocolContent = append(protocolContent, protocol.ToolResultContent{
			Type: string(content.Type),
			Text: content.Text,
		})
	}

	return &protocol.ToolsCallResult{
		Content: protocolContent,
		IsError: result.IsError,
	}, nil
}
