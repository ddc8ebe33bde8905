package tools

import (
	"context"
	"encoding/json"

	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// ToolsEndpoint represents an endpoint that handles tools capability methods
type ToolsEndpoint struct {
	protocol.BaseEndpoint
	capability *ToolsCapability
}

// NewToolsEndpoint creates a new tools capability endpoint
func NewToolsEndpoint(capability *ToolsCapability) *ToolsEndpoint {
	endpoint := &ToolsEndpoint{
		BaseEndpoint: *protocol.NewBaseEndpoint(protocol.ToolsNamespace),
		capability:   capability,
	}

	// Register methods
	endpoint.RegisterMethod("list", endpoint.handleList)
	endpoint.RegisterMethod("call", endpoint.handleCall)

	return endpoint
}

// handleList handles the tools/list request
func (e *ToolsEndpoint) handleList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var listParams protocol.ToolsListParams

	// Clients may omit params entirely on list requests
	if len(params) > 0 {
		if err := json.Unmarshal(params, &listParams); err != nil {
			return nil, &protocol.JSONRPCError{
				Code:    protocol.ErrorCodeInvalidParams,
				Message: "Invalid parameters: " + err.Error(),
			}
		}
	}

	return e.capability.HandleToolsList(ctx, listParams)
}

// handleCall handles the tools/call request
func (e *ToolsEndpoint) handleCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var callParams protocol.ToolsCallParams

	if len(params) > 0 {
		if err := json.Unmarshal(params, &callParams); err != nil {
			return nil, &protocol.JSONRPCError{
				Code:    protocol.ErrorCodeInvalidParams,
				Message: "Invalid parameters: " + err.Error(),
			}
		}
	}

	return e.capability.HandleToolsCall(ctx, callParams)
}
