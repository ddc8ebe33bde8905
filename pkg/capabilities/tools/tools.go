// Package tools provides the tools capability implementation
package tools

import (
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// ToolWithHandler extends the protocol.Tool definition with a handler function
type ToolWithHandler struct {
	// Embed the protocol.Tool to inherit all its fields
	protocol.Tool

	// Handler is the function that executes the tool
	Handler ToolHandler `json:"-"` // Not serialized
}

func NewTool(name, description string, inputSchema *protocol.JSONSchema, annotations map[string]interface{}, handler ToolHandler) *ToolWithHandler {
	return &ToolWithHandler{
		Tool: protocol.Tool{
			Name:        name,
			Description: description,
			InputSchema: inputSchema,
			Annotations: annotations,
		},
		Handler: handler,
	}
}

// ContentType represents the type of content in a tool result
type ContentType string

// ContentTypeText represents text content in a tool result. The text tools
// never produce binary or resource content.
const ContentTypeText ContentType = "text"

// ContentItem represents a content item in a tool result
type ContentItem struct {
	// Type is the type of content
	Type ContentType `json:"type"`

	// Text is the text content
	Text string `json:"text"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	// Content contains the content items returned by the tool
	Content []ContentItem `json:"content"`

	// IsError indicates whether the tool execution resulted in an error
	IsError bool `json:"isError"`
}

// NewTextContent creates a new text content item
func NewTextContent(text string) ContentItem {
	return ContentItem{
		Type: ContentTypeText,
		Text: text,
	}
}

// NewToolResult creates a new tool result
func NewToolResult(content []ContentItem, isError bool) *ToolResult {
	return &ToolResult{
		Content: content,
		IsError: isError,
	}
}

// NewErrorToolResult creates a new error tool result with a text message
func NewErrorToolResult(errorMessage string) *ToolResult {
	return &ToolResult{
		Content: []ContentItem{
			NewTextContent(errorMessage),
		},
		IsError: true,
	}
}

// NewSuccessToolResult creates a new success tool result with a text message
func NewSuccessToolResult(message string) *ToolResult {
	return &ToolResult{
		Content: []ContentItem{
			NewTextContent(message),
		},
		IsError: false,
	}
}
