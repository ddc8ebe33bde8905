// Package client provides the implementation of an MCP client
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
	stdiotransport "github.com/pcurtin/mcp-texttools/pkg/transport/stdio"
)

// Client represents an MCP client that connects to a server
type Client struct {
	// Client ID
	ID string

	// Client information
	Info map[string]string

	// Protocol version requested during initialization
	ProtocolVersion protocol.ProtocolVersion

	// Transport used for communication
	transport protocol.Transport

	// Transport registry used for creating transports
	transportRegistry *protocol.TransportRegistry

	// JSON-RPC dispatcher
	dispatcher *protocol.JSONRPCDispatcher

	// Session represents the active session with the server
	session *protocol.Session

	// Protocol version the server answered with
	negotiatedVersion string

	// Usage instructions the server returned during initialization
	serverInstructions string

	// Maximum elapsed time for call retries. Zero disables retries.
	retryMaxElapsed time.Duration

	// Logger
	loggerFactory *logging.LoggerFactory
	logger        *slog.Logger
}

// ToolResponse is the decoded envelope a text tool call produced. Success
// carries input_length plus result (a string for the transforms, a number for
// word_count) or, for character_count, the two counters. Failed validation or
// execution sets Success false and fills Error instead.
type ToolResponse struct {
	Success bool   `json:"success"`
	Tool    string `json:"tool"`
	Error   string `json:"error,omitempty"`

	InputLength             int             `json:"input_length,omitempty"`
	Result                  json.RawMessage `json:"result,omitempty"`
	TotalCharacters         int             `json:"total_characters,omitempty"`
	CharactersWithoutSpaces int             `json:"characters_without_spaces,omitempty"`
}

// ResultString decodes the result field as a string
func (r *ToolResponse) ResultString() (string, error) {
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return "", fmt.Errorf("result is not a string: %w", err)
	}
	return s, nil
}

// ResultNumber decodes the result field as a number
func (r *ToolResponse) ResultNumber() (float64, error) {
	var n float64
	if err := json.Unmarshal(r.Result, &n); err != nil {
		return 0, fmt.Errorf("result is not a number: %w", err)
	}
	return n, nil
}

// newClient builds a client with default values, before options are applied
func newClient() *Client {
	client := &Client{
		ID:                uuid.New().String(),
		Info:              make(map[string]string),
		ProtocolVersion:   protocol.ProtocolVersion20250326,
		transportRegistry: protocol.NewTransportRegistry(),
	}

	// The SSE transport is the server half of the HTTP transport, so stdio is
	// the only type available for direct creation by a client.
	stdiotransport.RegisterSTDIOTransport(client.transportRegistry)

	return client
}

// NewClient creates a new MCP client with an existing transport
func NewClient(transport protocol.Transport, options ...ClientOption) *Client {
	client := newClient()
	client.transport = transport

	// Apply options
	for _, option := range options {
		option(client)
	}

	if client.loggerFactory != nil {
		client.logger = client.loggerFactory.CreateLogger("mcp-client")
	}

	// Create JSON-RPC dispatcher
	client.dispatcher = protocol.NewJSONRPCDispatcher(transport, client)

	return client
}

// NewClientWithTransport creates a new MCP client using the specified transport type
func NewClientWithTransport(ctx context.Context, transportType string, transportOptions map[string]interface{}, options ...ClientOption) (*Client, error) {
	client := newClient()

	// Apply options
	for _, option := range options {
		option(client)
	}

	if client.loggerFactory != nil {
		client.logger = client.loggerFactory.CreateLogger("mcp-client")
	}

	// Create the transport
	transport, err := client.transportRegistry.Create(ctx, transportType, transportOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	client.transport = transport

	// Create JSON-RPC dispatcher
	client.dispatcher = protocol.NewJSONRPCDispatcher(transport, client)

	return client, nil
}

// HandleRequest implements the RPCHandler interface for requests arriving
// from the server. Only ping is answered.
func (c *Client) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	if method == "ping" {
		return nil, nil
	}

	return nil, &protocol.JSONRPCError{
		Code:    protocol.ErrorCodeMethodNotFound,
		Message: "Method not implemented",
	}
}

// Initialize initializes the client and establishes a session with the server
func (c *Client) Initialize(ctx context.Context) error {
	// This client consumes tools only and advertises no capabilities
	params := &protocol.InitializeParams{
		ClientID:        c.ID,
		ClientInfo:      c.Info,
		ProtocolVersion: string(c.ProtocolVersion),
		Capabilities:    make(map[string]protocol.CapabilityDefinition),
	}

	// Start the dispatcher to receive messages
	c.dispatcher.Start()

	// Send initialization request
	result := &protocol.InitializeResult{}
	rawResult, err := c.callWithRetry(ctx, func() (json.RawMessage, error) {
		return c.dispatcher.Call(ctx, protocol.BuildMethod("initialize", protocol.EmptyNamespace), params)
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if err := json.Unmarshal(rawResult, result); err != nil {
		return fmt.Errorf("error parsing initialization result: %w", err)
	}

	if result.ProtocolVersion != string(c.ProtocolVersion) {
		logging.Warn(c.logger, "Server negotiated a different protocol version",
			"requested", c.ProtocolVersion, "negotiated", result.ProtocolVersion)
	}

	c.negotiatedVersion = result.ProtocolVersion
	c.serverInstructions = result.Instructions

	// Create the session
	c.session = protocol.NewSession(c.dispatcher)
	c.session.ServerID = result.ServerID
	c.session.ServerInfo = result.ServerInfo
	c.session.ServerCapabilities = result.Capabilities
	c.session.SetState(protocol.SessionStateActive)

	// Notify the server that initialization is complete
	if err := c.dispatcher.Notify(ctx, protocol.BuildNotificationsMethod("initialized", protocol.EmptyNamespace), nil); err != nil {
		return fmt.Errorf("error sending initialized notification: %w", err)
	}

	return nil
}

// Call sends an RPC request to the server
func (c *Client) Call(ctx context.Context, method string, namespace protocol.Namespace, params interface{}) (json.RawMessage, error) {
	if c.session == nil || !c.session.IsActive() {
		return nil, fmt.Errorf("no active session")
	}

	fullMethod := protocol.BuildMethod(method, namespace)
	return c.callWithRetry(ctx, func() (json.RawMessage, error) {
		return c.session.Call(ctx, fullMethod, params)
	})
}

// Notify sends an RPC notification to the server
func (c *Client) Notify(ctx context.Context, method string, namespace protocol.Namespace, params interface{}) error {
	if c.session == nil || !c.session.IsActive() {
		return fmt.Errorf("no active session")
	}

	fullMethod := protocol.BuildNotificationsMethod(method, namespace)
	return c.session.Notify(ctx, fullMethod, params)
}

// Ping checks that the server answers on the session
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", protocol.EmptyNamespace, nil)
	return err
}

// ListTools retrieves the tool definitions exposed by the server
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	raw, err := c.Call(ctx, "list", protocol.ToolsNamespace, &protocol.ToolsListParams{})
	if err != nil {
		return nil, fmt.Errorf("error listing tools: %w", err)
	}

	result := &protocol.ToolsListResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("error parsing tools list: %w", err)
	}

	return result.Tools, nil
}

// CallToolRaw invokes a tool with arbitrary arguments and returns the
// undecoded call result
func (c *Client) CallToolRaw(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.ToolsCallResult, error) {
	params := &protocol.ToolsCallParams{
		Name:      name,
		Arguments: arguments,
	}

	raw, err := c.Call(ctx, "call", protocol.ToolsNamespace, params)
	if err != nil {
		return nil, fmt.Errorf("error calling tool %s: %w", name, err)
	}

	result := &protocol.ToolsCallResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("error parsing tool result: %w", err)
	}

	return result, nil
}

// CallTool invokes one of the text tools and decodes its envelope. Tool-level
// failures such as rejected input come back as a ToolResponse with Success
// false, not as an error; errors are reserved for unknown tools and transport
// faults.
func (c *Client) CallTool(ctx context.Context, name string, text string) (*ToolResponse, error) {
	result, err := c.CallToolRaw(ctx, name, map[string]interface{}{"text": text})
	if err != nil {
		return nil, err
	}

	if len(result.Content) == 0 {
		return nil, fmt.Errorf("tool %s returned no content", name)
	}

	response := &ToolResponse{}
	if err := json.Unmarshal([]byte(result.Content[0].Text), response); err != nil {
		return nil, fmt.Errorf("error parsing tool envelope: %w", err)
	}

	return response, nil
}

// callWithRetry runs the call, retrying transient failures with exponential
// backoff when retries are enabled. JSON-RPC errors come from the server and
// are never retried, nor are context cancellations.
func (c *Client) callWithRetry(ctx context.Context, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	if c.retryMaxElapsed <= 0 {
		return call()
	}

	var raw json.RawMessage
	operation := func() error {
		var err error
		raw, err = call()
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			logging.Debug(c.logger, "Retrying call after transient failure", "error", err)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = c.retryMaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return raw, nil
}

// isRetryable reports whether a failed call may be attempted again
func isRetryable(err error) bool {
	var rpcErr *protocol.JSONRPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// IsConnected checks if the client is connected
func (c *Client) IsConnected() bool {
	return c.session != nil && c.session.IsActive()
}

// GetServerID returns the server ID
func (c *Client) GetServerID() string {
	if c.session == nil {
		return ""
	}
	return c.session.ServerID
}

// GetServerInfo returns information about the server
func (c *Client) GetServerInfo() map[string]string {
	if c.session == nil {
		return nil
	}
	return c.session.ServerInfo
}

// GetNegotiatedVersion returns the protocol version the server answered with
func (c *Client) GetNegotiatedVersion() string {
	return c.negotiatedVersion
}

// GetServerInstructions returns the usage instructions the server sent during
// initialization, if any
func (c *Client) GetServerInstructions() string {
	return c.serverInstructions
}

// HasServerCapability checks if the server supports a capability
func (c *Client) HasServerCapability(capType string) bool {
	if c.session == nil {
		return false
	}
	_, exists := c.session.ServerCapabilities[capType]
	return exists
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.session != nil {
		c.session.Close()
	} else if c.dispatcher != nil {
		c.dispatcher.Stop()
	}

	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}
