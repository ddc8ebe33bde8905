// Package server provides the implementation of an MCP server
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/internal/version"
	"github.com/pcurtin/mcp-texttools/pkg/capabilities/tools"
	"github.com/pcurtin/mcp-texttools/pkg/capability"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
	ssetransport "github.com/pcurtin/mcp-texttools/pkg/transport/sse"
	stdiotransport "github.com/pcurtin/mcp-texttools/pkg/transport/stdio"
)

// shutdownTimeout bounds how long ServeSSE waits for in-flight requests
// during a graceful stop.
const shutdownTimeout = 5 * time.Second

// Server represents an MCP server that manages client connections
type Server struct {
	// Server ID
	ID string

	// Server information
	Info map[string]string

	// Server version
	Version string

	// Server name
	Name string

	// Instructions returned to clients during initialization
	Instructions string

	// supported MCP versions, preferred version first
	SupportedVersions []protocol.ProtocolVersion

	// Endpoint registry for RPC method management
	endpointRegistry *protocol.EndpointRegistry

	// Registry for supported capabilities
	capabilityRegistry *capability.CapabilityRegistry

	// Transport registry for communication
	transportRegistry *protocol.TransportRegistry

	// Active sessions
	sessions      map[string]*protocol.Session
	sessionsMutex sync.RWMutex

	// Logger
	logger        *slog.Logger
	loggerFactory *logging.LoggerFactory
}

// NewServer creates a new MCP server
func NewServer(options ...ServerOption) *Server {
	server := &Server{
		ID:      uuid.New().String(),
		Info:    make(map[string]string),
		Name:    "mcp-texttools",
		Version: version.Version,
		// The first entry is also the fallback offered to clients that
		// ask for a version we do not support.
		SupportedVersions: []protocol.ProtocolVersion{
			protocol.ProtocolVersion20250326,
			protocol.ProtocolVersion20241105,
		},
		endpointRegistry:   protocol.NewEndpointRegistry(),
		capabilityRegistry: capability.NewCapabilityRegistry(),
		transportRegistry:  protocol.NewTransportRegistry(),
		sessions:           make(map[string]*protocol.Session),
	}

	// The tools capability is the only one this server exposes
	server.capabilityRegistry.RegisterFactory(capability.Tools, tools.ToolsCapabilityFactory)

	// Register the built-in transports
	stdiotransport.RegisterSTDIOTransport(server.transportRegistry)
	ssetransport.RegisterSSETransport(server.transportRegistry)

	// Apply the options
	for _, option := range options {
		option(server)
	}

	if server.loggerFactory != nil {
		server.logger = server.loggerFactory.CreateLogger("mcp-server")
	}

	// Fill in server info advertised during initialization
	if _, ok := server.Info["name"]; !ok {
		server.Info["name"] = server.Name
	}
	if _, ok := server.Info["version"]; !ok {
		server.Info["version"] = server.Version
	}

	// Register the base MCP endpoint
	mcpEndpoint := protocol.NewBaseEndpoint(protocol.EmptyNamespace)
	mcpEndpoint.RegisterMethod("initialize", server.handleInitialize)
	mcpEndpoint.RegisterMethod("ping", server.handlePing)
	mcpEndpoint.RegisterNotification("initialized", server.handleInitialized)
	server.endpointRegistry.RegisterEndpoint(mcpEndpoint)

	return server
}

// HandleConnection handles a new client connection and returns the session
// created for it
func (s *Server) HandleConnection(transport protocol.Transport) *protocol.Session {
	// Create a new JSON-RPC dispatcher for this connection
	dispatcher := protocol.NewJSONRPCDispatcher(transport, s)

	// Create a new session
	session := protocol.NewSession(dispatcher)
	session.ServerID = s.ID
	session.ServerInfo = s.Info

	// Store the session
	s.sessionsMutex.Lock()
	s.sessions[session.ID] = session
	s.sessionsMutex.Unlock()

	// Requests arriving on this dispatcher carry the session ID in their context
	dispatcher.SetSessionID(session.ID)

	// Start the dispatcher
	dispatcher.Start()

	if s.logger != nil {
		logging.Debug(s.logger, "Connection established", slog.String("sessionID", session.ID))
	}

	return session
}

// CloseSession closes the session with the given ID and removes it from the
// server. Unknown IDs are ignored.
func (s *Server) CloseSession(id string) {
	s.sessionsMutex.Lock()
	session, exists := s.sessions[id]
	if exists {
		delete(s.sessions, id)
	}
	s.sessionsMutex.Unlock()

	if !exists {
		return
	}

	session.Close()

	if s.logger != nil {
		logging.Debug(s.logger, "Session closed", slog.String("sessionID", id))
	}
}

// HandleRequest implements the RPCHandler interface
func (s *Server) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	// Delegate request handling to the endpoint registry
	return s.endpointRegistry.HandleRequest(ctx, method, params)
}

// Handler methods for the base MCP endpoint

// handleInitialize handles the initialization request
func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var initParams protocol.InitializeParams
	if err := json.Unmarshal(params, &initParams); err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeParseError,
			Message: "Parse error: " + err.Error(),
		}
	}

	// Look up the session using the ID from the request context
	sessionID, ok := protocol.GetSessionID(ctx)
	if !ok {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: session ID not found in context",
		}
	}

	s.sessionsMutex.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionsMutex.RUnlock()

	if !exists {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: session not found",
		}
	}

	// check if client version is compatible
	versionIdx := slices.Index(s.SupportedVersions, protocol.ProtocolVersion(initParams.ProtocolVersion))
	if versionIdx == -1 {
		logging.Error(s.logger, "Unsupported client protocol version", "version", initParams.ProtocolVersion)
		versionIdx = 0
	}
	negotiated := s.SupportedVersions[versionIdx]

	// Get the server capabilities to send to the client
	serverCapabilities, err := s.GetCapabilities(ctx)
	if err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: " + err.Error(),
		}
	}

	// Store the server capabilities in the session
	session.ServerCapabilities = serverCapabilities

	// Initialize the session
	result, err := session.Initialize(ctx, &initParams, negotiated)
	if err != nil {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: " + err.Error(),
		}
	}

	// Make sure the result includes our server capabilities
	result.Capabilities = serverCapabilities
	result.Instructions = s.Instructions
	return result, nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	sessionID, ok := protocol.GetSessionID(ctx)
	if ok && s.logger != nil {
		logging.Debug(s.logger, "Ping received", slog.String("sessionID", sessionID))
	}

	// respond with an empty Response
	return nil, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) (interface{}, error) {
	// Look up the session using the ID from the notification context
	sessionID, ok := protocol.GetSessionID(ctx)
	if !ok {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: session ID not found in context",
		}
	}

	s.sessionsMutex.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionsMutex.RUnlock()

	if !exists {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Internal error: session not found",
		}
	}

	if session.State != protocol.SessionStateInitializing {
		return nil, &protocol.JSONRPCError{
			Code:    protocol.ErrorCodeInternalError,
			Message: "Session not in initializing state",
		}
	}

	session.SetState(protocol.SessionStateActive)

	if s.logger != nil {
		logging.Debug(s.logger, "Session initialized", slog.String("sessionID", session.ID))
	}

	return nil, nil
}

// RegisterEndpoint registers a new endpoint
func (s *Server) RegisterEndpoint(endpoint protocol.Endpoint) {
	s.endpointRegistry.RegisterEndpoint(endpoint)
}

// GetSession returns a session by ID
func (s *Server) GetSession(id string) (*protocol.Session, bool) {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()
	session, exists := s.sessions[id]
	return session, exists
}

// GetActiveSessions returns all active sessions
func (s *Server) GetActiveSessions() []*protocol.Session {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()

	activeSessions := make([]*protocol.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.IsActive() {
			activeSessions = append(activeSessions, session)
		}
	}

	return activeSessions
}

// CloseAllSessions closes all active sessions
func (s *Server) CloseAllSessions() {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	for id, session := range s.sessions {
		if session.IsActive() {
			session.Close()
		}
		delete(s.sessions, id)
	}
}

// Shutdown closes the server
func (s *Server) Shutdown() {
	s.CloseAllSessions()
}

// ServeStdio serves a single session over the process stdin and stdout
// streams. It blocks until the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	transport, err := s.CreateTransport(ctx, protocol.TransportTypeStdio, nil)
	if err != nil {
		return fmt.Errorf("failed to create stdio transport: %w", err)
	}

	stdioTransport, ok := transport.(*stdiotransport.STDIOTransport)
	if !ok {
		return fmt.Errorf("unexpected transport type %T for stdio", transport)
	}

	stdioTransport.Start()
	session := s.HandleConnection(stdioTransport)

	if s.logger != nil {
		logging.Info(s.logger, "Serving on stdio",
			slog.String("name", s.Name),
			slog.String("version", s.Version),
			slog.String("sessionID", session.ID))
	}

	<-ctx.Done()

	s.CloseSession(session.ID)
	return stdioTransport.Close()
}

// ServeSSE serves sessions over HTTP with Server-Sent Events. Each client
// connection gets its own transport and session. It blocks until the context
// is cancelled or the listener fails.
func (s *Server) ServeSSE(ctx context.Context, options ssetransport.SSEServerOptions) error {
	if options.Name == "" {
		options.Name = s.Name
	}
	options.OnConnect = s.connectTransport
	if options.Logger == nil && s.loggerFactory != nil {
		options.Logger = s.loggerFactory.CreateLogger("sse-server")
	}

	sseServer := ssetransport.NewSSEServer(options)

	if s.logger != nil {
		logging.Info(s.logger, "Serving on SSE",
			slog.String("name", s.Name),
			slog.String("version", s.Version),
			slog.String("address", options.Address))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- sseServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sseServer.Shutdown(shutdownCtx)
}

// connectTransport wires a freshly accepted transport into a new session and
// returns the cleanup to run when the connection goes away.
func (s *Server) connectTransport(transport protocol.Transport) (func(), error) {
	session := s.HandleConnection(transport)
	return func() { s.CloseSession(session.ID) }, nil
}

// CreateTransport creates a new transport instance with the specified type and options
func (s *Server) CreateTransport(ctx context.Context, transportType string, options map[string]interface{}) (protocol.Transport, error) {
	return s.transportRegistry.Create(ctx, transportType, options)
}

// GetSupportedTransports returns a list of all transport types supported by this server
func (s *Server) GetSupportedTransports() []string {
	return s.transportRegistry.GetSupportedTransports()
}

// GetCapabilities generates a map of server capabilities to be sent to the client
// during the initialization process
func (s *Server) GetCapabilities(ctx context.Context) (map[string]protocol.CapabilityDefinition, error) {
	capabilities := make(map[string]protocol.CapabilityDefinition)

	for _, cap := range s.capabilityRegistry.GetCapabilities() {
		capType := cap.GetType()
		capabilities[string(capType)] = protocol.CapabilityDefinition{
			Options: cap.GetOptions(),
		}
	}

	return capabilities, nil
}

func (s *Server) GetCapability(capType capability.CapabilityType) (capability.Capability, error) {
	cap := s.capabilityRegistry.GetCapability(capType)
	if cap == nil {
		return nil, fmt.Errorf("capability %s not found", capType)
	}
	return cap, nil
}
