package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pcurtin/mcp-texttools/internal/version"
	"github.com/pcurtin/mcp-texttools/pkg/capabilities/tools"
	"github.com/pcurtin/mcp-texttools/pkg/capability"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
	ssetransport "github.com/pcurtin/mcp-texttools/pkg/transport/sse"
	stdiotransport "github.com/pcurtin/mcp-texttools/pkg/transport/stdio"
)

func contextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return protocol.WithSessionID(ctx, sessionID)
}

// echoToolSet returns a single-tool set that echoes its raw arguments back
func echoToolSet() []*tools.ToolWithHandler {
	echo := tools.NewTool("echo", "Echo tool", protocol.ObjectSchema(nil, nil), nil,
		func(ctx context.Context, arguments json.RawMessage) (*tools.ToolResult, error) {
			return tools.NewSuccessToolResult(string(arguments)), nil
		})
	return []*tools.ToolWithHandler{echo}
}

// MockTransport is a mock implementation of protocol.Transport for testing
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Start() error {
	args := m.Called()
	return args.Error(0)
}

// TestNewServer tests the NewServer function with all available options
func TestNewServer(t *testing.T) {
	// Basic server creation without options
	server := NewServer(WithLogger(slog.LevelDebug))
	assert.NotNil(t, server)
	assert.NotEmpty(t, server.ID)
	assert.Equal(t, "mcp-texttools", server.Name)
	assert.Equal(t, version.Version, server.Version)
	// Preferred version first, it doubles as the fallback during negotiation
	require.Len(t, server.SupportedVersions, 2)
	assert.Equal(t, protocol.ProtocolVersion20250326, server.SupportedVersions[0])
	assert.Equal(t, protocol.ProtocolVersion20241105, server.SupportedVersions[1])
	assert.Equal(t, server.Name, server.Info["name"])
	assert.Equal(t, server.Version, server.Info["version"])
	assert.NotNil(t, server.endpointRegistry)
	assert.NotNil(t, server.capabilityRegistry)
	assert.NotNil(t, server.transportRegistry)
	assert.NotNil(t, server.sessions)

	// Test all server options
	t.Run("WithServerID", func(t *testing.T) {
		customID := "custom-server-id"
		server := NewServer(WithServerID(customID))
		assert.Equal(t, customID, server.ID)
	})

	t.Run("WithServerName", func(t *testing.T) {
		customName := "Custom Server"
		server := NewServer(WithServerName(customName))
		assert.Equal(t, customName, server.Name)
		assert.Equal(t, customName, server.Info["name"])
	})

	t.Run("WithServerVersion", func(t *testing.T) {
		customVersion := "2.0.0"
		server := NewServer(WithServerVersion(customVersion))
		assert.Equal(t, customVersion, server.Version)
		assert.Equal(t, customVersion, server.Info["version"])
	})

	t.Run("WithServerInfo", func(t *testing.T) {
		customInfo := map[string]string{
			"vendor": "Test Vendor",
			"email":  "test@example.com",
		}
		server := NewServer(WithServerInfo(customInfo))
		for k, v := range customInfo {
			assert.Equal(t, v, server.Info[k])
		}
		// The defaults are still filled in alongside the custom entries
		assert.Equal(t, server.Name, server.Info["name"])
	})

	t.Run("WithInstructions", func(t *testing.T) {
		server := NewServer(WithInstructions("Call the text tools with a text argument."))
		assert.Equal(t, "Call the text tools with a text argument.", server.Instructions)
	})

	t.Run("WithLogger", func(t *testing.T) {
		server := NewServer(WithLogger(slog.LevelDebug))
		// Verify logger is configured
		assert.NotNil(t, server.logger)
		assert.NotNil(t, server.loggerFactory)
	})

	t.Run("WithTransportRegistry", func(t *testing.T) {
		customRegistry := protocol.NewTransportRegistry()
		server := NewServer(WithTransportRegistry(customRegistry))
		assert.Equal(t, customRegistry, server.transportRegistry)
		assert.Empty(t, server.GetSupportedTransports())
	})

	t.Run("WithProtocolVersion", func(t *testing.T) {
		draft := protocol.ProtocolVersion("2026-01-01")
		server := NewServer(WithProtocolVersion(draft))
		assert.Contains(t, server.SupportedVersions, draft)

		// Versions already supported are not duplicated
		server = NewServer(WithProtocolVersion(protocol.ProtocolVersion20241105))
		assert.Len(t, server.SupportedVersions, 2)
	})

	t.Run("WithTools", func(t *testing.T) {
		toolSet := echoToolSet()
		server := NewServer(WithTools(toolSet...))

		toolsCap, err := server.GetCapability(capability.Tools)
		assert.NoError(t, err)
		require.NotNil(t, toolsCap)

		toolsCapability, ok := toolsCap.(*tools.ToolsCapability)
		require.True(t, ok)
		assert.Contains(t, toolsCapability.ListTools(), toolSet[0])
	})

	t.Run("MultipleOptions", func(t *testing.T) {
		customID := "multi-option-server"
		customName := "Multi Option Server"
		customVersion := "3.0.0"
		customInfo := map[string]string{"env": "test"}

		server := NewServer(
			WithServerID(customID),
			WithServerName(customName),
			WithServerVersion(customVersion),
			WithServerInfo(customInfo),
			WithLogger(slog.LevelInfo),
			WithTools(echoToolSet()...),
		)

		// Verify all options were applied correctly
		assert.Equal(t, customID, server.ID)
		assert.Equal(t, customName, server.Name)
		assert.Equal(t, customVersion, server.Version)
		assert.Equal(t, "test", server.Info["env"])
		assert.NotNil(t, server.logger)

		caps, err := server.GetCapabilities(context.Background())
		assert.NoError(t, err)
		assert.Contains(t, caps, string(capability.Tools))
	})
}

// TestServer_RegisterEndpoint tests endpoint registration
func TestServer_RegisterEndpoint(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create a mock endpoint
	mockEndpoint := protocol.NewBaseEndpoint("test")
	mockEndpoint.RegisterMethod("test_method", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return "test_result", nil
	})

	// Register the endpoint
	server.RegisterEndpoint(mockEndpoint)

	// Test handling a request to the registered endpoint
	result, err := server.HandleRequest(context.Background(), "test/test_method", json.RawMessage(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, "test_result", result)
}

// TestServer_HandleInitialize tests the initialize request handling
func TestServer_HandleInitialize(t *testing.T) {
	server := NewServer(
		WithLogger(slog.LevelDebug),
		WithInstructions("Six text tools, each taking a single text argument."),
		WithTools(echoToolSet()...),
	)

	// Create test session
	sessionID := uuid.New().String()
	dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
	session := protocol.NewSession(dispatcher)
	session.ID = sessionID
	session.ServerInfo = server.Info

	// Store session in server
	server.sessionsMutex.Lock()
	server.sessions[sessionID] = session
	server.sessionsMutex.Unlock()

	// Create initialize params
	initParams := protocol.InitializeParams{
		ClientID:        "test-client",
		ClientInfo:      map[string]string{"name": "Test Client"},
		ProtocolVersion: string(protocol.ProtocolVersion20250326),
	}

	paramsJSON, err := json.Marshal(initParams)
	require.NoError(t, err)

	// Create context with session ID
	ctx := contextWithSessionID(context.Background(), sessionID)

	// Handle initialize request
	result, err := server.handleInitialize(ctx, paramsJSON)

	// Verify result
	assert.NoError(t, err)
	initResult, ok := result.(*protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, string(protocol.ProtocolVersion20250326), initResult.ProtocolVersion)
	assert.Contains(t, initResult.Capabilities, string(capability.Tools))
	assert.Equal(t, "Six text tools, each taking a single text argument.", initResult.Instructions)
	assert.Equal(t, server.Info, initResult.ServerInfo)
}

// TestServer_HandleInitializeVersionNegotiation tests the protocol version
// negotiation during initialization
func TestServer_HandleInitializeVersionNegotiation(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		negotiated string
	}{
		{"PreferredVersion", string(protocol.ProtocolVersion20250326), string(protocol.ProtocolVersion20250326)},
		{"OlderSupportedVersion", string(protocol.ProtocolVersion20241105), string(protocol.ProtocolVersion20241105)},
		{"UnsupportedVersionFallsBack", "1999-01-01", string(protocol.ProtocolVersion20250326)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(WithLogger(slog.LevelDebug))

			// Each negotiation needs a fresh, uninitialized session
			sessionID := uuid.New().String()
			dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
			session := protocol.NewSession(dispatcher)
			session.ID = sessionID

			server.sessionsMutex.Lock()
			server.sessions[sessionID] = session
			server.sessionsMutex.Unlock()

			paramsJSON, err := json.Marshal(protocol.InitializeParams{
				ClientID:        "test-client",
				ProtocolVersion: tt.requested,
			})
			require.NoError(t, err)

			ctx := contextWithSessionID(context.Background(), sessionID)
			result, err := server.handleInitialize(ctx, paramsJSON)

			require.NoError(t, err)
			initResult, ok := result.(*protocol.InitializeResult)
			require.True(t, ok)
			assert.Equal(t, tt.negotiated, initResult.ProtocolVersion)
		})
	}
}

// TestServer_HandlePing tests the ping request handling
func TestServer_HandlePing(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Handle ping request
	result, err := server.handlePing(context.Background(), json.RawMessage(`{}`))

	// Verify result
	assert.NoError(t, err)
	assert.Nil(t, result)
}

// TestServer_HandleInitialized tests the initialized notification handling
func TestServer_HandleInitialized(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create test session
	sessionID := uuid.New().String()
	dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
	session := protocol.NewSession(dispatcher)
	session.ID = sessionID
	session.State = protocol.SessionStateInitializing

	// Store session in server
	server.sessionsMutex.Lock()
	server.sessions[sessionID] = session
	server.sessionsMutex.Unlock()

	// Create context with session ID
	ctx := contextWithSessionID(context.Background(), sessionID)

	// Handle initialized notification
	result, err := server.handleInitialized(ctx, json.RawMessage(`{}`))

	// Verify result
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, protocol.SessionStateActive, session.State)
}

// TestServer_GetCapabilities tests capability retrieval
func TestServer_GetCapabilities(t *testing.T) {
	server := NewServer(WithTools(echoToolSet()...))

	// Get capabilities
	capabilities, err := server.GetCapabilities(context.Background())

	// Verify capabilities
	assert.NoError(t, err)
	require.Contains(t, capabilities, string(capability.Tools))

	// The tools capability never signals list changes
	assert.JSONEq(t, `{"listChanged": false}`, string(capabilities[string(capability.Tools)].Options))
}

// TestServer_GetCapability tests retrieving a specific capability
func TestServer_GetCapability(t *testing.T) {
	server := NewServer(WithTools(echoToolSet()...))

	// Get a valid capability
	cap, err := server.GetCapability(capability.Tools)
	assert.NoError(t, err)
	assert.NotNil(t, cap)

	// Try to get an invalid capability
	invalidCapType := capability.CapabilityType("invalid_capability")
	cap, err = server.GetCapability(invalidCapType)
	assert.Error(t, err)
	assert.Nil(t, cap)
	assert.Contains(t, err.Error(), fmt.Sprintf("capability %s not found", invalidCapType))
}

// TestServer_GetSession tests session retrieval
func TestServer_GetSession(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create test session
	sessionID := uuid.New().String()
	dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
	session := protocol.NewSession(dispatcher)
	session.ID = sessionID

	// Store session in server
	server.sessionsMutex.Lock()
	server.sessions[sessionID] = session
	server.sessionsMutex.Unlock()

	// Get valid session
	retrievedSession, exists := server.GetSession(sessionID)
	assert.True(t, exists)
	assert.Equal(t, session, retrievedSession)

	// Try to get invalid session
	retrievedSession, exists = server.GetSession("invalid_id")
	assert.False(t, exists)
	assert.Nil(t, retrievedSession)
}

// TestServer_GetActiveSessions tests active session retrieval
func TestServer_GetActiveSessions(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create active session
	activeSessionID := uuid.New().String()
	activeDispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
	activeSession := protocol.NewSession(activeDispatcher)
	activeSession.ID = activeSessionID
	activeSession.State = protocol.SessionStateActive

	// Create inactive session
	inactiveSessionID := uuid.New().String()
	inactiveDispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
	inactiveSession := protocol.NewSession(inactiveDispatcher)
	inactiveSession.ID = inactiveSessionID
	inactiveSession.State = protocol.SessionStateInitializing

	// Store sessions in server
	server.sessionsMutex.Lock()
	server.sessions[activeSessionID] = activeSession
	server.sessions[inactiveSessionID] = inactiveSession
	server.sessionsMutex.Unlock()

	// Get active sessions
	activeSessions := server.GetActiveSessions()

	// Verify active sessions
	assert.Len(t, activeSessions, 1)
	assert.Equal(t, activeSession, activeSessions[0])
}

// TestServer_CloseSession tests closing a single session
func TestServer_CloseSession(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create mock transport
	mockTransport := new(MockTransport)
	mockTransport.On("Receive", mock.Anything).Return([]byte{}, fmt.Errorf("no message available")).Maybe()
	mockTransport.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockTransport.On("Close").Return(nil).Maybe()

	session := server.HandleConnection(mockTransport)
	session.SetState(protocol.SessionStateActive)
	_, exists := server.GetSession(session.ID)
	require.True(t, exists)

	// Close the session
	server.CloseSession(session.ID)

	_, exists = server.GetSession(session.ID)
	assert.False(t, exists)
	assert.Equal(t, protocol.SessionStateClosed, session.State)

	// Closing an unknown session is a no-op
	server.CloseSession("unknown-session")
}

// TestServer_CloseAllSessions tests closing all sessions
func TestServer_CloseAllSessions(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create mock transport
	mockTransport := new(MockTransport)
	mockTransport.On("Close").Return(nil)

	// Create session
	sessionID := uuid.New().String()
	dispatcher := protocol.NewJSONRPCDispatcher(mockTransport, server)
	session := protocol.NewSession(dispatcher)
	session.ID = sessionID
	session.State = protocol.SessionStateActive

	// Store session in server
	server.sessionsMutex.Lock()
	server.sessions[sessionID] = session
	server.sessionsMutex.Unlock()

	// Close all sessions
	server.CloseAllSessions()

	// Verify sessions are closed and removed
	assert.Empty(t, server.sessions)
}

// TestServer_Shutdown tests server shutdown
func TestServer_Shutdown(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create mock transport
	mockTransport := new(MockTransport)
	mockTransport.On("Close").Return(nil)

	// Create session
	sessionID := uuid.New().String()
	dispatcher := protocol.NewJSONRPCDispatcher(mockTransport, server)
	session := protocol.NewSession(dispatcher)
	session.ID = sessionID
	session.State = protocol.SessionStateActive

	// Store session in server
	server.sessionsMutex.Lock()
	server.sessions[sessionID] = session
	server.sessionsMutex.Unlock()

	// Shutdown server
	server.Shutdown()

	// Verify sessions are closed
	assert.Empty(t, server.sessions)
}

// TestServer_CreateTransport tests transport creation
func TestServer_CreateTransport(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// The stdio transport is registered by default
	transport, err := server.CreateTransport(context.Background(), protocol.TransportTypeStdio, nil)
	assert.NoError(t, err)
	require.NotNil(t, transport)
	assert.IsType(t, &stdiotransport.STDIOTransport{}, transport)
	assert.NoError(t, transport.Close())

	// Unknown transport types are rejected
	_, err = server.CreateTransport(context.Background(), "carrier-pigeon", nil)
	assert.Error(t, err)
}

// TestServer_GetSupportedTransports tests retrieval of supported transports
func TestServer_GetSupportedTransports(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Get supported transports
	transports := server.GetSupportedTransports()

	// Both built-in transports are registered by default
	assert.Contains(t, transports, protocol.TransportTypeStdio)
	assert.Contains(t, transports, protocol.TransportTypeSSE)
}

// TestServer_HandleConnection tests connection handling
func TestServer_HandleConnection(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug))

	// Create mock transport
	mockTransport := new(MockTransport)
	mockTransport.On("Receive", mock.Anything).Return([]byte(`{"jsonrpc": "2.0", "method": "ping", "id": 1}`), nil).Maybe()
	mockTransport.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockTransport.On("Close").Return(nil).Maybe()

	// Handle connection
	session := server.HandleConnection(mockTransport)

	// Verify that a new session was created and returned
	require.NotNil(t, session)
	assert.Equal(t, 1, len(server.sessions))

	stored, exists := server.GetSession(session.ID)
	assert.True(t, exists)
	assert.Equal(t, session, stored)

	// Verify session properties
	assert.Equal(t, server.ID, session.ServerID)
	assert.Equal(t, server.Info, session.ServerInfo)

	server.CloseSession(session.ID)
}

// TestServer_ServeStdio tests serving over stdio until the context ends
func TestServer_ServeStdio(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug), WithTools(echoToolSet()...))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := server.ServeStdio(ctx)
	assert.NoError(t, err)

	// The stdio session is gone once serving stops
	assert.Empty(t, server.GetActiveSessions())
}

// TestServer_ServeSSE tests serving over SSE until the context ends
func TestServer_ServeSSE(t *testing.T) {
	server := NewServer(WithLogger(slog.LevelDebug), WithTools(echoToolSet()...))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := server.ServeSSE(ctx, ssetransport.SSEServerOptions{Address: "127.0.0.1:0"})
	assert.NoError(t, err)
}

// TestServer_Error_Handling tests error handling in various server methods
func TestServer_Error_Handling(t *testing.T) {
	t.Run("TestHandleInitializeWithInvalidParams", func(t *testing.T) {
		server := NewServer(WithLogger(slog.LevelDebug))

		// Create test session
		sessionID := uuid.New().String()
		dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
		session := protocol.NewSession(dispatcher)
		session.ID = sessionID

		// Store session in server
		server.sessionsMutex.Lock()
		server.sessions[sessionID] = session
		server.sessionsMutex.Unlock()

		// Create context with session ID
		ctx := contextWithSessionID(context.Background(), sessionID)

		// Handle initialize request with invalid params
		result, err := server.handleInitialize(ctx, json.RawMessage(`{invalid_json`))

		// Verify error
		assert.Error(t, err)
		assert.Nil(t, result)
		jsonRPCErr, ok := err.(*protocol.JSONRPCError)
		assert.True(t, ok)
		assert.Equal(t, protocol.ErrorCodeParseError, jsonRPCErr.Code)
	})

	t.Run("TestHandleInitializeWithMissingSession", func(t *testing.T) {
		server := NewServer(WithLogger(slog.LevelDebug))

		// Create context with non-existent session ID
		ctx := contextWithSessionID(context.Background(), "non-existent-session")

		// Handle initialize request
		result, err := server.handleInitialize(ctx, json.RawMessage(`{}`))

		// Verify error
		assert.Error(t, err)
		assert.Nil(t, result)
		jsonRPCErr, ok := err.(*protocol.JSONRPCError)
		assert.True(t, ok)
		assert.Equal(t, protocol.ErrorCodeInternalError, jsonRPCErr.Code)
	})

	t.Run("TestHandleInitializeWithoutSessionID", func(t *testing.T) {
		server := NewServer(WithLogger(slog.LevelDebug))

		// Handle initialize request with no session ID in the context
		result, err := server.handleInitialize(context.Background(), json.RawMessage(`{}`))

		// Verify error
		assert.Error(t, err)
		assert.Nil(t, result)
		jsonRPCErr, ok := err.(*protocol.JSONRPCError)
		assert.True(t, ok)
		assert.Equal(t, protocol.ErrorCodeInternalError, jsonRPCErr.Code)
	})

	t.Run("TestHandleInitializedWithInvalidSessionState", func(t *testing.T) {
		server := NewServer(WithLogger(slog.LevelDebug))

		// Create test session with an invalid state for initialized notification
		sessionID := uuid.New().String()
		dispatcher := protocol.NewJSONRPCDispatcher(&MockTransport{}, server)
		session := protocol.NewSession(dispatcher)
		session.ID = sessionID
		session.State = protocol.SessionStateActive // Already active, should be initializing

		// Store session in server
		server.sessionsMutex.Lock()
		server.sessions[sessionID] = session
		server.sessionsMutex.Unlock()

		// Create context with session ID
		ctx := contextWithSessionID(context.Background(), sessionID)

		// Handle initialized notification
		result, err := server.handleInitialized(ctx, json.RawMessage(`{}`))

		// Verify error
		assert.Error(t, err)
		assert.Nil(t, result)
		jsonRPCErr, ok := err.(*protocol.JSONRPCError)
		assert.True(t, ok)
		assert.Equal(t, protocol.ErrorCodeInternalError, jsonRPCErr.Code)
	})
}
