package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pcurtin/mcp-texttools/internal/config"
	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// maxMessageBodyBytes bounds a posted message body. It sits well above the
// tool input cap so oversized text still reaches the validator and gets a
// proper error envelope instead of a truncated read.
const maxMessageBodyBytes = 16 << 20

// ConnectFunc wires a freshly connected transport into a protocol session.
// The returned cleanup runs when the client disconnects.
type ConnectFunc func(transport protocol.Transport) (cleanup func(), err error)

// SSEServerOptions configures an SSE server
type SSEServerOptions struct {
	// Name is reported on the health endpoint
	Name string

	// Address is the listen address for the HTTP server
	Address string

	// Heartbeat is the interval between keep-alive comments on open streams
	Heartbeat time.Duration

	// OnConnect is invoked for every new event stream connection
	OnConnect ConnectFunc

	Logger *slog.Logger
}

// SSEServer exposes the MCP protocol over HTTP with Server-Sent Events.
// Clients open an event stream on /sse, post messages to /message and can
// probe /health for liveness.
type SSEServer struct {
	name      string
	heartbeat time.Duration
	onConnect ConnectFunc
	logger    *slog.Logger

	httpServer *http.Server
	handler    http.Handler

	transports map[string]*SSETransport
	mu         sync.RWMutex
}

// NewSSEServer creates a new SSE server
func NewSSEServer(options SSEServerOptions) *SSEServer {
	if options.Name == "" {
		options.Name = "mcp-texttools"
	}
	if options.Address == "" {
		options.Address = config.DefaultSSEAddress
	}
	if options.Heartbeat <= 0 {
		options.Heartbeat = config.DefaultSSEHeartbeat
	}
	if options.Logger == nil {
		options.Logger = logging.NewLoggerFactory().CreateLogger("sse-server")
	}

	s := &SSEServer{
		name:       options.Name,
		heartbeat:  options.Heartbeat,
		onConnect:  options.OnConnect,
		logger:     options.Logger,
		transports: make(map[string]*SSETransport),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/health", s.handleHealth)
	s.handler = mux

	// No write timeout: it would cut long-lived event streams
	s.httpServer = &http.Server{
		Addr:              options.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler serving the SSE endpoints
func (s *SSEServer) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server and blocks until it shuts down
func (s *SSEServer) Start() error {
	logging.Info(s.logger, "sse server listening", "address", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes all active sessions and stops the HTTP server
func (s *SSEServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, transport := range s.transports {
		_ = transport.Close()
		delete(s.transports, id)
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// ActiveSessions returns the number of open event streams
func (s *SSEServer) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transports)
}

func (s *SSEServer) registerTransport(t *SSETransport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[t.SessionID()] = t
}

func (s *SSEServer) unregisterTransport(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transports, sessionID)
}

func (s *SSEServer) getTransport(sessionID string) (*SSETransport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[sessionID]
	return t, ok
}

// handleSSE handles GET /sse, the server-to-client event stream
func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logging.Error(s.logger, "sse connection rejected, streaming unsupported")
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := uuid.NewString()
	transport := NewSSETransport(sessionID)

	var cleanup func()
	if s.onConnect != nil {
		var err error
		cleanup, err = s.onConnect(transport)
		if err != nil {
			logging.Error(s.logger, "sse connection setup failed", "error", err)
			http.Error(w, "Failed to establish session", http.StatusInternalServerError)
			return
		}
	}

	s.registerTransport(transport)
	logging.Info(s.logger, "sse connection opened", "session", sessionID)

	defer func() {
		s.unregisterTransport(sessionID)
		if cleanup != nil {
			cleanup()
		}
		_ = transport.Close()
		logging.Info(s.logger, "sse connection closed", "session", sessionID)
	}()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Tell the client where to post its messages
	fmt.Fprintf(w, "event: endpoint\ndata: /message?sessionId=%s\n\n", sessionID)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-transport.Done():
			return
		case data := <-transport.Outgoing():
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			// Send heartbeat comment to keep intermediaries from closing the stream
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// handleMessage handles POST /message?sessionId=..., the client-to-server leg
func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId", http.StatusBadRequest)
		return
	}

	transport, ok := s.getTransport(sessionID)
	if !ok {
		http.Error(w, "Unknown session", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	if err := transport.Deliver(r.Context(), body); err != nil {
		http.Error(w, "Session closed", http.StatusBadRequest)
		return
	}

	// The response travels on the event stream, not on this request
	w.WriteHeader(http.StatusAccepted)
}

// handleHealth handles GET /health
func (s *SSEServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := struct {
		Status         string `json:"status"`
		Name           string `json:"name"`
		ActiveSessions int    `json:"activeSessions"`
	}{
		Status:         "ok",
		Name:           s.name,
		ActiveSessions: s.ActiveSessions(),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.Error(s.logger, "failed to encode health response", "error", err)
	}
}
