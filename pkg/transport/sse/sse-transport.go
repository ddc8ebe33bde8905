// Package sse provides an HTTP Server-Sent Events transport implementation
// for MCP. Each connected client holds one event stream for server-to-client
// messages and posts its own messages to a per-session endpoint.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// SSETransport implements an MCP transport for a single SSE session.
// Incoming messages arrive via HTTP POST, outgoing messages are drained by
// the event stream writer.
type SSETransport struct {
	// Session identifier, also used in the per-session message endpoint
	sessionID string

	// Incoming messages buffer
	incomingMessages chan []byte

	// Outgoing messages buffer
	outgoingMessages chan []byte

	logger *slog.Logger

	// Mutex for synchronization
	mutex sync.Mutex

	// Close channel
	done chan struct{}

	// Closed state
	closed bool
}

// NewSSETransport creates a new transport for the given session
func NewSSETransport(sessionID string) *SSETransport {
	return &SSETransport{
		sessionID:        sessionID,
		incomingMessages: make(chan []byte, 100),
		outgoingMessages: make(chan []byte, 100),
		done:             make(chan struct{}),
		logger:           logging.NewLoggerFactory().CreateLogger("sse-transport"),
	}
}

// SessionID returns the session identifier of this transport
func (t *SSETransport) SessionID() string {
	return t.sessionID
}

// Send queues a message for delivery on the event stream
func (t *SSETransport) Send(ctx context.Context, data []byte) error {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return fmt.Errorf("transport closed")
	}
	t.mutex.Unlock()

	select {
	case t.outgoingMessages <- data:
		return nil
	case <-t.done:
		return fmt.Errorf("transport closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive receives a message posted by the client
func (t *SSETransport) Receive(ctx context.Context) ([]byte, error) {
	// Add a timeout if not already present in the context
	var cancel context.CancelFunc = func() {}
	deadline, ok := ctx.Deadline()
	if !ok {
		// If no deadline is set, use a reasonable default (500ms)
		ctx, cancel = context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
	} else {
		// If deadline is very far in the future, add a more reasonable timeout
		if time.Until(deadline) > 30*time.Second {
			ctx, cancel = context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("transport closed")
	case data := <-t.incomingMessages:
		return data, nil
	case <-time.After(50 * time.Millisecond):
		// Short poll interval so callers can check their context frequently
		return nil, fmt.Errorf("no message available")
	}
}

// Deliver hands a message posted by the client to the transport
func (t *SSETransport) Deliver(ctx context.Context, data []byte) error {
	select {
	case t.incomingMessages <- data:
		return nil
	case <-t.done:
		return fmt.Errorf("transport closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outgoing exposes the queue drained by the event stream writer
func (t *SSETransport) Outgoing() <-chan []byte {
	return t.outgoingMessages
}

// Done is closed when the transport shuts down
func (t *SSETransport) Done() <-chan struct{} {
	return t.done
}

// Close closes the transport connection
func (t *SSETransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	close(t.done)
	logging.Debug(t.logger, "transport closed", "session", t.sessionID)

	return nil
}

// SSETransportCreator is a factory for creating SSE transports. A session
// identifier may be passed in the options, otherwise one is generated.
func SSETransportCreator(ctx context.Context, options map[string]interface{}) (protocol.Transport, error) {
	sessionID, _ := options["session_id"].(string)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return NewSSETransport(sessionID), nil
}

// RegisterSSETransport registers the SSE transport in the transport registry
func RegisterSSETransport(registry *protocol.TransportRegistry) {
	registry.Register(protocol.TransportTypeSSE, SSETransportCreator)
}
