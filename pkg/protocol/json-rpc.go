// Package protocol provides types and utilities for JSON-RPC communication
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/pcurtin/mcp-texttools/internal/logging"
)

// JSON-RPC 2.0 error codes
const (
	ErrorCodeParseError     int = -32700
	ErrorCodeInvalidRequest int = -32600
	ErrorCodeMethodNotFound int = -32601
	ErrorCodeInvalidParams  int = -32602
	ErrorCodeInternalError  int = -32603
)

// JSONRPCVersion is the supported JSON-RPC protocol version
const JSONRPCVersion = "2.0"

// JSONRPCMessage represents a generic JSON-RPC message
type JSONRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCRequest represents a JSON-RPC request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCNotification represents a JSON-RPC notification
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC response
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *JSONRPCError) Error() string {
	return e.Message
}

func NewJSONRPCError(code int, message string, data interface{}) *JSONRPCError {
	var dataJSON json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err == nil {
			dataJSON = bytes
		}
	}
	return &JSONRPCError{
		Code:    code,
		Message: message,
		Data:    dataJSON,
	}
}

// Call ID context keys. Each inbound request is tagged with a unique
// correlation ID so log lines from different layers can be tied together.
type callKeyType string

const callIDKey callKeyType = "call_id"

// WithCallID adds a call correlation ID to the context
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, callIDKey, callID)
}

// GetCallID retrieves the call correlation ID from the context
func GetCallID(ctx context.Context) (string, bool) {
	callID, ok := ctx.Value(callIDKey).(string)
	return callID, ok
}

// RPCHandler is an interface for handling RPC requests
type RPCHandler interface {
	// HandleRequest handles an RPC request
	HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
}

// RPCClient is an interface for sending RPC requests
type RPCClient interface {
	// Call sends an RPC request and waits for a response
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// Notify sends an RPC notification (without waiting for a response)
	Notify(ctx context.Context, method string, params interface{}) error
}

// JSONRPCDispatcher manages sending and receiving JSON-RPC messages
type JSONRPCDispatcher struct {
	transport  Transport
	handler    RPCHandler
	pending    map[string]chan *JSONRPCMessage
	pendingMux sync.Mutex
	shutdown   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	sessionID  string
	logger     *slog.Logger
}

// NewJSONRPCDispatcher creates a new JSON-RPC dispatcher
func NewJSONRPCDispatcher(transport Transport, handler RPCHandler) *JSONRPCDispatcher {
	factory := logging.NewLoggerFactory()
	dispatcher := &JSONRPCDispatcher{
		transport: transport,
		handler:   handler,
		pending:   make(map[string]chan *JSONRPCMessage),
		shutdown:  make(chan struct{}),
		logger:    factory.CreateLogger("dispatcher"),
	}

	return dispatcher
}

// Start starts the dispatcher to receive messages
func (d *JSONRPCDispatcher) Start() {
	d.wg.Add(1)
	go d.receiveLoop()
}

// Stop stops the dispatcher. Safe to call more than once.
func (d *JSONRPCDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.shutdown)
	})
	d.wg.Wait()
}

// receiveLoop handles the message receiving loop
func (d *JSONRPCDispatcher) receiveLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			return
		default:
			// Short receive timeout so the shutdown channel is checked regularly
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			data, err := d.transport.Receive(ctx)
			cancel()

			if err != nil {
				// Small sleep to avoid spinning when no messages are available
				time.Sleep(10 * time.Millisecond)
				continue
			}

			var message JSONRPCMessage
			if err := json.Unmarshal(data, &message); err != nil {
				logging.Warn(d.logger, "error unmarshaling message", "error", err)
				continue
			}

			// Handlers get a fresh context: the receive context is already
			// expired and would cancel any deadline derived from it.
			switch {
			case message.Method != "" && message.ID != nil:
				go d.handleRequest(context.Background(), &message)
			case message.Method != "":
				go d.handleNotification(context.Background(), &message)
			default:
				d.handleResponse(&message)
			}
		}
	}
}

// handleRequest handles an RPC request
func (d *JSONRPCDispatcher) handleRequest(ctx context.Context, msg *JSONRPCMessage) {
	if d.handler == nil {
		d.sendErrorResponse(ctx, msg.ID, ErrorCodeMethodNotFound, "Method not found", nil)
		return
	}

	if d.sessionID != "" {
		ctx = WithSessionID(ctx, d.sessionID)
	}

	callID := xid.New().String()
	ctx = WithCallID(ctx, callID)
	logging.Debug(d.logger, "handling request", "method", msg.Method, "call", callID)

	result, err := d.handler.HandleRequest(ctx, msg.Method, msg.Params)
	if err != nil {
		code := ErrorCodeInternalError
		message := err.Error()

		if rpcErr, ok := err.(*JSONRPCError); ok {
			code = rpcErr.Code
			message = rpcErr.Message
		}

		logging.Debug(d.logger, "request failed", "method", msg.Method, "call", callID, "code", code)
		d.sendErrorResponse(ctx, msg.ID, code, message, nil)
		return
	}

	d.sendResponse(ctx, msg.ID, result)
}

// handleNotification handles an RPC notification (no response)
func (d *JSONRPCDispatcher) handleNotification(ctx context.Context, msg *JSONRPCMessage) {
	if d.handler == nil {
		return
	}

	if d.sessionID != "" {
		ctx = WithSessionID(ctx, d.sessionID)
	}
	ctx = WithCallID(ctx, xid.New().String())

	_, _ = d.handler.HandleRequest(ctx, msg.Method, msg.Params)
}

// handleResponse handles a received RPC response
func (d *JSONRPCDispatcher) handleResponse(msg *JSONRPCMessage) {
	var idStr string
	if err := json.Unmarshal(msg.ID, &idStr); err != nil {
		// IDs issued by Call are always strings, anything else is not ours
		return
	}

	d.pendingMux.Lock()
	defer d.pendingMux.Unlock()

	ch, exists := d.pending[idStr]
	if exists {
		ch <- msg
		delete(d.pending, idStr)
	}
}

// Call sends an RPC request and waits for a response
func (d *JSONRPCDispatcher) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := uuid.New().String()

	request := &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      []byte(`"` + id + `"`),
		Method:  method,
	}

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("error marshaling parameters: %w", err)
		}
		request.Params = paramsJSON
	}

	responseCh := make(chan *JSONRPCMessage, 1)

	d.pendingMux.Lock()
	d.pending[id] = responseCh
	d.pendingMux.Unlock()

	requestJSON, err := json.Marshal(request)
	if err != nil {
		d.removePending(id)
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	if err := d.transport.Send(ctx, requestJSON); err != nil {
		d.removePending(id)
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	select {
	case <-ctx.Done():
		d.removePending(id)
		return nil, ctx.Err()
	case response := <-responseCh:
		if response.Error != nil {
			return nil, response.Error
		}
		return response.Result, nil
	}
}

// Notify sends an RPC notification (without waiting for a response)
func (d *JSONRPCDispatcher) Notify(ctx context.Context, method string, params interface{}) error {
	notification := &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("error marshaling parameters: %w", err)
		}
		notification.Params = paramsJSON
	}

	notificationJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("error marshaling notification: %w", err)
	}

	if err := d.transport.Send(ctx, notificationJSON); err != nil {
		return fmt.Errorf("error sending notification: %w", err)
	}

	return nil
}

func (d *JSONRPCDispatcher) removePending(id string) {
	d.pendingMux.Lock()
	delete(d.pending, id)
	d.pendingMux.Unlock()
}

// sendErrorResponse sends an error response
func (d *JSONRPCDispatcher) sendErrorResponse(ctx context.Context, id json.RawMessage, code int, message string, data interface{}) {
	var dataJSON json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err == nil {
			dataJSON = bytes
		}
	}

	response := &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    dataJSON,
		},
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		// We can't do much if serialization fails
		return
	}

	_ = d.transport.Send(ctx, responseJSON)
}

// sendResponse sends a response with a result
func (d *JSONRPCDispatcher) sendResponse(ctx context.Context, id json.RawMessage, result interface{}) {
	response := &JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
	}

	if result != nil {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			d.sendErrorResponse(ctx, id, ErrorCodeInternalError, "Internal error", nil)
			return
		}
		response.Result = resultJSON
	} else {
		response.Result = []byte("null")
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		// We can't do much if serialization fails
		return
	}

	_ = d.transport.Send(ctx, responseJSON)
}

// SetSessionID sets the session ID for this dispatcher
func (d *JSONRPCDispatcher) SetSessionID(sessionID string) {
	d.sessionID = sessionID
}
