// Package stdio provides an stdio transport implementation for MCP
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// STDIOTransport implements an MCP transport via stdin/stdout
type STDIOTransport struct {
	// Reader for standard input
	reader *bufio.Reader

	// Writer for standard output
	writer io.Writer

	// Incoming messages buffer
	incomingMessages chan []byte

	logger *slog.Logger

	// Mutex for synchronization
	mutex sync.Mutex

	// Reading goroutine
	wg sync.WaitGroup

	// Close channel
	done chan struct{}

	// Closed state
	closed bool
}

// NewSTDIOTransport creates a new stdio transport over the process streams.
// Log output goes to stderr, stdout carries only protocol messages.
func NewSTDIOTransport() *STDIOTransport {
	return NewSTDIOTransportWithIO(os.Stdin, os.Stdout)
}

// NewSTDIOTransportWithIO creates a new stdio transport with custom reader and writer
func NewSTDIOTransportWithIO(reader io.Reader, writer io.Writer) *STDIOTransport {
	return &STDIOTransport{
		reader:           bufio.NewReader(reader),
		writer:           writer,
		incomingMessages: make(chan []byte, 100),
		done:             make(chan struct{}),
		logger:           logging.NewLoggerFactory().CreateLogger("stdio-transport"),
	}
}

// Start starts the transport
func (t *STDIOTransport) Start() {
	t.wg.Add(1)
	go t.readLoop()
}

// readLoop is the request reading loop
func (t *STDIOTransport) readLoop() {
	defer t.wg.Done()

	// Use a single channel for data with a buffer to reduce potential blocking
	dataChannel := make(chan []byte, 100)

	// Start a goroutine that continuously reads from stdin
	go func() {
		for {
			select {
			case <-t.done:
				return
			default:
			}

			readData, readErr := t.reader.ReadBytes('\n')

			// Process data if we have any
			if len(readData) > 0 {
				select {
				case dataChannel <- readData:
					// Successfully sent data
				case <-t.done:
					// Transport is closing, exit
					return
				}
			}

			// Handle errors
			if readErr != nil {
				if readErr != io.EOF {
					logging.Error(t.logger, "error reading from stdin", "error", readErr)
				}

				// Small backoff on error to prevent CPU spinning
				select {
				case <-time.After(100 * time.Millisecond):
					// Continue after backoff
				case <-t.done:
					// Transport is closing, exit
					return
				}
			}
		}
	}()

	// Main loop: process data and check for termination
	for {
		select {
		case <-t.done:
			logging.Debug(t.logger, "readLoop: done")
			return
		case data := <-dataChannel:
			// Process each message as it arrives. The send must not outlive
			// the transport, or Close would wait on it forever.
			trimmedData := bytes.TrimSpace(data)
			if len(trimmedData) > 0 {
				select {
				case t.incomingMessages <- trimmedData:
				case <-t.done:
					return
				}
			}
		}
	}
}

// Send sends a message to the recipient
func (t *STDIOTransport) Send(ctx context.Context, data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return fmt.Errorf("transport closed")
	}

	// Messages are newline delimited on the wire
	data = append(data, '\n')

	_, err := t.writer.Write(data)
	return err
}

// Receive receives a message from the sender
func (t *STDIOTransport) Receive(ctx context.Context) ([]byte, error) {
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
	case data, ok := <-t.incomingMessages:
		if !ok {
			return nil, fmt.Errorf("channel closed")
		}
		return data, nil
	case <-time.After(50 * time.Millisecond):
		// Short poll interval so callers can check their context frequently
		return nil, fmt.Errorf("no message available")
	}
}

// Close closes the transport connection
func (t *STDIOTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	close(t.done)
	t.wg.Wait()

	return nil
}

// Reader implements the BiDirectionalTransport interface
func (t *STDIOTransport) Reader() io.Reader {
	return t.reader
}

// Writer implements the BiDirectionalTransport interface
func (t *STDIOTransport) Writer() io.Writer {
	return t.writer
}

// STDIOTransportCreator is a factory for creating stdio transports
func STDIOTransportCreator(ctx context.Context, options map[string]interface{}) (protocol.Transport, error) {
	return NewSTDIOTransport(), nil
}

// RegisterSTDIOTransport registers the stdio transport in the transport registry
func RegisterSTDIOTransport(registry *protocol.TransportRegistry) {
	registry.Register(protocol.TransportTypeStdio, STDIOTransportCreator)
}
