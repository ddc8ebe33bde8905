package client

import (
	"log/slog"
	"time"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// ClientOption is a function that configures a client
type ClientOption func(*Client)

// WithClientID sets the client ID
func WithClientID(id string) ClientOption {
	return func(c *Client) {
		c.ID = id
	}
}

// WithClientInfo sets the client information
func WithClientInfo(info map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range info {
			c.Info[k] = v
		}
	}
}

// WithProtocolVersion sets the protocol version requested during
// initialization
func WithProtocolVersion(version protocol.ProtocolVersion) ClientOption {
	return func(c *Client) {
		c.ProtocolVersion = version
	}
}

// WithRetry enables exponential-backoff retries on calls, giving up once the
// total elapsed time exceeds maxElapsed
func WithRetry(maxElapsed time.Duration) ClientOption {
	return func(c *Client) {
		c.retryMaxElapsed = maxElapsed
	}
}

// WithLogger sets the logger for the client
func WithLogger(level slog.Level) ClientOption {
	lf := logging.NewLoggerFactory()
	lf.SetLevel(level)
	return func(c *Client) {
		c.loggerFactory = lf
	}
}

// WithTransportRegistry sets a custom transport registry for the client
func WithTransportRegistry(registry *protocol.TransportRegistry) ClientOption {
	return func(c *Client) {
		c.transportRegistry = registry
	}
}
