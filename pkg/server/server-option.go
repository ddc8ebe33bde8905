package server

import (
	"log/slog"
	"slices"

	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/capabilities/tools"
	"github.com/pcurtin/mcp-texttools/pkg/capability"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// ServerOption is a function that configures a server
type ServerOption func(*Server)

// WithServerID sets the server ID
func WithServerID(id string) ServerOption {
	return func(s *Server) {
		s.ID = id
	}
}

// WithServerInfo sets the server information
func WithServerInfo(info map[string]string) ServerOption {
	return func(s *Server) {
		for k, v := range info {
			s.Info[k] = v
		}
	}
}

// WithServerName sets the server name
func WithServerName(name string) ServerOption {
	return func(s *Server) {
		s.Name = name
	}
}

// WithServerVersion sets the server version
func WithServerVersion(version string) ServerOption {
	return func(s *Server) {
		s.Version = version
	}
}

// WithInstructions sets the instructions text returned to clients during
// initialization
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.Instructions = instructions
	}
}

// WithLogger sets the logger for the server
func WithLogger(level slog.Level) ServerOption {
	lf := logging.NewLoggerFactory()
	lf.SetLevel(level)
	return func(s *Server) {
		s.loggerFactory = lf
	}
}

// WithTransportRegistry specifies a custom transport registry to use
func WithTransportRegistry(registry *protocol.TransportRegistry) ServerOption {
	return func(s *Server) {
		s.transportRegistry = registry
	}
}

// WithCapability adds a capability to the server
// options are optional and can be used to pass additional parameters to the
// capability constructor:
//   - Tools: options[0] = the tool set ([]*tools.ToolWithHandler)
func WithCapability(capType capability.CapabilityType, options ...interface{}) ServerOption {
	return func(s *Server) {
		cap, err := s.capabilityRegistry.Create(capType, options...)
		if err == nil {
			s.capabilityRegistry.AddCapability(cap)
			if cap.GetEndpoint() != nil {
				s.endpointRegistry.RegisterEndpoint(cap.GetEndpoint())
			}
		} else {
			logging.Error(s.logger, "Failed to create capability", "capType", capType, "error", err)
		}
	}
}

func WithProtocolVersion(version protocol.ProtocolVersion) ServerOption {
	return func(s *Server) {
		idx := slices.Index(s.SupportedVersions, version)
		if idx == -1 {
			s.SupportedVersions = append(s.SupportedVersions, version)
		}
	}
}

// WithTools exposes the given tools through the tools capability. The tool
// set is fixed for the lifetime of the server.
func WithTools(toolSet ...*tools.ToolWithHandler) ServerOption {
	return func(s *Server) {
		WithCapability(capability.Tools, toolSet)(s)
	}
}
