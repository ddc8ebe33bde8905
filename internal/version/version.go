// Package version exposes the build version of the server
package version

// Version is overridden at build time via
// -ldflags "-X github.com/pcurtin/mcp-texttools/internal/version.Version=..."
var Version = "0.3.0"
