package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	ssetransport "github.com/pcurtin/mcp-texttools/pkg/transport/sse"
)

// NewSSECommand builds the HTTP/SSE serving command.
func NewSSECommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "sse",
		Short: "Serve the tools over HTTP with Server-Sent Events",
		Long: `Serve the MCP protocol over HTTP. Clients open an event stream on GET /sse,
receive their session endpoint as the first event and post JSON-RPC messages
to POST /message. GET /health reports the server status.

The server runs until it receives SIGINT or SIGTERM, then shuts down
gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, level, err := loadConfig()
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.SSE.Address = addr
			}

			srv, err := buildServer(cfg, level)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return srv.ServeSSE(ctx, ssetransport.SSEServerOptions{
				Name:      cfg.ServerName,
				Address:   cfg.SSE.Address,
				Heartbeat: cfg.SSE.Heartbeat,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configured sse.address")

	return cmd
}
