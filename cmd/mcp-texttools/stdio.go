package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewStdioCommand builds the stdio serving command.
func NewStdioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tools over stdin and stdout",
		Long: `Serve the MCP protocol on standard input and output, one JSON-RPC message
per line. Logs go to stderr so stdout stays clean for the protocol.

The server runs until it receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, level, err := loadConfig()
			if err != nil {
				return err
			}

			srv, err := buildServer(cfg, level)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return srv.ServeStdio(ctx)
		},
	}
}
