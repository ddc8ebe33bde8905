package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pcurtin/mcp-texttools/internal/config"
	"github.com/pcurtin/mcp-texttools/pkg/client"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
	stdiotransport "github.com/pcurtin/mcp-texttools/pkg/transport/stdio"
)

// NewToolsCommand builds the tool listing command.
func NewToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tools the server advertises, as JSON",
		Long: `Connect a client to an in-process server, run the initialize handshake and
print the tool listing a connected client would receive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, level, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			toolList, err := listToolsOverLoopback(ctx, cfg, level)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(toolList, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// listToolsOverLoopback wires a client to an in-process server over a pair of
// pipes and asks it for the tool listing.
func listToolsOverLoopback(ctx context.Context, cfg *config.Config, level slog.Level) ([]protocol.Tool, error) {
	srv, err := buildServer(cfg, level)
	if err != nil {
		return nil, err
	}

	// Two pipes crossed so each side reads what the other writes.
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	serverTransport := stdiotransport.NewSTDIOTransportWithIO(serverIn, serverOut)
	clientTransport := stdiotransport.NewSTDIOTransportWithIO(clientIn, clientOut)
	serverTransport.Start()
	clientTransport.Start()

	session := srv.HandleConnection(serverTransport)
	cl := client.NewClient(clientTransport)

	defer func() {
		cl.Close()
		srv.CloseSession(session.ID)
		serverTransport.Close()
		clientOut.Close()
		serverOut.Close()
	}()

	if err := cl.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("loopback initialize failed: %w", err)
	}

	return cl.ListTools(ctx)
}
