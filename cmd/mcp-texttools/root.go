package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pcurtin/mcp-texttools/internal/config"
	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/server"
	"github.com/pcurtin/mcp-texttools/pkg/texttool"
)

var (
	cfgFile      string
	logLevelFlag string
)

const serverInstructions = "Text manipulation tools. Every tool takes a single string argument named text and returns a JSON envelope in its text content."

// NewRootCommand builds the mcp-texttools command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mcp-texttools",
		Short: "MCP server exposing text manipulation tools",
		Long: `mcp-texttools serves six text manipulation tools over the Model Context
Protocol: reverse_text, uppercase_text, lowercase_text, word_count,
character_count and shuffle_text.

The server speaks JSON-RPC 2.0 over stdio for editor integrations and over
HTTP with Server-Sent Events for networked clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a texttools.yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error or fatal")

	rootCmd.AddCommand(NewStdioCommand())
	rootCmd.AddCommand(NewSSECommand())
	rootCmd.AddCommand(NewToolsCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// loadConfig resolves the effective configuration for a command run. The
// --log-level flag wins over the configured level.
func loadConfig() (*config.Config, slog.Level, error) {
	// A missing .env is fine, the environment may carry the settings directly.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, 0, err
	}

	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, 0, err
	}

	return cfg, level, nil
}

// buildServer assembles an MCP server carrying the full tool catalog.
func buildServer(cfg *config.Config, level slog.Level) (*server.Server, error) {
	loggerFactory := logging.NewLoggerFactory()
	loggerFactory.SetLevel(level)

	executor, err := texttool.NewExecutor(texttool.Config{
		MaxTextLength: cfg.MaxTextLength,
		Timeout:       cfg.ToolTimeout,
		Logger:        loggerFactory.CreateLogger("texttool"),
	})
	if err != nil {
		return nil, err
	}

	srv := server.NewServer(
		server.WithServerName(cfg.ServerName),
		server.WithLogger(level),
		server.WithInstructions(serverInstructions),
		server.WithTools(executor.Tools()...),
	)

	return srv, nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
