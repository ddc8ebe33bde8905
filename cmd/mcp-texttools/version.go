package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pcurtin/mcp-texttools/internal/version"
)

// NewVersionCommand builds the version printing command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mcp-texttools version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}
