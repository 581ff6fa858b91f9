package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/fyrsmithlabs/bookseek/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the tools
ingest_pdf, ask, list_sources and start_conversation. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{requireGenerator: true})
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := mcpserver.NewServer(a.svc, &mcpserver.Config{
			Name:    "bookseek",
			Version: version,
			Logger:  a.logger.Underlying(),
		})
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		return srv.Run(ctx)
	},
}
