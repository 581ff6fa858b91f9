// Bookseek answers questions about PDF documents.
//
// PDFs are split into overlapping chunks, embedded and stored in a local
// vector index. Questions are answered by a chat-completions model using
// only the most similar chunks as context.
//
// Usage:
//
//	# Index documents
//	bookseek ingest notes.pdf slides.pdf
//
//	# Ask once, or chat interactively
//	bookseek ask "What is the capital of France?"
//	bookseek chat
//
//	# Serve the HTTP API or an MCP stdio server
//	bookseek serve
//	bookseek mcp
//
// Configuration is read from ~/.config/bookseek/config.yaml, a .env file and
// environment variables. OPENROUTER_API_KEY is required for answering.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/tui"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, tui.RenderError(rag.UserMessage(err)))
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bookseek",
	Short: "Ask questions about your PDF documents",
	Long: `bookseek indexes PDF documents locally and answers questions about them
with a language model, citing the passages it used.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/bookseek/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
