package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/tui"
)

var (
	ingestWatch string
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]...",
	Short: "Add PDF files to the index",
	Long: `Extract, chunk and embed PDF files, then persist them in the index.
Files whose content is already indexed are skipped.

Examples:
  # Ingest two files as one batch
  bookseek ingest notes.pdf slides.pdf

  # Ingest, then keep ingesting PDFs added to a directory
  bookseek ingest --watch ~/papers`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && ingestWatch == "" {
			return errors.New("requires at least one PDF file or --watch")
		}
		return nil
	},
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestWatch, "watch", "", "directory to watch for new PDF files")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the report as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.svc.NewSession()
	if len(args) > 0 {
		report, err := a.svc.IngestFiles(ctx, sess, args)
		if err != nil {
			return a.userError(err)
		}
		if err := printReport(cmd.OutOrStdout(), report, ingestJSON); err != nil {
			return err
		}
	}

	if ingestWatch == "" {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for PDF files (Ctrl+C to stop)\n", ingestWatch)
	return watchDir(ctx, a, sess, ingestWatch)
}

func printReport(out io.Writer, report *rag.IngestReport, asJSON bool) error {
	if asJSON {
		return writeJSON(out, report)
	}
	_, err := fmt.Fprintln(out, tui.RenderReport(report))
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
