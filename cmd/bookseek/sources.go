package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bookseek/internal/tui"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the documents in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		sources := a.svc.Sources()
		if sourcesJSON {
			return writeJSON(cmd.OutOrStdout(), map[string][]string{"sources": sources})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSources(sources))
		return err
	},
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print sources as JSON")
}
