package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bookseek/internal/tui"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the indexed documents",
	Long: `Answer a question using the chunks most similar to it as context.

Examples:
  bookseek ask "What is the capital of France?"
  bookseek ask --json What does chapter 2 cover`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{requireGenerator: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.svc.Answer(ctx, a.svc.NewSession(), strings.Join(args, " "))
		if err != nil {
			return a.userError(err)
		}
		if askJSON {
			return writeJSON(cmd.OutOrStdout(), ans)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tui.RenderAnswer(ans))
		return err
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
}
