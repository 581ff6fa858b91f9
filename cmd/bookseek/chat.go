package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bookseek/internal/tui"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about the indexed documents",
	Long: `Start an interactive chat. Every question is answered from the indexed
documents and earlier answers. Type /help for commands such as /ingest,
/new and /switch.

Examples:
  # Full-screen chat
  bookseek chat

  # Line-based chat, for pipes and dumb terminals
  bookseek chat --plain`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use a line-based prompt instead of the full-screen UI")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{requireGenerator: true, quiet: !chatPlain})
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := tui.NewController(a.svc, a.svc.NewSession())
	if chatPlain {
		return runPlainChat(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	p := tea.NewProgram(tui.New(ctx, ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}

// runPlainChat reads one line at a time from in until EOF, /quit or ctx is done.
func runPlainChat(ctx context.Context, ctrl *tui.Controller, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, tui.HelpText)
	if len(ctrl.Sources()) == 0 {
		fmt.Fprintln(out, tui.RenderSources(nil))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input, err := tui.Parse(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, tui.RenderError(err.Error()))
			continue
		}
		if input.Action == tui.ActionAsk && input.Text == "" {
			continue
		}

		reply := ctrl.Handle(ctx, input)
		if reply.Quit {
			return nil
		}
		fmt.Fprintln(out, reply.Text)
		if ctx.Err() != nil {
			return nil
		}
	}
}
