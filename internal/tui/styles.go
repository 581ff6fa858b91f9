package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
)

var (
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorLightGray = lipgloss.Color("#CCCCCC")
	colorGray      = lipgloss.Color("#888888")
	colorDarkGray  = lipgloss.Color("#444444")
	colorGreen     = lipgloss.Color("#00AF5F")
	colorYellow    = lipgloss.Color("#D7AF00")
	colorRed       = lipgloss.Color("#D70000")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	questionStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(colorLightGray)

	sourceStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(2)

	previewStyle = lipgloss.NewStyle().
			Foreground(colorDarkGray).
			Italic(true).
			PaddingLeft(4)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	historyBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDarkGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)
)

// RenderAnswer formats an answer followed by its cited sources.
func RenderAnswer(ans *rag.Answer) string {
	out := answerStyle.Render(ans.Text)
	if cites := RenderCitations(ans.Sources); cites != "" {
		out += "\n\n" + cites
	}
	return out
}

// RenderCitations formats the sources cited by an answer, with previews.
func RenderCitations(sources []rag.Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Sources:"))
	for _, src := range sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(sourceLine(src)))
		if src.Preview != "" {
			b.WriteString("\n")
			b.WriteString(previewStyle.Render(oneLine(src.Preview)))
		}
	}
	return b.String()
}

func sourceLine(src rag.Source) string {
	name := src.Name
	if src.Memory {
		name = "earlier answer"
	}
	if src.Page > 0 {
		return fmt.Sprintf("%s, page %d (score %.3f)", name, src.Page, src.Score)
	}
	return fmt.Sprintf("%s (score %.3f)", name, src.Score)
}

// RenderReport formats the outcome of an ingest batch.
func RenderReport(r *rag.IngestReport) string {
	var b strings.Builder
	b.WriteString(successStyle.Render(fmt.Sprintf("Processed %d document(s), %d chunk(s) added.", r.Processed, r.ChunksAdded)))
	if r.Skipped > 0 {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(fmt.Sprintf("Skipped %d already indexed: %s", r.Skipped, strings.Join(r.SkippedSources, ", "))))
	}
	b.WriteString("\n")
	b.WriteString(RenderSources(r.Sources))
	return b.String()
}

// RenderSources formats the list of loaded documents.
func RenderSources(sources []string) string {
	if len(sources) == 0 {
		return hintStyle.Render("No documents loaded.")
	}
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Loaded documents (%d):", len(sources))))
	for _, s := range sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render("- " + s))
	}
	return b.String()
}

// RenderConversations lists conversations in creation order and marks the
// current one.
func RenderConversations(convs []rag.Conversation, current string) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Conversations:"))
	for i, c := range convs {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(fmt.Sprintf("%s %d. %s (%d turns)", marker, i+1, c.Name, len(c.Turns))))
	}
	return b.String()
}

// RenderTurns formats the question and answer history of a conversation.
func RenderTurns(turns []rag.Turn) string {
	if len(turns) == 0 {
		return hintStyle.Render("Ask a question about your documents. Type /help for commands.")
	}
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, questionStyle.Render("You: ")+t.Question+"\n"+answerStyle.Render(t.Answer))
	}
	return strings.Join(parts, "\n\n")
}

// RenderError formats a user-facing error message.
func RenderError(msg string) string {
	head, hint, found := strings.Cut(msg, "\nHint: ")
	out := errorStyle.Render("Error: ") + head
	if found {
		out += "\n" + hintStyle.Render("Hint: "+hint)
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
