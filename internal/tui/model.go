package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// replyMsg carries the result of a command run off the UI goroutine.
type replyMsg struct {
	reply Reply
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	ctrl     *Controller
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	notes    string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model. ctx bounds every question and ingest.
func New(ctx context.Context, ctrl *Controller) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /help"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input box
		vh := msg.Height - reserved - hh
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, vh)
		m.input.Width = max(10, msg.Width-8)
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		if msg.reply.Quit {
			return m, tea.Quit
		}
		m.status = "Ready."
		if msg.reply.Failed {
			m.status = "Failed."
		}
		m.notes = msg.reply.Text
		if msg.reply.Answer != nil {
			// The answer itself is shown in the history.
			m.notes = RenderCitations(msg.reply.Answer.Sources)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	line := m.input.Value()
	in, err := Parse(line)
	if err != nil {
		m.notes = RenderError(err.Error())
		m.refresh()
		return m, nil
	}
	if in.Action == ActionAsk && in.Text == "" {
		return m, nil
	}
	if in.Action == ActionQuit {
		return m, tea.Quit
	}

	m.input.Reset()
	m.busy = true
	m.status = "Working..."
	if in.Action == ActionAsk {
		m.status = "Thinking..."
	}
	ctx, ctrl := m.ctx, m.ctrl
	run := func() tea.Msg {
		return replyMsg{reply: ctrl.Handle(ctx, in)}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// refresh re-renders the history for the current conversation.
func (m *Model) refresh() {
	content := RenderTurns(m.ctrl.Session().Current().Turns)
	if m.notes != "" {
		content += "\n\n" + m.notes
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// View renders the header, history, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	sess := m.ctrl.Session()
	header := titleStyle.Render("BookSeek") + "  " + subtitleStyle.Render(fmt.Sprintf("%s | %d document(s) | %s",
		sess.Current().Name, len(m.ctrl.Sources()), sess.State()))

	status := hintStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		historyBoxStyle.Render(m.viewport.View()),
		inputBoxStyle.Render(m.input.View()),
		status,
	)
}
