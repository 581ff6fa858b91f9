package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
)

// Assistant is the part of rag.Service the chat front-ends use.
type Assistant interface {
	Answer(ctx context.Context, sess *rag.Session, question string) (*rag.Answer, error)
	IngestFiles(ctx context.Context, sess *rag.Session, paths []string) (*rag.IngestReport, error)
	Sources() []string
	UserMessage(err error) string
}

// Action is what a line of chat input asks for.
type Action int

const (
	ActionAsk Action = iota
	ActionNew
	ActionIngest
	ActionSources
	ActionConversations
	ActionSwitch
	ActionHelp
	ActionQuit
)

// ErrUnknownCommand is returned by Parse for an unrecognized slash command.
var ErrUnknownCommand = errors.New("unknown command")

// HelpText lists the chat commands.
const HelpText = `Commands:
  /ingest <file.pdf>...  add PDF files to the index
  /sources               list loaded documents
  /new                   start a new conversation
  /list                  list conversations
  /switch <n>            switch to conversation n
  /help                  show this help
  /quit                  exit
Anything else is asked as a question.`

// Input is one parsed line of chat input.
type Input struct {
	Action Action
	// Text is the question for ActionAsk.
	Text string
	Args []string
}

// Parse turns a line into an Input. Lines not starting with "/" are questions.
func Parse(line string) (Input, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Input{Action: ActionAsk, Text: line}, nil
	}
	fields := strings.Fields(line)
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "/new":
		return Input{Action: ActionNew}, nil
	case "/ingest", "/add":
		return Input{Action: ActionIngest, Args: args}, nil
	case "/sources":
		return Input{Action: ActionSources}, nil
	case "/list", "/conversations":
		return Input{Action: ActionConversations}, nil
	case "/switch":
		return Input{Action: ActionSwitch, Args: args}, nil
	case "/help", "/?":
		return Input{Action: ActionHelp}, nil
	case "/quit", "/exit", "/q":
		return Input{Action: ActionQuit}, nil
	default:
		return Input{}, fmt.Errorf("%w %q; type /help", ErrUnknownCommand, fields[0])
	}
}

// Reply is the rendered result of handling an Input.
type Reply struct {
	Text   string
	Failed bool
	Quit   bool
	// Answer is set for a successful ActionAsk.
	Answer *rag.Answer
}

// Controller executes chat input against one session.
type Controller struct {
	assistant Assistant
	session   *rag.Session
}

// NewController creates a Controller for session.
func NewController(assistant Assistant, session *rag.Session) *Controller {
	return &Controller{assistant: assistant, session: session}
}

// Session returns the controlled session.
func (c *Controller) Session() *rag.Session { return c.session }

// Sources returns the loaded document sources.
func (c *Controller) Sources() []string { return c.assistant.Sources() }

// Handle executes in and renders the outcome.
func (c *Controller) Handle(ctx context.Context, in Input) Reply {
	switch in.Action {
	case ActionAsk:
		ans, err := c.assistant.Answer(ctx, c.session, in.Text)
		if err != nil {
			return c.fail(err)
		}
		return Reply{Text: RenderAnswer(ans), Answer: ans}
	case ActionIngest:
		if len(in.Args) == 0 {
			return Reply{Text: RenderError("usage: /ingest <file.pdf>..."), Failed: true}
		}
		report, err := c.assistant.IngestFiles(ctx, c.session, in.Args)
		if err != nil {
			return c.fail(err)
		}
		return Reply{Text: RenderReport(report)}
	case ActionSources:
		return Reply{Text: RenderSources(c.assistant.Sources())}
	case ActionNew:
		c.session.StartConversation()
		return Reply{Text: successStyle.Render("Started a new conversation.")}
	case ActionConversations:
		return Reply{Text: RenderConversations(c.session.Conversations(), c.session.Current().ID)}
	case ActionSwitch:
		return c.switchTo(in.Args)
	case ActionHelp:
		return Reply{Text: HelpText}
	case ActionQuit:
		return Reply{Quit: true}
	default:
		return Reply{Text: RenderError(fmt.Sprintf("unsupported action %d", in.Action)), Failed: true}
	}
}

func (c *Controller) switchTo(args []string) Reply {
	convs := c.session.Conversations()
	if len(args) != 1 {
		return Reply{Text: RenderError("usage: /switch <n>"), Failed: true}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(convs) {
		return Reply{Text: RenderError(fmt.Sprintf("no conversation %q; see /list", args[0])), Failed: true}
	}
	conv := convs[n-1]
	c.session.SelectConversation(conv.ID)
	return Reply{Text: successStyle.Render("Switched to " + conv.Name + ".")}
}

func (c *Controller) fail(err error) Reply {
	return Reply{Text: RenderError(c.assistant.UserMessage(err)), Failed: true}
}
