package tui

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/fyrsmithlabs/bookseek/internal/extraction"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
)

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	return g.answer, g.err
}

type stubExtractor map[string]string

func (s stubExtractor) ExtractDocument(_ context.Context, path string) (chunker.Document, error) {
	text, ok := s[path]
	if !ok {
		return chunker.Document{}, &extraction.ExtractError{Path: path, Err: os.ErrNotExist}
	}
	return chunker.NewDocument(path, text), nil
}

func newController(t *testing.T, gen *stubGenerator) *Controller {
	t.Helper()
	idx, err := vectorstore.New(vectorstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	svc, err := rag.NewService(rag.Deps{
		Embedder:  embeddings.NewHashEmbedder(1024),
		Index:     idx,
		Generator: gen,
		Extractor: stubExtractor{"france.pdf": "Paris is the capital of France."},
	}, rag.DefaultConfig())
	require.NoError(t, err)
	return NewController(svc, svc.NewSession())
}

func TestParse(t *testing.T) {
	tests := []struct {
		line   string
		action Action
		text   string
		args   []string
	}{
		{"What is Paris?", ActionAsk, "What is Paris?", nil},
		{"  spaced out  ", ActionAsk, "spaced out", nil},
		{"/new", ActionNew, "", nil},
		{"/ingest a.pdf b.pdf", ActionIngest, "", []string{"a.pdf", "b.pdf"}},
		{"/sources", ActionSources, "", nil},
		{"/list", ActionConversations, "", nil},
		{"/switch 2", ActionSwitch, "", []string{"2"}},
		{"/HELP", ActionHelp, "", nil},
		{"/quit", ActionQuit, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			in, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.action, in.Action)
			assert.Equal(t, tt.text, in.Text)
			if tt.args != nil {
				assert.Equal(t, tt.args, in.Args)
			}
		})
	}

	_, err := Parse("/frobnicate")
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestController_AskBeforeIngest(t *testing.T) {
	c := newController(t, &stubGenerator{answer: "unused"})

	reply := c.Handle(context.Background(), Input{Action: ActionAsk, Text: "Capital?"})
	assert.True(t, reply.Failed)
	assert.Contains(t, reply.Text, "upload and process at least one PDF first")
	assert.Nil(t, reply.Answer)
}

func TestController_IngestAskAndConversations(t *testing.T) {
	c := newController(t, &stubGenerator{answer: "Paris."})
	ctx := context.Background()

	reply := c.Handle(ctx, Input{Action: ActionIngest, Args: []string{"france.pdf"}})
	require.False(t, reply.Failed, reply.Text)
	assert.Contains(t, reply.Text, "Processed 1 document(s)")
	assert.Contains(t, reply.Text, "france.pdf")

	reply = c.Handle(ctx, Input{Action: ActionAsk, Text: "What is the capital of France?"})
	require.False(t, reply.Failed, reply.Text)
	require.NotNil(t, reply.Answer)
	assert.Contains(t, reply.Text, "Paris.")
	assert.Contains(t, reply.Text, "france.pdf")
	first := c.Session().Current()
	assert.Equal(t, "What is the capital of France?", first.Name)

	reply = c.Handle(ctx, Input{Action: ActionNew})
	assert.False(t, reply.Failed)
	assert.NotEqual(t, first.ID, c.Session().Current().ID)

	reply = c.Handle(ctx, Input{Action: ActionConversations})
	assert.Contains(t, reply.Text, "1. What is the capital of France? (1 turns)")
	assert.Contains(t, reply.Text, "* 2. new")

	reply = c.Handle(ctx, Input{Action: ActionSwitch, Args: []string{"1"}})
	assert.False(t, reply.Failed)
	assert.Equal(t, first.ID, c.Session().Current().ID)
}

func TestController_Failures(t *testing.T) {
	c := newController(t, &stubGenerator{err: errors.New("upstream down")})
	ctx := context.Background()

	tests := map[string]struct {
		in   Input
		want string
	}{
		"ingest without args": {Input{Action: ActionIngest}, "usage: /ingest"},
		"missing file":        {Input{Action: ActionIngest, Args: []string{"gone.pdf"}}, "gone.pdf"},
		"switch out of range": {Input{Action: ActionSwitch, Args: []string{"9"}}, "no conversation"},
		"switch not a number": {Input{Action: ActionSwitch, Args: []string{"x"}}, "no conversation"},
		"switch without args": {Input{Action: ActionSwitch}, "usage: /switch"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reply := c.Handle(ctx, tt.in)
			assert.True(t, reply.Failed)
			assert.Contains(t, reply.Text, tt.want)
		})
	}

	reply := c.Handle(ctx, Input{Action: ActionIngest, Args: []string{"france.pdf"}})
	require.False(t, reply.Failed, reply.Text)
	reply = c.Handle(ctx, Input{Action: ActionAsk, Text: "Capital?"})
	assert.True(t, reply.Failed)
	assert.Contains(t, reply.Text, "upstream down")
	assert.Empty(t, c.Session().Current().Turns)
}

func TestController_HelpAndQuit(t *testing.T) {
	c := newController(t, &stubGenerator{})
	assert.Equal(t, HelpText, c.Handle(context.Background(), Input{Action: ActionHelp}).Text)
	assert.True(t, c.Handle(context.Background(), Input{Action: ActionQuit}).Quit)
}

func TestRenderError(t *testing.T) {
	out := RenderError("request failed\nHint: check your API key")
	assert.Contains(t, out, "request failed")
	assert.Contains(t, out, "Hint: check your API key")

	assert.Contains(t, RenderError("plain"), "plain")
}

func TestRenderSources_Empty(t *testing.T) {
	assert.Contains(t, RenderSources(nil), "No documents loaded.")
}
