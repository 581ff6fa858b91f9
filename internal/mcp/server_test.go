package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/fyrsmithlabs/bookseek/internal/extraction"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
)

type mockGenerator struct {
	err   error
	calls int
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "From the notes: Paris.", nil
}

type mockExtractor map[string]string

func (m mockExtractor) ExtractDocument(_ context.Context, path string) (chunker.Document, error) {
	text, ok := m[path]
	if !ok {
		return chunker.Document{}, &extraction.ExtractError{Path: path, Err: os.ErrNotExist}
	}
	return chunker.NewDocument(path, text), nil
}

func newTestService(t *testing.T, gen rag.Generator) *rag.Service {
	t.Helper()
	idx, err := vectorstore.New(vectorstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	svc, err := rag.NewService(rag.Deps{
		Embedder:  embeddings.NewHashEmbedder(1024),
		Index:     idx,
		Generator: gen,
		Extractor: mockExtractor{
			"france.pdf": "Paris is the capital of France.",
			"fruit.pdf":  "Bananas are a yellow fruit.",
		},
	}, rag.DefaultConfig())
	require.NoError(t, err)
	return svc
}

// connect starts s on an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)

	s, err := NewServer(newTestService(t, &mockGenerator{}), nil)
	require.NoError(t, err)
	assert.NotNil(t, s.Session())
	assert.Equal(t, rag.StateEmpty, s.Session().State())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "bookseek", cfg.Name)
	assert.NotEmpty(t, cfg.Version)
	assert.NotNil(t, cfg.Logger)
}

func TestTools_List(t *testing.T) {
	s, err := NewServer(newTestService(t, &mockGenerator{}), nil)
	require.NoError(t, err)
	cs := connect(t, s)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ingest_pdf", "ask", "list_sources", "start_conversation"}, names)
}

func TestTools_IngestAndAsk(t *testing.T) {
	gen := &mockGenerator{}
	s, err := NewServer(newTestService(t, gen), nil)
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"france.pdf", "fruit.pdf"}})
	require.False(t, res.IsError, text(res))
	var report ingestOutput
	decode(t, res, &report)
	assert.Equal(t, 2, report.Processed)
	assert.ElementsMatch(t, []string{"france.pdf", "fruit.pdf"}, report.Sources)
	assert.Equal(t, rag.StateReady, s.Session().State())

	res = call(t, cs, "ask", map[string]any{"question": "What is the capital of France?"})
	require.False(t, res.IsError, text(res))
	var ans askOutput
	decode(t, res, &ans)
	assert.Equal(t, "From the notes: Paris.", ans.Answer)
	assert.NotEmpty(t, ans.Sources)
	assert.Equal(t, 1, gen.calls)

	res = call(t, cs, "list_sources", nil)
	var sources sourcesOutput
	decode(t, res, &sources)
	assert.Equal(t, "READY", sources.State)
	assert.ElementsMatch(t, []string{"france.pdf", "fruit.pdf"}, sources.Sources)
}

func TestTools_AskBeforeIngest(t *testing.T) {
	gen := &mockGenerator{}
	s, err := NewServer(newTestService(t, gen), nil)
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, "ask", map[string]any{"question": "anything?"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "upload and process at least one PDF first")
	assert.Zero(t, gen.calls)
}

func TestTools_Errors(t *testing.T) {
	s, err := NewServer(newTestService(t, &mockGenerator{err: errors.New("upstream down")}), nil)
	require.NoError(t, err)
	cs := connect(t, s)

	res := call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"missing.pdf"}})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "missing.pdf")

	res = call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"notes.txt"}})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "not a .pdf file")

	res = call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"../france.pdf"}})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "directory traversal")

	res = call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"france.pdf"}})
	require.False(t, res.IsError, text(res))

	res = call(t, cs, "ask", map[string]any{"question": "   "})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "non-empty question")

	res = call(t, cs, "ask", map[string]any{"question": "Capital?"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "upstream down")
	assert.Empty(t, s.Session().Current().Turns)
}

func TestTools_StartConversation(t *testing.T) {
	s, err := NewServer(newTestService(t, &mockGenerator{}), nil)
	require.NoError(t, err)
	cs := connect(t, s)

	call(t, cs, "ingest_pdf", map[string]any{"paths": []string{"france.pdf"}})
	call(t, cs, "ask", map[string]any{"question": "Capital of France?"})
	first := s.Session().Current().ID

	res := call(t, cs, "start_conversation", nil)
	var out conversationOutput
	decode(t, res, &out)
	assert.NotEqual(t, first, out.ID)
	assert.Len(t, s.Session().Conversations(), 2)
}
