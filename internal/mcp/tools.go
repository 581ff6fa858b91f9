package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/sanitize"
)

type askInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested PDFs"`
}

type askOutput struct {
	Answer       string       `json:"answer"`
	Conversation string       `json:"conversation"`
	Sources      []rag.Source `json:"sources"`
}

type ingestInput struct {
	Paths []string `json:"paths" jsonschema:"paths of PDF files to ingest as one batch"`
}

type ingestOutput struct {
	Processed      int      `json:"processed"`
	Skipped        int      `json:"skipped"`
	SkippedSources []string `json:"skipped_sources,omitempty"`
	ChunksAdded    int      `json:"chunks_added"`
	Sources        []string `json:"sources"`
}

type emptyInput struct{}

type sourcesOutput struct {
	State   string   `json:"state"`
	Sources []string `json:"sources"`
}

type conversationOutput struct {
	ID string `json:"id"`
}

// track wraps a tool body with active-request and invocation metrics.
func (s *Server) track(ctx context.Context, tool string) func(error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func(err error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

// userError replaces err with its scrubbed, hinted message for the client.
func (s *Server) userError(err error) error {
	return errors.New(s.svc.UserMessage(err))
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_pdf",
		Description: "Extract, chunk and index PDF files so their content can be queried",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ingestInput) (*mcp.CallToolResult, ingestOutput, error) {
		var toolErr error
		done := s.track(ctx, "ingest_pdf")
		defer func() { done(toolErr) }()

		for _, p := range args.Paths {
			if _, err := sanitize.ValidatePDFPath(p); err != nil {
				toolErr = &rag.IngestFailedError{Source: p, Stage: "validate", Err: err}
				return nil, ingestOutput{}, s.userError(toolErr)
			}
		}

		report, err := s.svc.IngestFiles(ctx, s.session, args.Paths)
		if err != nil {
			toolErr = err
			return nil, ingestOutput{}, s.userError(err)
		}
		return nil, ingestOutput{
			Processed:      report.Processed,
			Skipped:        report.Skipped,
			SkippedSources: report.SkippedSources,
			ChunksAdded:    report.ChunksAdded,
			Sources:        report.Sources,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the ingested PDFs and earlier answers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
		var toolErr error
		done := s.track(ctx, "ask")
		defer func() { done(toolErr) }()

		ans, err := s.svc.Answer(ctx, s.session, args.Question)
		if err != nil {
			toolErr = err
			return nil, askOutput{}, s.userError(err)
		}
		return nil, askOutput{
			Answer:       ans.Text,
			Conversation: ans.Conversation,
			Sources:      ans.Sources,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_sources",
		Description: "List the PDF files currently in the index",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, sourcesOutput, error) {
		done := s.track(ctx, "list_sources")
		defer done(nil)

		return nil, sourcesOutput{
			State:   s.session.State().String(),
			Sources: s.svc.Sources(),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "start_conversation",
		Description: "Start a new conversation; earlier answers stay searchable",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, conversationOutput, error) {
		done := s.track(ctx, "start_conversation")
		defer done(nil)

		return nil, conversationOutput{ID: s.session.StartConversation()}, nil
	})
}
