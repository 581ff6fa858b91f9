package rag

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/config"
	"github.com/fyrsmithlabs/bookseek/internal/extraction"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/retriever"
	"github.com/fyrsmithlabs/bookseek/internal/secrets"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
)

var defaultScrubber = secrets.MustNew(nil)

// UserMessage renders err for display with a hint on how to fix it. Key
// material matching the default secret rules is redacted.
func UserMessage(err error) string {
	return userMessage(err, defaultScrubber)
}

// UserMessage is like the package-level UserMessage but uses the service's
// scrubber, which also redacts the configured API keys verbatim.
func (s *Service) UserMessage(err error) string {
	return userMessage(err, s.scrubber)
}

func userMessage(err error, scrubber secrets.Scrubber) string {
	if err == nil {
		return ""
	}
	msg := scrubber.Scrub(err.Error()).Scrubbed
	if h := Hint(err); h != "" {
		return msg + "\nHint: " + h
	}
	return msg
}

// Hint returns an actionable suggestion for err, or "" when there is none.
func Hint(err error) string {
	var (
		gf *generation.GenerationFailedError
		ia *retriever.InvalidArgumentError
	)
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		return "set OPENROUTER_API_KEY in the environment or a .env file"
	case errors.As(err, &gf) && gf.IsAuth():
		return "check your API key"
	case errors.As(err, &gf) && gf.StatusCode == http.StatusTooManyRequests:
		return "the model provider is rate limiting requests; wait and try again"
	case errors.As(err, &gf) && gf.Retryable():
		return "the model provider is unavailable; try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out; try again later"
	case errors.Is(err, ErrNotReady):
		return "upload and process at least one PDF first"
	case errors.Is(err, extraction.ErrExtractFailed):
		return "make sure the file is a readable, text-based PDF"
	case errors.Is(err, chunker.ErrEmptyInput):
		return "the document has no extractable text; scanned PDFs need OCR first"
	case errors.Is(err, vectorstore.ErrDimensionMismatch):
		return "the index was built with a different embedding model; restore embeddings.model or remove the index directory and ingest again"
	case errors.Is(err, vectorstore.ErrCorruptIndex):
		return "the saved index is damaged; remove the index directory and ingest again"
	case errors.As(err, &ia) && ia.Name == "question":
		return "ask a non-empty question"
	default:
		return ""
	}
}
