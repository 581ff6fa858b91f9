// Package retriever answers "which stored chunks are most relevant to this
// question" by embedding the query and searching the vector index.
//
// Chunks synthesized from earlier questions and answers are kept in the same
// index as document chunks. The retriever caps how many of them may appear
// in one result so that the assistant's own dialogue cannot crowd out the
// source documents.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/retriever"

// DefaultK is the number of chunks retrieved when the caller has no preference.
const DefaultK = 3

// ErrInvalidArgument is returned for a non-positive k.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError reports a bad retrieval argument.
type InvalidArgumentError struct {
	Name  string
	Value any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s=%v", e.Name, e.Value)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// QueryEmbedder embeds query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the subset of *vectorstore.Index the retriever needs.
type Searcher interface {
	SearchFunc(ctx context.Context, vec []float32, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error)
}

// Config controls how conversation memory mixes with document chunks.
type Config struct {
	// IncludeMemory allows chunks synthesized from earlier turns in results.
	IncludeMemory bool
	// MemoryResults caps how many memory chunks one result may contain.
	MemoryResults int
}

// DefaultConfig allows at most one memory chunk per result.
func DefaultConfig() Config {
	return Config{IncludeMemory: true, MemoryResults: 1}
}

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Content string
	Source  string
	// Page is the page the chunk starts on, or 0 if unknown.
	Page  int
	Score float32
	// Memory is true for chunks synthesized from earlier questions and answers.
	Memory bool
}

// Retriever composes a query embedder with a vector index.
type Retriever struct {
	embedder QueryEmbedder
	index    Searcher
	cfg      Config
}

// New creates a Retriever.
func New(embedder QueryEmbedder, index Searcher, cfg Config) *Retriever {
	if cfg.MemoryResults < 0 {
		cfg.MemoryResults = 0
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve returns up to k chunks most similar to query, best first.
// An empty index yields an empty result rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		err := &InvalidArgumentError{Name: "k", Value: k}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid k")
		return nil, err
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.search(ctx, vec, k)
	if errors.Is(err, vectorstore.ErrEmptyIndex) {
		span.SetAttributes(attribute.Bool("empty_index", true))
		return []Result{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = toResult(h)
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// search returns the best k hits holding at most MemoryResults memory
// chunks. The best such set is the union of the top document hits and the
// top memory hits, merged by score.
func (r *Retriever) search(ctx context.Context, vec []float32, k int) ([]vectorstore.Hit, error) {
	docs, err := r.index.SearchFunc(ctx, vec, k, isDocument)
	if err != nil {
		return nil, err
	}
	memK := min(k, r.cfg.MemoryResults)
	if !r.cfg.IncludeMemory || memK == 0 {
		return docs, nil
	}

	mem, err := r.index.SearchFunc(ctx, vec, memK, isMemory)
	if err != nil {
		return nil, err
	}
	merged := append(docs, mem...)
	vectorstore.SortHits(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func isMemory(e vectorstore.Entry) bool {
	return e.Metadata[vectorstore.MetaKind] == vectorstore.KindConversation
}

func isDocument(e vectorstore.Entry) bool { return !isMemory(e) }

func toResult(h vectorstore.Hit) Result {
	page, _ := strconv.Atoi(h.Entry.Metadata[vectorstore.MetaPage])
	return Result{
		Content: h.Entry.Content,
		Source:  h.Entry.Source(),
		Page:    page,
		Score:   h.Score,
		Memory:  isMemory(h.Entry),
	}
}

// Chunks returns the contents of results, discarding scores.
func Chunks(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out
}
