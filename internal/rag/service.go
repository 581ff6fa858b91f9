package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/fyrsmithlabs/bookseek/internal/extraction"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/logging"
	"github.com/fyrsmithlabs/bookseek/internal/retriever"
	"github.com/fyrsmithlabs/bookseek/internal/secrets"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/rag"

// SourceConversation is the source recorded on chunks synthesized from
// questions and answers.
const SourceConversation = "conversation"

// DefaultPreviewChars bounds the content preview attached to answer sources.
const DefaultPreviewChars = 300

// Generator produces an answer for a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentExtractor reads a file into a document.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, path string) (chunker.Document, error)
}

// Deps are the collaborators of a Service. Embedder, Index and Generator are
// required; the rest have defaults.
type Deps struct {
	Embedder  embeddings.Embedder
	Index     *vectorstore.Index
	Generator Generator
	Splitter  *chunker.Splitter
	Extractor DocumentExtractor
	Scrubber  secrets.Scrubber
	Logger    *logging.Logger
}

// Config configures a Service.
type Config struct {
	// IndexDir is where the index is persisted after every change. Empty
	// keeps the index in memory only.
	IndexDir string
	// K is the number of chunks retrieved per question.
	K         int
	Retrieval retriever.Config
	// PreviewChars bounds Source.Preview.
	PreviewChars int
}

// DefaultConfig returns an in-memory configuration with K=3.
func DefaultConfig() Config {
	return Config{
		K:            retriever.DefaultK,
		Retrieval:    retriever.DefaultConfig(),
		PreviewChars: DefaultPreviewChars,
	}
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Name    string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Score   float32 `json:"score"`
	Preview string  `json:"preview"`
	Memory  bool    `json:"memory,omitempty"`
}

// Answer is the result of a successful question.
type Answer struct {
	Question     string   `json:"question"`
	Text         string   `json:"answer"`
	Conversation string   `json:"conversation"`
	Sources      []Source `json:"sources"`
}

// IngestReport summarizes one ingest batch.
type IngestReport struct {
	// Processed counts documents added to the index.
	Processed int `json:"processed"`
	// Skipped counts documents whose content was already indexed.
	Skipped        int      `json:"skipped"`
	SkippedSources []string `json:"skipped_sources,omitempty"`
	ChunksAdded    int      `json:"chunks_added"`
	// Sources lists every document source now in the index.
	Sources []string `json:"sources"`
}

// Service runs ingestion and question answering against one index.
type Service struct {
	cfg       Config
	embedder  embeddings.Embedder
	index     *vectorstore.Index
	generator Generator
	splitter  *chunker.Splitter
	extractor DocumentExtractor
	scrubber  secrets.Scrubber
	retriever *retriever.Retriever
	logger    *logging.Logger

	// writeMu serializes index writes so concurrent ingests cannot both pass
	// the digest check and a failed batch can be rolled back by length.
	writeMu sync.Mutex
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Embedder == nil {
		return nil, errors.New("rag: embedder is required")
	}
	if deps.Index == nil {
		return nil, errors.New("rag: index is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("rag: generator is required")
	}
	if cfg.K <= 0 {
		return nil, &retriever.InvalidArgumentError{Name: "k", Value: cfg.K}
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}

	if deps.Splitter == nil {
		s, err := chunker.New(chunker.DefaultConfig())
		if err != nil {
			return nil, err
		}
		deps.Splitter = s
	}
	if deps.Extractor == nil {
		deps.Extractor = extraction.NewPDFExtractor()
	}
	if deps.Scrubber == nil {
		s, err := secrets.New(nil)
		if err != nil {
			return nil, err
		}
		deps.Scrubber = s
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	return &Service{
		cfg:       cfg,
		embedder:  deps.Embedder,
		index:     deps.Index,
		generator: deps.Generator,
		splitter:  deps.Splitter,
		extractor: deps.Extractor,
		scrubber:  deps.Scrubber,
		retriever: retriever.New(deps.Embedder, deps.Index, cfg.Retrieval),
		logger:    deps.Logger.Named("rag"),
	}, nil
}

// OpenIndex loads the index persisted in dir, or returns an empty index when
// dir holds none. A corrupt snapshot is an error.
func OpenIndex(ctx context.Context, dir string, cfg vectorstore.Config, logger *zap.Logger) (*vectorstore.Index, error) {
	idx, err := vectorstore.Load(ctx, dir, cfg, logger)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return vectorstore.New(cfg, logger)
	}
	return idx, err
}

// NewSession returns a session that is READY when the index already holds
// entries, for example after loading a persisted snapshot.
func (s *Service) NewSession() *Session {
	sess := NewSession()
	if s.index.Len() > 0 {
		sess.markReady()
	}
	return sess
}

// Index returns the underlying index.
func (s *Service) Index() *vectorstore.Index { return s.index }

// Sources returns the document sources in the index, excluding the
// conversation marker.
func (s *Service) Sources() []string {
	all := s.index.ListSources()
	out := make([]string, 0, len(all))
	for _, src := range all {
		if src != SourceConversation {
			out = append(out, src)
		}
	}
	return out
}

// Digest returns the content digest used to skip documents already indexed.
func Digest(doc chunker.Document) string {
	h := sha256.New()
	for i, p := range doc.Pages {
		if i > 0 {
			h.Write([]byte{'\f'})
		}
		h.Write([]byte(p.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IngestFiles extracts each file and ingests the results as one batch.
func (s *Service) IngestFiles(ctx context.Context, sess *Session, paths []string) (*IngestReport, error) {
	docs := make([]chunker.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := s.extractor.ExtractDocument(ctx, p)
		if err != nil {
			documentsTotal.WithLabelValues("failed").Inc()
			return nil, &IngestFailedError{Source: filepath.Base(p), Stage: "extract", Err: err}
		}
		docs = append(docs, doc)
	}
	return s.Ingest(ctx, sess, docs)
}

// Ingest chunks, embeds and indexes docs, persists the index and marks sess
// READY. Documents whose content is already indexed are skipped. Any failure
// aborts the whole batch and leaves the index as it was, including a failed
// persist, whose entries are dropped again.
func (s *Service) Ingest(ctx context.Context, sess *Session, docs []chunker.Document) (report *IngestReport, err error) {
	ctx = logging.WithSessionID(ctx, sess.ID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(docs)))
	defer func() {
		if err != nil {
			documentsTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingest failed")
			s.logger.Error(ctx, "ingest failed", zap.Error(err))
		}
	}()

	if len(docs) == 0 {
		return nil, &IngestFailedError{Stage: "input", Err: errors.New("no documents given")}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	report = &IngestReport{}
	var (
		entries []vectorstore.Entry
		added   []string
	)
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		digest := Digest(doc)
		_, dup := seen[digest]
		if dup || s.index.HasDigest(digest) {
			report.Skipped++
			report.SkippedSources = append(report.SkippedSources, doc.SourceID)
			s.logger.Info(ctx, "skipping document already indexed", zap.String("source", doc.SourceID))
			continue
		}
		seen[digest] = struct{}{}

		docEntries, err := s.prepare(ctx, doc, digest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, docEntries...)
		added = append(added, doc.SourceID)
		report.Processed++
		report.ChunksAdded += len(docEntries)
	}

	if len(entries) > 0 {
		before := s.index.Len()
		if err := s.index.Insert(ctx, entries); err != nil {
			return nil, &IngestFailedError{Source: strings.Join(added, ", "), Stage: "index", Err: err}
		}
		if err := s.persist(ctx); err != nil {
			if rerr := s.index.Truncate(ctx, before); rerr != nil {
				s.logger.Error(ctx, "failed to roll back unpersisted batch", zap.Error(rerr))
			}
			return nil, &IngestFailedError{Source: strings.Join(added, ", "), Stage: "persist", Err: err}
		}
	}
	if s.index.Len() > 0 {
		sess.markReady()
	}

	report.Sources = s.Sources()
	documentsTotal.WithLabelValues("added").Add(float64(report.Processed))
	documentsTotal.WithLabelValues("skipped").Add(float64(report.Skipped))
	chunksTotal.Add(float64(report.ChunksAdded))
	span.SetAttributes(
		attribute.Int("processed", report.Processed),
		attribute.Int("skipped", report.Skipped),
		attribute.Int("chunks", report.ChunksAdded))
	s.logger.Info(ctx, "ingest complete",
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("chunks", report.ChunksAdded),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}

// prepare splits and embeds one document.
func (s *Service) prepare(ctx context.Context, doc chunker.Document, digest string) ([]vectorstore.Entry, error) {
	chunks, err := s.splitter.Split(doc)
	if err != nil {
		return nil, &IngestFailedError{Source: doc.SourceID, Stage: "split", Err: err}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &IngestFailedError{Source: doc.SourceID, Stage: "embed", Err: err}
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			vectorstore.MetaSource: doc.SourceID,
			vectorstore.MetaDigest: digest,
			vectorstore.MetaKind:   vectorstore.KindDocument,
			vectorstore.MetaSeq:    strconv.Itoa(c.SequenceIndex),
		}
		if c.Page > 0 {
			meta[vectorstore.MetaPage] = strconv.Itoa(c.Page)
		}
		entries[i] = vectorstore.Entry{Content: c.Content, Embedding: vecs[i], Metadata: meta}
	}
	return entries, nil
}

// Answer answers question from the indexed documents.
//
// On success the turn is appended to the session's current conversation and
// stored in the index as two chunks so that later questions can draw on it.
// On failure neither the conversation nor the index changes.
func (s *Service) Answer(ctx context.Context, sess *Session, question string) (ans *Answer, err error) {
	ctx = logging.WithSessionID(ctx, sess.ID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.Answer")
	defer span.End()
	defer func() {
		result := "ok"
		if err != nil {
			result = answerResult(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		questionsTotal.WithLabelValues(result).Inc()
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &retriever.InvalidArgumentError{Name: "question", Value: `""`}
	}
	if sess.State() != StateReady {
		return nil, &NotReadyError{SessionID: sess.ID}
	}

	results, err := s.retriever.Retrieve(ctx, question, s.cfg.K)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	span.SetAttributes(attribute.Int("retrieved", len(results)))

	prompt, err := generation.BuildPrompt(question, generation.JoinContext(retriever.Chunks(results)))
	if err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		var gf *generation.GenerationFailedError
		if !errors.As(err, &gf) {
			err = &generation.GenerationFailedError{Err: err}
		}
		s.logger.Warn(ctx, "answer generation failed", zap.Error(err))
		return nil, err
	}

	name := sess.record(question, text)
	ctx = logging.WithConversation(ctx, name)
	if err := s.remember(ctx, question, text); err != nil {
		s.logger.Warn(ctx, "failed to store conversation turn", zap.Error(err))
	}

	s.logger.Debug(ctx, "answered question", zap.Int("sources", len(results)))
	return &Answer{
		Question:     question,
		Text:         text,
		Conversation: name,
		Sources:      s.sources(results),
	}, nil
}

// remember indexes a turn as a question chunk and an answer chunk.
func (s *Service) remember(ctx context.Context, question, answer string) error {
	texts := []string{"User Question: " + question, "Assistant Answer: " + answer}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding turn: %w", err)
	}
	entries := make([]vectorstore.Entry, len(texts))
	for i, t := range texts {
		entries[i] = vectorstore.Entry{
			Content:   t,
			Embedding: vecs[i],
			Metadata: map[string]string{
				vectorstore.MetaSource: SourceConversation,
				vectorstore.MetaKind:   vectorstore.KindConversation,
			},
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.index.Insert(ctx, entries); err != nil {
		return fmt.Errorf("indexing turn: %w", err)
	}
	return s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) error {
	if s.cfg.IndexDir == "" {
		return nil
	}
	return s.index.Persist(ctx, s.cfg.IndexDir)
}

func (s *Service) sources(results []retriever.Result) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{
			Name:    r.Source,
			Page:    r.Page,
			Score:   r.Score,
			Preview: preview(r.Content, s.cfg.PreviewChars),
			Memory:  r.Memory,
		}
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func answerResult(err error) string {
	switch {
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, retriever.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, generation.ErrGenerationFailed):
		return "generation_failed"
	default:
		return "error"
	}
}
