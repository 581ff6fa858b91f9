package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/vectorstore"

// Metadata keys written by the ingestion pipeline.
const (
	MetaSource = "source"
	MetaDigest = "digest"
	MetaKind   = "kind"
	MetaPage   = "page"
	MetaSeq    = "seq"
)

// Entry kinds stored under MetaKind.
const (
	KindDocument     = "document"
	KindConversation = "conversation"
)

// DefaultName is the logical index name used when none is configured.
const DefaultName = "combined_vector_db"

var errNoEmbeddingFunc = errors.New("index entries must carry precomputed embeddings")

// Config configures an Index.
type Config struct {
	// Name identifies the index in logs and metrics.
	Name string

	// Dimension is the expected vector length. Zero means the first insert
	// decides it.
	Dimension int

	// Compress gzips snapshots written by Persist.
	Compress bool
}

// Entry is one indexed chunk. Entries are immutable once inserted.
type Entry struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Source returns the entry's source metadata.
func (e Entry) Source() string { return e.Metadata[MetaSource] }

// Hit is a search result.
type Hit struct {
	Entry Entry
	// Score is the dot product of the normalized query and entry vectors.
	Score float32
	// Seq is the entry's insertion position, used as the tie-break.
	Seq int
}

// Filter selects entries during SearchFunc. A nil Filter matches everything.
type Filter func(Entry) bool

// Index is an append-only, in-memory vector index with explicit persistence.
//
// Entries are kept in insertion order alongside a chromem-go collection that
// serves similarity queries. All mutation is serialized; searches may run
// concurrently with each other.
type Index struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	digests map[string]struct{}
	dim     int
	db      *chromem.DB
	col     *chromem.Collection

	// persistMu serializes Persist calls so snapshots never interleave.
	persistMu sync.Mutex
}

// New creates an empty Index.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("dimension must be >= 0, got %d", cfg.Dimension)
	}

	idx := &Index{
		cfg:     cfg,
		logger:  logger.With(zap.String("index", cfg.Name)),
		byID:    make(map[string]int),
		digests: make(map[string]struct{}),
		dim:     cfg.Dimension,
	}
	if err := idx.resetCollection(); err != nil {
		return nil, err
	}
	entriesGauge.WithLabelValues(cfg.Name).Set(0)
	return idx, nil
}

// Name returns the index name.
func (x *Index) Name() string { return x.cfg.Name }

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimension returns the vector length, or 0 before the first insert.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Insert appends entries. It does not deduplicate. Either every entry is
// added or none is.
func (x *Index) Insert(ctx context.Context, entries []Entry) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "vectorstore.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("index", x.cfg.Name), attribute.Int("count", len(entries)))

	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	prepared, err := x.prepare(entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid entries")
		return err
	}

	if err := x.addToCollection(ctx, prepared); err != nil {
		// Keep the search structure consistent with the entry log.
		if rerr := x.rebuildLocked(ctx); rerr != nil {
			x.logger.Error("failed to rebuild search structure", zap.Error(rerr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("adding entries to collection: %w", err)
	}

	if x.dim == 0 {
		x.dim = len(prepared[0].Embedding)
	}
	for _, e := range prepared {
		x.byID[e.ID] = len(x.entries)
		x.entries = append(x.entries, e)
		if d := e.Metadata[MetaDigest]; d != "" {
			x.digests[d] = struct{}{}
		}
	}

	insertsTotal.WithLabelValues(x.cfg.Name).Add(float64(len(prepared)))
	entriesGauge.WithLabelValues(x.cfg.Name).Set(float64(len(x.entries)))
	x.logger.Debug("inserted entries", zap.Int("count", len(prepared)), zap.Int("total", len(x.entries)))
	return nil
}

// Truncate drops every entry past the first n, undoing later inserts. The
// search structure is rebuilt from the remaining entries.
func (x *Index) Truncate(ctx context.Context, n int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n < 0 || n > len(x.entries) {
		return fmt.Errorf("cannot truncate index of %d entries to %d", len(x.entries), n)
	}
	if n == len(x.entries) {
		return nil
	}

	for _, e := range x.entries[n:] {
		delete(x.byID, e.ID)
	}
	x.entries = x.entries[:n:n]
	x.digests = make(map[string]struct{})
	for _, e := range x.entries {
		if d := e.Metadata[MetaDigest]; d != "" {
			x.digests[d] = struct{}{}
		}
	}
	if n == 0 {
		x.dim = x.cfg.Dimension
	}

	entriesGauge.WithLabelValues(x.cfg.Name).Set(float64(len(x.entries)))
	x.logger.Debug("truncated entries", zap.Int("total", len(x.entries)))
	return x.rebuildLocked(ctx)
}

// prepare validates entries and returns normalized copies with ids assigned.
func (x *Index) prepare(entries []Entry) ([]Entry, error) {
	dim := x.dim
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("%w: entry %d has no embedding", ErrInvalidEntry, i)
		}
		if dim == 0 {
			dim = len(e.Embedding)
		}
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("%w: entry %d has dimension %d, index uses %d", ErrInvalidEntry, i, len(e.Embedding), dim)
		}
		if isZero(e.Embedding) {
			return nil, fmt.Errorf("%w: entry %d has a zero vector", ErrInvalidEntry, i)
		}

		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := x.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidEntry, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidEntry, id)
		}
		seen[id] = struct{}{}

		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		if !embeddings.IsNormalized(vec) {
			embeddings.Normalize(vec)
		}
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		out[i] = Entry{ID: id, Content: e.Content, Embedding: vec, Metadata: meta}
	}
	return out, nil
}

func (x *Index) addToCollection(ctx context.Context, entries []Entry) error {
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Metadata:  e.Metadata,
			Embedding: e.Embedding,
			Content:   e.Content,
		}
	}
	return x.col.AddDocuments(ctx, docs, runtime.NumCPU())
}

// resetCollection replaces the search structure with an empty one.
func (x *Index) resetCollection() error {
	x.db = chromem.NewDB()
	col, err := x.db.GetOrCreateCollection(x.cfg.Name, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", x.cfg.Name, err)
	}
	x.col = col
	return nil
}

// rebuildLocked recreates the search structure from the entry log.
func (x *Index) rebuildLocked(ctx context.Context) error {
	if err := x.resetCollection(); err != nil {
		return err
	}
	if len(x.entries) == 0 {
		return nil
	}
	return x.addToCollection(ctx, x.entries)
}

// Search returns the k entries most similar to vec, by descending score with
// ties broken by insertion order. k larger than the index returns every entry.
func (x *Index) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	return x.SearchFunc(ctx, vec, k, nil)
}

// SearchFunc is Search restricted to entries accepted by filter. An index
// with entries that the filter rejects entirely yields no hits and no error.
func (x *Index) SearchFunc(ctx context.Context, vec []float32, k int, filter Filter) ([]Hit, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "vectorstore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("index", x.cfg.Name), attribute.Int("k", k))

	hits, err := x.search(ctx, vec, k, filter)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrEmptyIndex) {
			result = "empty"
		}
		searchesTotal.WithLabelValues(x.cfg.Name, result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, err
	}
	searchesTotal.WithLabelValues(x.cfg.Name, "ok").Inc()
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

func (x *Index) search(ctx context.Context, vec []float32, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.entries)
	if n == 0 {
		return nil, &EmptyIndexError{Name: x.cfg.Name}
	}
	if len(vec) != x.dim {
		return nil, &DimensionMismatchError{Want: x.dim, Got: len(vec)}
	}
	if isZero(vec) {
		return nil, errors.New("query vector is zero")
	}

	// The collection orders by score only, so rank every entry and apply the
	// insertion-order tie-break here.
	results, err := x.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		seq, ok := x.byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("collection returned unknown id %q", r.ID)
		}
		e := x.entries[seq]
		if filter != nil && !filter(e) {
			continue
		}
		hits = append(hits, Hit{Entry: e, Score: r.Similarity, Seq: seq})
	}
	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SortHits orders hits by descending score, then ascending insertion order.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})
}

// ListSources returns the distinct source values across all entries, sorted.
func (x *Index) ListSources() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := make(map[string]struct{})
	for _, e := range x.entries {
		if s := e.Source(); s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasDigest reports whether any entry carries the given content digest.
func (x *Index) HasDigest(digest string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.digests[digest]
	return ok
}

// Entries returns a copy of the entry log in insertion order.
func (x *Index) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
