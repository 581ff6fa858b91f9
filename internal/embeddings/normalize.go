package embeddings

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/embeddings"

// normTolerance is the allowed deviation from unit length.
const normTolerance = 1e-4

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// IsNormalized reports whether v has unit length within tolerance.
func IsNormalized(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Abs(math.Sqrt(sum)-1) <= normTolerance
}

// normalizing wraps a Provider so that every returned vector is unit length
// and every vector has the same dimension.
type normalizing struct {
	inner   Provider
	model   string
	metrics *Metrics
	dim     atomic.Int64
}

// Wrap returns p wrapped with normalization, dimension checks and metrics.
// metrics may be nil.
func Wrap(p Provider, model string, metrics *Metrics) Provider {
	n := &normalizing{inner: p, model: model, metrics: metrics}
	n.dim.Store(int64(p.Dimension()))
	return n
}

func (n *normalizing) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "embeddings.EmbedDocuments")
	defer span.End()
	span.SetAttributes(attribute.String("model", n.model), attribute.Int("batch_size", len(texts)))

	start := time.Now()
	vecs, err := n.inner.EmbedDocuments(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	if err == nil {
		for _, v := range vecs {
			if err = n.finish(v); err != nil {
				break
			}
		}
	}
	n.record(ctx, "embed_documents", start, len(texts), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}
	return vecs, nil
}

func (n *normalizing) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "embeddings.EmbedQuery")
	defer span.End()
	span.SetAttributes(attribute.String("model", n.model))

	start := time.Now()
	vec, err := n.inner.EmbedQuery(ctx, text)
	if err == nil {
		err = n.finish(vec)
	}
	n.record(ctx, "embed_query", start, 0, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}
	return vec, nil
}

// finish normalizes v and checks its dimension against earlier vectors.
func (n *normalizing) finish(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: provider returned an empty vector", ErrEmbeddingFailed)
	}
	want := n.dim.Load()
	if want == 0 {
		n.dim.CompareAndSwap(0, int64(len(v)))
		want = n.dim.Load()
	}
	if int64(len(v)) != want {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrEmbeddingFailed, len(v), want)
	}
	if !IsNormalized(v) {
		Normalize(v)
	}
	return nil
}

func (n *normalizing) record(ctx context.Context, op string, start time.Time, batch int, err error) {
	if n.metrics != nil {
		n.metrics.RecordGeneration(ctx, n.model, op, time.Since(start), batch, err)
	}
}

func (n *normalizing) Dimension() int {
	return int(n.dim.Load())
}

func (n *normalizing) Close() error {
	return n.inner.Close()
}
