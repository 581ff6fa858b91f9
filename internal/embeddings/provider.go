// Package embeddings maps text to L2-normalized vectors.
//
// Providers are wrapped by NewProvider so that every vector leaving this
// package has unit length and a consistent dimension, which lets the vector
// index score by plain dot product.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("empty embedding input")

	// ErrEmbeddingFailed wraps provider failures.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidConfig is returned for unknown providers or models.
	ErrInvalidConfig = errors.New("invalid embeddings config")
)

// Embedder turns text into vectors. Documents and queries are separate
// calls because some models prefix them differently.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder that owns resources.
type Provider interface {
	Embedder
	// Dimension returns the vector length, or 0 if not yet known.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" (local ONNX), "openai" (remote, OpenAI-compatible)
	// or "hash" (offline lexical hashing).
	Provider string
	Model    string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
	// BaseURL and APIKey configure the remote endpoint (openai only).
	BaseURL string
	APIKey  string
	// Dimension overrides the vector length for remote and hash providers.
	Dimension int
}

// NewProvider creates the configured provider, wrapped so that its output is
// normalized, dimension-checked and instrumented.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		inner Provider
		err   error
	)
	switch cfg.Provider {
	case "fastembed", "":
		inner, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		inner, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
		})
	case "hash":
		inner = NewHashEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = cfg.Provider
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Int("dimension", inner.Dimension()))

	return Wrap(inner, model, NewMetrics(logger)), nil
}
