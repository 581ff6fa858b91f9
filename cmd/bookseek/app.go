package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/config"
	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/logging"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/retriever"
	"github.com/fyrsmithlabs/bookseek/internal/sanitize"
	"github.com/fyrsmithlabs/bookseek/internal/secrets"
	"github.com/fyrsmithlabs/bookseek/internal/telemetry"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	embedder  embeddings.Provider
	svc       *rag.Service
}

type appOptions struct {
	// requireGenerator fails startup when no API key is configured.
	requireGenerator bool
	// quiet logs errors only, for full-screen modes.
	quiet bool
}

// loadConfig loads the dotenv file, then the YAML file and environment.
func loadConfig() (*config.Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// loadDotEnv loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// newApp wires configuration, logging, telemetry, embeddings, the index and
// the answer generator into a rag.Service.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		if opts.requireGenerator || !errors.Is(err, config.ErrMissingAPIKey) {
			return nil, err
		}
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if opts.quiet {
		logCfg.Level = zapcore.ErrorLevel
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), zl)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	zl := a.logger.Underlying()

	emb, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		CacheDir:  cfg.Embeddings.CacheDir,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		Dimension: cfg.Embeddings.Dimension,
	}, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	a.embedder = emb

	indexName := sanitize.Identifier(cfg.Index.Name)
	indexDir := filepath.Join(cfg.Index.Dir, indexName)
	idx, err := rag.OpenIndex(ctx, indexDir, vectorstore.Config{
		Name:      indexName,
		Dimension: emb.Dimension(),
		Compress:  cfg.Index.Compress,
	}, zl)
	if err != nil {
		return err
	}

	gen, err := newGenerator(cfg.OpenRouter, zl)
	if err != nil {
		return err
	}

	splitter, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
		Separators:   cfg.Chunker.Separators,
	})
	if err != nil {
		return err
	}

	scrubCfg := secrets.DefaultConfig()
	scrubCfg.Enabled = cfg.Secrets.Enabled
	scrubCfg.Literals = []string{cfg.OpenRouter.APIKey.Value(), cfg.Embeddings.APIKey.Value()}
	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	a.svc, err = rag.NewService(rag.Deps{
		Embedder:  emb,
		Index:     idx,
		Generator: gen,
		Splitter:  splitter,
		Scrubber:  scrubber,
		Logger:    a.logger,
	}, rag.Config{
		IndexDir: indexDir,
		K:        cfg.Retrieval.K,
		Retrieval: retriever.Config{
			IncludeMemory: cfg.Retrieval.IncludeMemory,
			MemoryResults: cfg.Retrieval.MemoryResults,
		},
	})
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "bookseek ready",
		zap.String("index", indexDir),
		zap.Int("entries", idx.Len()),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("model", cfg.OpenRouter.Model))
	return nil
}

// newGenerator returns the chat-completions client, or a generator that
// reports the missing key when none is configured.
func newGenerator(oc config.OpenRouterConfig, logger *zap.Logger) (rag.Generator, error) {
	if !oc.APIKey.IsSet() {
		return missingKeyGenerator{}, nil
	}
	client, err := generation.NewClient(generation.Config{
		BaseURL:        oc.BaseURL,
		APIKey:         oc.APIKey.Value(),
		Model:          oc.Model,
		Temperature:    oc.Temperature,
		MaxTokens:      oc.MaxTokens,
		Stop:           oc.Stop,
		Timeout:        oc.Timeout.Duration(),
		AttemptTimeout: oc.AttemptTimeout.Duration(),
		MaxRetries:     oc.MaxRetries,
		RateLimit:      oc.RateLimit,
		SiteURL:        oc.SiteURL,
		SiteName:       oc.SiteName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize answer generation: %w", err)
	}
	return client, nil
}

type missingKeyGenerator struct{}

func (missingKeyGenerator) Generate(context.Context, string) (string, error) {
	return "", config.ErrMissingAPIKey
}

// Close releases the embedder and flushes telemetry and logs.
func (a *app) Close() {
	ctx := context.Background()
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn(ctx, "failed to close embedder", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// userError converts err into its scrubbed, hinted message.
func (a *app) userError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(a.svc.UserMessage(err))
}
