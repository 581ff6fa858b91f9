// Package config provides configuration loading for bookseek.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrMissingAPIKey is returned by Validate when no answer-generation API key is configured.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

// Config holds the complete bookseek configuration.
type Config struct {
	OpenRouter OpenRouterConfig `koanf:"openrouter"`
	Chunker    ChunkerConfig    `koanf:"chunker"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Index      IndexConfig      `koanf:"index"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Secrets    SecretsConfig    `koanf:"secrets"`
}

// OpenRouterConfig configures the chat-completions endpoint used to generate answers.
type OpenRouterConfig struct {
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Stop        []string `koanf:"stop"`
	// Timeout bounds one answer, retries included.
	Timeout Duration `koanf:"timeout"`
	// AttemptTimeout bounds each request to the endpoint.
	AttemptTimeout Duration `koanf:"attempt_timeout"`
	MaxRetries     int      `koanf:"max_retries"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	SiteURL   string  `koanf:"site_url"`
	SiteName  string  `koanf:"site_name"`
}

// ChunkerConfig holds text splitting parameters.
type ChunkerConfig struct {
	ChunkSize    int      `koanf:"chunk_size"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	Separators   []string `koanf:"separators"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // "fastembed", "openai" or "hash"
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	// Dimension overrides the vector length for the openai and hash providers.
	Dimension int `koanf:"dimension"`
}

// IndexConfig locates the persisted vector index.
type IndexConfig struct {
	Dir      string `koanf:"dir"`
	Name     string `koanf:"name"`
	Compress bool   `koanf:"compress"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	K             int  `koanf:"k"`
	IncludeMemory bool `koanf:"include_memory"`
	MemoryResults int  `koanf:"memory_results"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the subset of logging settings exposed through the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed through the config file.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// SecretsConfig toggles secret scrubbing of user-visible messages.
type SecretsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		OpenRouter: OpenRouterConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openai/gpt-3.5-turbo",
			Temperature:    0.1,
			MaxTokens:      1024,
			Timeout:        Duration(60 * time.Second),
			AttemptTimeout: Duration(20 * time.Second),
			MaxRetries:     2,
			Stop:           []string{},
			RateLimit:      2,
		},
		Chunker: ChunkerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 150,
			Separators:   []string{"\n\n", "\n", " ", ""},
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "sentence-transformers/all-MiniLM-L6-v2",
		},
		Index: IndexConfig{
			Dir:  "vector_dbs",
			Name: "combined_vector_db",
		},
		Retrieval: RetrievalConfig{
			K:             3,
			IncludeMemory: true,
			MemoryResults: 1,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8501,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Secrets: SecretsConfig{
			Enabled: true,
		},
	}
}

// Validate validates the configuration.
//
// A missing API key is reported as ErrMissingAPIKey so callers can print a
// targeted hint at startup.
func (c *Config) Validate() error {
	if !c.OpenRouter.APIKey.IsSet() {
		return ErrMissingAPIKey
	}
	if _, err := url.ParseRequestURI(c.OpenRouter.BaseURL); err != nil {
		return fmt.Errorf("invalid openrouter.base_url %q: %w", c.OpenRouter.BaseURL, err)
	}
	if c.OpenRouter.MaxTokens <= 0 {
		return fmt.Errorf("openrouter.max_tokens must be positive, got %d", c.OpenRouter.MaxTokens)
	}
	if c.OpenRouter.Timeout.Duration() <= 0 {
		return errors.New("openrouter.timeout must be positive")
	}
	if c.OpenRouter.AttemptTimeout.Duration() < 0 {
		return errors.New("openrouter.attempt_timeout must be >= 0")
	}
	if c.OpenRouter.MaxRetries < 0 {
		return fmt.Errorf("openrouter.max_retries must be >= 0, got %d", c.OpenRouter.MaxRetries)
	}

	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai", "hash":
	default:
		return fmt.Errorf("unsupported embeddings.provider %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "openai" && c.Embeddings.BaseURL == "" {
		return errors.New("embeddings.base_url is required for the openai provider")
	}
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("embeddings.dimension must be >= 0, got %d", c.Embeddings.Dimension)
	}

	if c.Index.Dir == "" || c.Index.Name == "" {
		return errors.New("index.dir and index.name are required")
	}

	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.MemoryResults < 0 {
		return fmt.Errorf("retrieval.memory_results must be >= 0, got %d", c.Retrieval.MemoryResults)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	return nil
}
