package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 150, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, []string{"\n\n", "\n", " ", ""}, cfg.Chunker.Separators)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, "openai/gpt-3.5-turbo", cfg.OpenRouter.Model)
	assert.InDelta(t, 0.1, cfg.OpenRouter.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.OpenRouter.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.OpenRouter.Timeout.Duration())
	assert.Equal(t, 20*time.Second, cfg.OpenRouter.AttemptTimeout.Duration())
	assert.Equal(t, []string{}, cfg.OpenRouter.Stop)
	assert.Equal(t, "vector_dbs", cfg.Index.Dir)
	assert.Equal(t, "combined_vector_db", cfg.Index.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
		isKey   bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.OpenRouter.APIKey = "" }, isKey: true},
		{name: "overlap not below size", mutate: func(c *Config) { c.Chunker.ChunkOverlap = 1000 }, wantErr: "chunk_overlap"},
		{name: "zero chunk size", mutate: func(c *Config) { c.Chunker.ChunkSize = 0 }, wantErr: "chunk_size"},
		{name: "bad provider", mutate: func(c *Config) { c.Embeddings.Provider = "word2vec" }, wantErr: "embeddings.provider"},
		{name: "non-positive k", mutate: func(c *Config) { c.Retrieval.K = 0 }, wantErr: "retrieval.k"},
		{name: "bad base url", mutate: func(c *Config) { c.OpenRouter.BaseURL = "not a url" }, wantErr: "base_url"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server port"},
		{name: "negative attempt timeout", mutate: func(c *Config) { c.OpenRouter.AttemptTimeout = Duration(-time.Second) }, wantErr: "attempt_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OpenRouter.APIKey = "sk-or-test"
			tt.mutate(cfg)

			err := cfg.Validate()
			switch {
			case tt.isKey:
				assert.ErrorIs(t, err, ErrMissingAPIKey)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadWithFile_YAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
openrouter:
  model: meta-llama/llama-3-8b-instruct
  timeout: 45s
  attempt_timeout: 15s
chunker:
  chunk_size: 500
  chunk_overlap: 50
  separators: ["\n", ""]
index:
  dir: /tmp/indexes
retrieval:
  include_memory: false
`, 0600)

	t.Setenv("OPENROUTER_API_KEY", "sk-or-from-env")
	t.Setenv("OPENROUTER_SITE_NAME", "BookSeek")
	t.Setenv("RETRIEVAL_K", "5")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "meta-llama/llama-3-8b-instruct", cfg.OpenRouter.Model)
	assert.Equal(t, 45*time.Second, cfg.OpenRouter.Timeout.Duration())
	assert.Equal(t, 15*time.Second, cfg.OpenRouter.AttemptTimeout.Duration())
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, []string{"\n", ""}, cfg.Chunker.Separators)
	assert.Equal(t, "/tmp/indexes", cfg.Index.Dir)
	assert.Equal(t, "combined_vector_db", cfg.Index.Name, "unset keys keep defaults")
	assert.False(t, cfg.Retrieval.IncludeMemory)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, "sk-or-from-env", cfg.OpenRouter.APIKey.Value())
	assert.Equal(t, "BookSeek", cfg.OpenRouter.SiteName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default().Chunker, cfg.Chunker)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	path := writeConfig(t, "index:\n  dir: x\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "openrouter.api_key", envKey("OPENROUTER_API_KEY"))
	assert.Equal(t, "index.dir", envKey("INDEX_DIR"))
	assert.Equal(t, "chunker.chunk_overlap", envKey("CHUNKER_CHUNK_OVERLAP"))
	assert.Equal(t, "path", envKey("PATH"))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("sk-or-v1-abcdef")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "abcdef")

	out, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(out))

	assert.Equal(t, "sk-or-v1-abcdef", s.Value())
	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
