package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default("/tmp/doclore-test")

	assert.Equal(t, "/tmp/doclore-test", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/doclore-test", "doclore.db"), cfg.Store.DatabasePath)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 0.4, cfg.Context.ChunkShare)
	assert.Equal(t, 2, cfg.Agent.MaxReplanAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "/tmp/d")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunking:\n  max_chunk_size: 500\nembedding:\n  provider: genai\n  genai_api_key: k\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap) // untouched fields keep defaults
	assert.Equal(t, "genai", cfg.Embedding.Provider)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [not a map"), 0o644))

	_, err := Load(path, "")
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  database_path: /from/file.db\n"), 0o644))
	t.Setenv("DOCLORE_DB_PATH", "/from/env.db")
	t.Setenv("DOCLORE_DEBUG", "true")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Store.DatabasePath)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestGeminiKeyFillsBothClients(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Embedding.GenAIAPIKey)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default("")
	cfg.Embedding.Provider = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "unsupported embedding provider")

	cfg = Default("")
	cfg.Embedding.Provider = "genai"
	cfg.Embedding.GenAIAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "requires an API key")

	cfg = Default("")
	cfg.Context.MaxTokens = 100
	cfg.Context.ReservedForResponse = 200
	assert.ErrorContains(t, cfg.Validate(), "must exceed")

	cfg = Default("")
	cfg.Chunking.MaxChunkSize = 0
	assert.ErrorContains(t, cfg.Validate(), "must be positive")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default("/tmp/rt")
	cfg.Chunking.MaxChunkSize = 1234
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 1234, loaded.Chunking.MaxChunkSize)
	assert.Equal(t, "/tmp/rt", loaded.DataDir)
}
