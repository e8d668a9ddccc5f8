package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"port": 8000,
		"database": {"host": "localhost", "user": "mrag", "dbname": "mrag"},
		"embedding": {"provider": "openai", "model": "text-embedding-3-small"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.VectorStore.Type)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	require.Equal(t, DefaultOverlap, cfg.Chunking.Overlap)
	require.Equal(t, DefaultSearchLimit, cfg.Search.Limit)
	require.InDelta(t, DefaultSimilarityThreshold, cfg.Search.SimilarityThreshold, 1e-9)
	require.Equal(t, 1, cfg.Embedding.Concurrency)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.FileStore.Type)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
port: 9000
vector_store:
  type: memory
embedding:
  provider: gemini
  model: gemini-embedding-001
  dimension: 768
chunking:
  chunk_size: 300
  overlap: 30
search:
  similarity_threshold: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "memory", cfg.VectorStore.Type)
	require.Equal(t, 768, cfg.Embedding.Dimension)
	require.Equal(t, 300, cfg.Chunking.ChunkSize)
	require.InDelta(t, 0.5, cfg.Search.SimilarityThreshold, 1e-9)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing port":      `{"vector_store":{"type":"memory"},"embedding":{"provider":"openai","model":"m"}}`,
		"missing database":  `{"port":1,"embedding":{"provider":"openai","model":"m"}}`,
		"missing provider":  `{"port":1,"vector_store":{"type":"memory"},"embedding":{"model":"m"}}`,
		"overlap too large": `{"port":1,"vector_store":{"type":"memory"},"embedding":{"provider":"openai","model":"m"},"chunking":{"chunk_size":10,"overlap":10}}`,
		"bad threshold":     `{"port":1,"vector_store":{"type":"memory"},"embedding":{"provider":"openai","model":"m"},"search":{"similarity_threshold":1.5}}`,
		"bad store":         `{"port":1,"vector_store":{"type":"qdrant"},"embedding":{"provider":"openai","model":"m"}}`,
		"db cache memory":   `{"port":1,"vector_store":{"type":"memory"},"embedding":{"provider":"openai","model":"m"},"embed_cache":{"enable_db":true}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", content))
			require.Error(t, err)
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("MRAG_TEST_KEY", "from-env")
	out := ResolveSecrets(map[string]interface{}{"api_key_env": "MRAG_TEST_KEY"})
	require.Equal(t, "from-env", out["api_key"])

	out = ResolveSecrets(map[string]interface{}{"api_key": "inline", "api_key_env": "MRAG_TEST_KEY"})
	require.Equal(t, "inline", out["api_key"])

	require.Nil(t, ResolveSecrets(nil))
}
