package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, 10, config.Retrieval.VectorTopK)
	assert.InDelta(t, 0.3, config.Retrieval.WeightVector, 1e-9)
	assert.InDelta(t, 0.4, config.Retrieval.WeightRerank, 1e-9)
	assert.InDelta(t, 0.3, config.Retrieval.WeightIntent, 1e-9)
	assert.Equal(t, "30m", config.Session.TTL)
	assert.Equal(t, 30*time.Minute, config.SessionTTL())

	require.NoError(t, config.Validate())
}

func TestLoadFromFiles_MergeOrder(t *testing.T) {
	dir := t.TempDir()

	first := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(first, []byte(`
[server]
port = 9000

[retrieval]
vector_top_k = 20
`), 0644))

	second := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(second, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	// Later files override earlier ones; untouched keys keep defaults.
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, 20, config.Retrieval.VectorTopK)
	assert.Equal(t, "gemini", config.LLM.Provider)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/quaestor.toml")
	require.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("QUAESTOR_SERVER_PORT", "7777")
	t.Setenv("QUAESTOR_LLM_PROVIDER", "claude")
	t.Setenv("QUAESTOR_SESSION_TTL", "10m")
	t.Setenv("QUAESTOR_NEO4J_URI", "bolt://graph:7687")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "claude", config.LLM.Provider)
	assert.Equal(t, 10*time.Minute, config.SessionTTL())
	assert.Equal(t, "bolt://graph:7687", config.Neo4j.URI)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9999, "0.0.0.0")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.LLM.Provider = "openai" },
		},
		{
			name: "zero fusion weights",
			mutate: func(c *Config) {
				c.Retrieval.WeightVector = 0
				c.Retrieval.WeightRerank = 0
				c.Retrieval.WeightIntent = 0
			},
		},
		{
			name:   "bad session ttl",
			mutate: func(c *Config) { c.Session.TTL = "soon" },
		},
		{
			name:   "bad llm timeout",
			mutate: func(c *Config) { c.LLM.Timeout = "fast" },
		},
		{
			name:   "non-positive top k",
			mutate: func(c *Config) { c.Retrieval.VectorTopK = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
