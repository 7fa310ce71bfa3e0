package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "AI_PROVIDER", "VECTOR_STORE", "SYNC_INITIAL_DELAY", "SYNC_INTERVAL",
		"OLLAMA_EMBEDDING_DIMENSIONS", "RAG_FALLBACK_URL", "RAG_TOP_K", "RAG_REQUEST_TIMEOUT", "OTEL_ENABLED", "OTEL_SERVICE_NAME")

	cfg := Load()

	assert.Equal(t, AIProviderOllama, cfg.Ai.Provider)
	assert.Equal(t, VectorStorePgVector, cfg.VectorStore.Provider)
	assert.Equal(t, 10*time.Second, cfg.Sync.InitialDelay)
	assert.Equal(t, 4*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 768, cfg.Ai.OllamaEmbeddingDimensions)
	assert.Equal(t, DefaultFallbackURL, cfg.Rag.FallbackURL)
	assert.Equal(t, 10, cfg.Rag.TopK)
	assert.Equal(t, 90*time.Second, cfg.Rag.RequestTimeout)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "docassist-be", cfg.Tracing.ServiceName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("VECTOR_STORE", "QDRANT")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("SYNC_PURGE_REMOVED", "true")
	t.Setenv("AI_RATE_LIMIT_RPS", "2.5")
	t.Setenv("QDRANT_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, AIProviderGemini, cfg.Ai.Provider)
	assert.Equal(t, VectorStoreQdrant, cfg.VectorStore.Provider)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.True(t, cfg.Sync.PurgeRemoved)
	assert.InDelta(t, 2.5, cfg.Ai.RateLimitRPS, 1e-9)
	assert.Equal(t, 6334, cfg.VectorStore.QdrantPort, "invalid ints fall back to the default")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:    DatabaseConfig{VectorConnection: "postgres://vec", DMSConnection: "postgres://dms"},
			Auth:        AuthConfig{JwtSecret: "secret"},
			Ai:          AIConfig{Provider: AIProviderOllama},
			VectorStore: VectorStoreConfig{Provider: VectorStorePgVector},
			Sync:        SyncConfig{Enabled: true, Interval: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown ai provider", mutate: func(c *Config) { c.Ai.Provider = "bard" }, wantErr: "unknown AI provider"},
		{name: "unknown vector store", mutate: func(c *Config) { c.VectorStore.Provider = "faiss" }, wantErr: "unknown vector store"},
		{name: "pgvector without dsn", mutate: func(c *Config) { c.Database.VectorConnection = "" }, wantErr: "VECTOR_DB_CONNECTION_STRING"},
		{name: "memory store without dsn", mutate: func(c *Config) {
			c.VectorStore.Provider = VectorStoreMemory
			c.Database.VectorConnection = ""
		}},
		{name: "sync without dms", mutate: func(c *Config) { c.Database.DMSConnection = "" }, wantErr: "DMS_DB_CONNECTION_STRING"},
		{name: "sync disabled without dms", mutate: func(c *Config) {
			c.Sync.Enabled = false
			c.Database.DMSConnection = ""
		}},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JwtSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "zero interval", mutate: func(c *Config) { c.Sync.Interval = 0 }, wantErr: "SYNC_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
