package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1000, cfg.Query.MaxLength)
	assert.Equal(t, 2, cfg.Query.MaxSecondaries)

	assert.Equal(t, 12, cfg.Search.PerCallTopK)
	assert.Equal(t, 15, cfg.Search.FusedLimit)
	assert.Equal(t, 10*time.Second, cfg.Search.CallTimeout)
	assert.Equal(t, 1.0, cfg.Search.PrimaryWeight)
	assert.Equal(t, 0.5, cfg.Search.SecondaryWeight)
	assert.Equal(t, 0.6, cfg.Search.KeywordFallbackScore)

	require.Len(t, cfg.Stores, 2)
	assert.Equal(t, "wiring-regulations", cfg.Stores[0].Name)
	assert.Equal(t, 0.95, cfg.Stores[0].Weight)
	assert.Equal(t, "guidance-notes", cfg.Stores[1].Name)
	assert.Equal(t, 0.90, cfg.Stores[1].Weight)

	assert.Equal(t, "", cfg.Embeddings.Provider) // Empty triggers auto-detection
	assert.Equal(t, 8000, cfg.Embeddings.MaxInputBytes)

	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, 15, cfg.Rerank.BatchSize)
	assert.Equal(t, 55*time.Second, cfg.Rerank.Timeout)
	assert.Equal(t, 600, cfg.Rerank.MaxExcerptChars)
	assert.Equal(t, 0.6, cfg.Rerank.HybridBlend)
	assert.Equal(t, 0.4, cfg.Rerank.OracleBlend)

	assert.Equal(t, 0.35, cfg.Confidence.CrossEncoderWeight)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)

	assert.Equal(t, 0.9, cfg.Dedupe.JaccardThreshold)
	assert.Equal(t, 30, cfg.Dedupe.SectionPrefixLen)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestDefaults_Validate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestLoad_ProjectConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
version: 1
search:
  fused_limit: 10
  secondary_weight: 0.4
rerank:
  model: llama3.2
  batch_size: 8
server:
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".regsearch.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.FusedLimit)
	assert.Equal(t, 0.4, cfg.Search.SecondaryWeight)
	assert.Equal(t, "llama3.2", cfg.Rerank.Model)
	assert.Equal(t, 8, cfg.Rerank.BatchSize)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	// Untouched values keep defaults
	assert.Equal(t, 12, cfg.Search.PerCallTopK)
	assert.Equal(t, 1.0, cfg.Search.PrimaryWeight)
}

func TestLoad_StoresReplaceDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
stores:
  - name: site-docs
    path: /tmp/site-docs
    weight: 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".regsearch.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, cfg.Stores, 1)
	assert.Equal(t, "site-docs", cfg.Stores[0].Name)
	assert.Equal(t, 0.8, cfg.Stores[0].Weight)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Search.FusedLimit)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".regsearch.yaml"), []byte("search: [not a map"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REGSEARCH_SECONDARY_WEIGHT", "0.3")
	t.Setenv("REGSEARCH_RERANK_ENABLED", "false")
	t.Setenv("REGSEARCH_CACHE_BACKEND", "memory")
	t.Setenv("REGSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Search.SecondaryWeight)
	assert.False(t, cfg.Rerank.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("REGSEARCH_PRIMARY_WEIGHT", "2.5")
	t.Setenv("REGSEARCH_FUSED_LIMIT", "-3")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.Search.PrimaryWeight)
	assert.Equal(t, 15, cfg.Search.FusedLimit)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "zero max length",
			mutate: func(c *Config) { c.Query.MaxLength = -1 },
			want:   "query.max_length",
		},
		{
			name:   "primary weight out of range",
			mutate: func(c *Config) { c.Search.PrimaryWeight = 1.5 },
			want:   "primary_weight",
		},
		{
			name:   "no stores",
			mutate: func(c *Config) { c.Stores = nil },
			want:   "at least one store",
		},
		{
			name: "duplicate store names",
			mutate: func(c *Config) {
				c.Stores = append(c.Stores, StoreConfig{Name: "wiring-regulations", Weight: 0.5})
			},
			want: "duplicate store name",
		},
		{
			name:   "bad provider",
			mutate: func(c *Config) { c.Embeddings.Provider = "openai" },
			want:   "embeddings.provider",
		},
		{
			name: "blend weights do not sum to one",
			mutate: func(c *Config) {
				c.Rerank.HybridBlend = 0.8
				c.Rerank.OracleBlend = 0.4
			},
			want: "must equal 1.0",
		},
		{
			name:   "confidence weights do not sum to one",
			mutate: func(c *Config) { c.Confidence.CrossEncoderWeight = 0.9 },
			want:   "confidence weights",
		},
		{
			name:   "bad cache backend",
			mutate: func(c *Config) { c.Cache.Backend = "redis" },
			want:   "cache.backend",
		},
		{
			name:   "jaccard threshold out of range",
			mutate: func(c *Config) { c.Dedupe.JaccardThreshold = 1.2 },
			want:   "jaccard_threshold",
		},
		{
			name:   "bad transport",
			mutate: func(c *Config) { c.Server.Transport = "grpc" },
			want:   "server.transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStoreWeight(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 0.95, cfg.StoreWeight("wiring-regulations"))
	assert.Equal(t, 0.0, cfg.StoreWeight("unknown"))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Search.FusedLimit = 7
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 7, loaded.Search.FusedLimit)
}
