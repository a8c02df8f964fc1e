// Package config loads and validates regsearch configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/regsearch/config.yaml)
//  3. Project config (.regsearch.yaml in the working directory)
//  4. Environment variables (REGSEARCH_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete regsearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Stores     []StoreConfig    `yaml:"stores" json:"stores"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Confidence ConfidenceConfig `yaml:"confidence" json:"confidence"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Dedupe     DedupeConfig     `yaml:"dedupe" json:"dedupe"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// QueryConfig configures query validation and decomposition.
type QueryConfig struct {
	// MaxLength is the maximum accepted query length in characters.
	MaxLength int `yaml:"max_length" json:"max_length"`
	// MaxSecondaries caps how many secondary search calls a decomposed
	// query may fan out to.
	MaxSecondaries int `yaml:"max_secondaries" json:"max_secondaries"`
}

// SearchConfig configures the fan-out and fusion stage.
type SearchConfig struct {
	// PerCallTopK is how many candidates each search call requests.
	PerCallTopK int `yaml:"per_call_top_k" json:"per_call_top_k"`
	// FusedLimit caps the candidate list after fusion.
	FusedLimit int `yaml:"fused_limit" json:"fused_limit"`
	// CallTimeout bounds each individual search call.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`
	// PrimaryWeight is the fusion weight for the primary search call.
	PrimaryWeight float64 `yaml:"primary_weight" json:"primary_weight"`
	// SecondaryWeight is the fusion weight for each secondary call.
	SecondaryWeight float64 `yaml:"secondary_weight" json:"secondary_weight"`
	// KeywordFallbackScore is the flat hybrid score assigned to
	// keyword-only matches when the vector side is unavailable.
	KeywordFallbackScore float64 `yaml:"keyword_fallback_score" json:"keyword_fallback_score"`
}

// StoreConfig names a regulation store and its trust weight.
// Store weights scale hybrid scores before fusion so that results from
// more authoritative collections rank ahead of supplementary material.
type StoreConfig struct {
	Name   string  `yaml:"name" json:"name"`
	Path   string  `yaml:"path" json:"path"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty for
	// auto-detection (ollama if reachable, static otherwise).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// MaxInputBytes truncates embedding input to this many bytes.
	MaxInputBytes int `yaml:"max_input_bytes" json:"max_input_bytes"`
	// CacheSize is the LRU embedding cache capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankConfig configures the LLM cross-encoder reranking stage.
type RerankConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	// BatchSize is how many candidates are scored per LLM call.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Timeout bounds a single scoring call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxExcerptChars truncates candidate content sent to the model.
	MaxExcerptChars int `yaml:"max_excerpt_chars" json:"max_excerpt_chars"`
	// HybridBlend and OracleBlend combine the retrieval score with the
	// model relevance score. They must sum to 1.0.
	HybridBlend float64 `yaml:"hybrid_blend" json:"hybrid_blend"`
	OracleBlend float64 `yaml:"oracle_blend" json:"oracle_blend"`
}

// ConfidenceConfig holds the weighted factors of the confidence score.
// The weights must sum to 1.0.
type ConfidenceConfig struct {
	SimilarityWeight   float64 `yaml:"similarity_weight" json:"similarity_weight"`
	KeywordWeight      float64 `yaml:"keyword_weight" json:"keyword_weight"`
	CrossEncoderWeight float64 `yaml:"cross_encoder_weight" json:"cross_encoder_weight"`
	AuthorityWeight    float64 `yaml:"authority_weight" json:"authority_weight"`
	ImportanceWeight   float64 `yaml:"importance_weight" json:"importance_weight"`
}

// CacheConfig configures the semantic response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Backend selects the cache store: "sqlite" (default) or "memory".
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	// MaxEntries bounds the memory backend.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// SweepInterval is how often expired rows are purged. Zero disables
	// the background sweeper; expiry is still enforced lazily on reads.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DedupeConfig configures duplicate collapsing.
type DedupeConfig struct {
	// JaccardThreshold is the token overlap above which two excerpts of
	// the same regulation count as near-duplicates.
	JaccardThreshold float64 `yaml:"jaccard_threshold" json:"jaccard_threshold"`
	// SectionPrefixLen is how many leading section characters form the
	// exact-duplicate key.
	SectionPrefixLen int `yaml:"section_prefix_len" json:"section_prefix_len"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Query: QueryConfig{
			MaxLength:      1000,
			MaxSecondaries: 2,
		},
		Search: SearchConfig{
			PerCallTopK:          12,
			FusedLimit:           15,
			CallTimeout:          10 * time.Second,
			PrimaryWeight:        1.0,
			SecondaryWeight:      0.5,
			KeywordFallbackScore: 0.6,
		},
		Stores: []StoreConfig{
			{Name: "wiring-regulations", Path: defaultStorePath("wiring-regulations"), Weight: 0.95},
			{Name: "guidance-notes", Path: defaultStorePath("guidance-notes"), Weight: 0.90},
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "", // Auto-detect: Ollama if reachable, static otherwise
			Model:         "nomic-embed-text",
			Dimensions:    768,
			OllamaHost:    "", // Empty uses http://localhost:11434
			MaxInputBytes: 8000,
			CacheSize:     2048,
		},
		Rerank: RerankConfig{
			Enabled:         true,
			Endpoint:        "", // Empty uses the Ollama host
			Model:           "qwen3:4b",
			BatchSize:       15,
			Timeout:         55 * time.Second,
			MaxExcerptChars: 600,
			HybridBlend:     0.6,
			OracleBlend:     0.4,
		},
		Confidence: ConfidenceConfig{
			SimilarityWeight:   0.25,
			KeywordWeight:      0.20,
			CrossEncoderWeight: 0.35,
			AuthorityWeight:    0.10,
			ImportanceWeight:   0.10,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "sqlite",
			Path:          filepath.Join(DefaultDataDir(), "cache.db"),
			MaxEntries:    4096,
			SweepInterval: 15 * time.Minute,
		},
		Dedupe: DedupeConfig{
			JaccardThreshold: 0.9,
			SectionPrefixLen: 30,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns the default data directory (~/.regsearch).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".regsearch")
	}
	return filepath.Join(home, ".regsearch")
}

func defaultStorePath(name string) string {
	return filepath.Join(DefaultDataDir(), "stores", name)
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/regsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/regsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "regsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "regsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "regsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration starting from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .regsearch.yaml or .regsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".regsearch.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".regsearch.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults apply
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Query.MaxLength != 0 {
		c.Query.MaxLength = other.Query.MaxLength
	}
	if other.Query.MaxSecondaries != 0 {
		c.Query.MaxSecondaries = other.Query.MaxSecondaries
	}

	if other.Search.PerCallTopK != 0 {
		c.Search.PerCallTopK = other.Search.PerCallTopK
	}
	if other.Search.FusedLimit != 0 {
		c.Search.FusedLimit = other.Search.FusedLimit
	}
	if other.Search.CallTimeout != 0 {
		c.Search.CallTimeout = other.Search.CallTimeout
	}
	if other.Search.PrimaryWeight != 0 {
		c.Search.PrimaryWeight = other.Search.PrimaryWeight
	}
	if other.Search.SecondaryWeight != 0 {
		c.Search.SecondaryWeight = other.Search.SecondaryWeight
	}
	if other.Search.KeywordFallbackScore != 0 {
		c.Search.KeywordFallbackScore = other.Search.KeywordFallbackScore
	}

	// A stores list in a config file replaces the defaults entirely
	if len(other.Stores) > 0 {
		c.Stores = other.Stores
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.MaxInputBytes != 0 {
		c.Embeddings.MaxInputBytes = other.Embeddings.MaxInputBytes
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Enabled is boolean, merge only when any rerank field was set
	if other.Rerank.Endpoint != "" || other.Rerank.Model != "" || other.Rerank.BatchSize != 0 {
		c.Rerank.Enabled = other.Rerank.Enabled
	}
	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}
	if other.Rerank.BatchSize != 0 {
		c.Rerank.BatchSize = other.Rerank.BatchSize
	}
	if other.Rerank.Timeout != 0 {
		c.Rerank.Timeout = other.Rerank.Timeout
	}
	if other.Rerank.MaxExcerptChars != 0 {
		c.Rerank.MaxExcerptChars = other.Rerank.MaxExcerptChars
	}
	if other.Rerank.HybridBlend != 0 {
		c.Rerank.HybridBlend = other.Rerank.HybridBlend
	}
	if other.Rerank.OracleBlend != 0 {
		c.Rerank.OracleBlend = other.Rerank.OracleBlend
	}

	if other.Confidence.SimilarityWeight != 0 {
		c.Confidence.SimilarityWeight = other.Confidence.SimilarityWeight
	}
	if other.Confidence.KeywordWeight != 0 {
		c.Confidence.KeywordWeight = other.Confidence.KeywordWeight
	}
	if other.Confidence.CrossEncoderWeight != 0 {
		c.Confidence.CrossEncoderWeight = other.Confidence.CrossEncoderWeight
	}
	if other.Confidence.AuthorityWeight != 0 {
		c.Confidence.AuthorityWeight = other.Confidence.AuthorityWeight
	}
	if other.Confidence.ImportanceWeight != 0 {
		c.Confidence.ImportanceWeight = other.Confidence.ImportanceWeight
	}

	if other.Cache.Backend != "" || other.Cache.Path != "" || other.Cache.MaxEntries != 0 {
		c.Cache.Enabled = other.Cache.Enabled
	}
	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.Path != "" {
		c.Cache.Path = other.Cache.Path
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	if other.Cache.SweepInterval != 0 {
		c.Cache.SweepInterval = other.Cache.SweepInterval
	}

	if other.Dedupe.JaccardThreshold != 0 {
		c.Dedupe.JaccardThreshold = other.Dedupe.JaccardThreshold
	}
	if other.Dedupe.SectionPrefixLen != 0 {
		c.Dedupe.SectionPrefixLen = other.Dedupe.SectionPrefixLen
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies REGSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REGSEARCH_PRIMARY_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w > 0 && w <= 1 {
			c.Search.PrimaryWeight = w
		}
	}
	if v := os.Getenv("REGSEARCH_SECONDARY_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SecondaryWeight = w
		}
	}
	if v := os.Getenv("REGSEARCH_FUSED_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.FusedLimit = n
		}
	}

	if v := os.Getenv("REGSEARCH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("REGSEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("REGSEARCH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}

	if v := os.Getenv("REGSEARCH_RERANK_ENABLED"); v != "" {
		c.Rerank.Enabled = isTruthy(v)
	}
	if v := os.Getenv("REGSEARCH_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
	if v := os.Getenv("REGSEARCH_RERANK_MODEL"); v != "" {
		c.Rerank.Model = v
	}

	if v := os.Getenv("REGSEARCH_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = isTruthy(v)
	}
	if v := os.Getenv("REGSEARCH_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REGSEARCH_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}

	if v := os.Getenv("REGSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("REGSEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

func isTruthy(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Query.MaxLength <= 0 {
		return fmt.Errorf("query.max_length must be positive, got %d", c.Query.MaxLength)
	}
	if c.Query.MaxSecondaries < 0 {
		return fmt.Errorf("query.max_secondaries must be non-negative, got %d", c.Query.MaxSecondaries)
	}

	if c.Search.PerCallTopK <= 0 {
		return fmt.Errorf("search.per_call_top_k must be positive, got %d", c.Search.PerCallTopK)
	}
	if c.Search.FusedLimit <= 0 {
		return fmt.Errorf("search.fused_limit must be positive, got %d", c.Search.FusedLimit)
	}
	if c.Search.PrimaryWeight <= 0 || c.Search.PrimaryWeight > 1 {
		return fmt.Errorf("search.primary_weight must be in (0, 1], got %f", c.Search.PrimaryWeight)
	}
	if c.Search.SecondaryWeight < 0 || c.Search.SecondaryWeight > 1 {
		return fmt.Errorf("search.secondary_weight must be in [0, 1], got %f", c.Search.SecondaryWeight)
	}

	if len(c.Stores) == 0 {
		return fmt.Errorf("at least one store must be configured")
	}
	seen := make(map[string]bool, len(c.Stores))
	for _, s := range c.Stores {
		if s.Name == "" {
			return fmt.Errorf("store name must not be empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate store name: %s", s.Name)
		}
		seen[s.Name] = true
		if s.Weight <= 0 || s.Weight > 1 {
			return fmt.Errorf("store %s: weight must be in (0, 1], got %f", s.Name, s.Weight)
		}
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.MaxInputBytes <= 0 {
		return fmt.Errorf("embeddings.max_input_bytes must be positive, got %d", c.Embeddings.MaxInputBytes)
	}

	if c.Rerank.BatchSize <= 0 {
		return fmt.Errorf("rerank.batch_size must be positive, got %d", c.Rerank.BatchSize)
	}
	blend := c.Rerank.HybridBlend + c.Rerank.OracleBlend
	if math.Abs(blend-1.0) > 0.01 {
		return fmt.Errorf("rerank.hybrid_blend + rerank.oracle_blend must equal 1.0, got %.2f", blend)
	}

	weightSum := c.Confidence.SimilarityWeight + c.Confidence.KeywordWeight +
		c.Confidence.CrossEncoderWeight + c.Confidence.AuthorityWeight +
		c.Confidence.ImportanceWeight
	if math.Abs(weightSum-1.0) > 0.01 {
		return fmt.Errorf("confidence weights must sum to 1.0, got %.2f", weightSum)
	}

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Cache.Backend)] {
		return fmt.Errorf("cache.backend must be 'sqlite' or 'memory', got %s", c.Cache.Backend)
	}

	if c.Dedupe.JaccardThreshold <= 0 || c.Dedupe.JaccardThreshold > 1 {
		return fmt.Errorf("dedupe.jaccard_threshold must be in (0, 1], got %f", c.Dedupe.JaccardThreshold)
	}
	if c.Dedupe.SectionPrefixLen <= 0 {
		return fmt.Errorf("dedupe.section_prefix_len must be positive, got %d", c.Dedupe.SectionPrefixLen)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// StoreWeight returns the configured weight for a store, or 0 if the
// store is not configured.
func (c *Config) StoreWeight(name string) float64 {
	for _, s := range c.Stores {
		if s.Name == name {
			return s.Weight
		}
	}
	return 0
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
