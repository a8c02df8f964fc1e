package embed

import (
	"context"
	"fmt"
	"log/slog"
)

// Provider selection values.
const (
	ProviderAuto   = "auto"
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider      string
	Host          string
	Model         string
	Dimensions    int
	MaxInputBytes int
	CacheSize     int
}

// New builds the configured embedder, wrapped in an LRU cache. With
// ProviderAuto an unreachable Ollama degrades to the static embedder
// instead of failing startup.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Provider {
	case ProviderStatic:
		inner = NewStaticEmbedder(cfg.Dimensions)

	case ProviderOllama:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:          cfg.Host,
			Model:         cfg.Model,
			Dimensions:    cfg.Dimensions,
			MaxInputBytes: cfg.MaxInputBytes,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama

	case ProviderAuto, "":
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:          cfg.Host,
			Model:         cfg.Model,
			Dimensions:    cfg.Dimensions,
			MaxInputBytes: cfg.MaxInputBytes,
		})
		if err != nil {
			logger.Warn("Ollama unavailable, using static embeddings",
				"error", err)
			inner = NewStaticEmbedder(cfg.Dimensions)
		} else {
			inner = ollama
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	logger.Info("embedder ready",
		"model", inner.ModelName(),
		"dimensions", inner.Dimensions())
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
