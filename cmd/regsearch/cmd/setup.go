package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ohmbase/regsearch/internal/cache"
	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/embed"
	"github.com/ohmbase/regsearch/internal/pipeline"
	"github.com/ohmbase/regsearch/internal/rerank"
	"github.com/ohmbase/regsearch/internal/store"
	"github.com/ohmbase/regsearch/internal/telemetry"
)

// appRuntime bundles everything a query-serving command needs. Close
// releases the pipeline (and with it the stores, cache, reranker and
// metrics), then the shared embedder and telemetry database.
type appRuntime struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline

	// catalog is the primary store's document catalog, used to expose
	// regulation texts as MCP resources.
	catalog *store.Catalog

	embedder    embed.Embedder
	telemetryDB *sql.DB
}

func (r *appRuntime) Close() error {
	var errs []error
	if r.pipeline != nil {
		errs = append(errs, r.pipeline.Close())
	}
	if r.embedder != nil {
		errs = append(errs, r.embedder.Close())
	}
	if r.telemetryDB != nil {
		errs = append(errs, r.telemetryDB.Close())
	}
	return errors.Join(errs...)
}

// loadConfig loads configuration starting from the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// buildRuntimeWithConfig wires the full retrieval pipeline: one hybrid
// store per configured corpus, a shared embedder, the reranking oracle,
// the result cache, and telemetry.
func buildRuntimeWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*appRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:      cfg.Embeddings.Provider,
		Host:          cfg.Embeddings.OllamaHost,
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		MaxInputBytes: cfg.Embeddings.MaxInputBytes,
		CacheSize:     cfg.Embeddings.CacheSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	rt := &appRuntime{cfg: cfg, embedder: embedder}

	registry := store.NewRegistry(logger)
	for _, sc := range cfg.Stores {
		hs, catalog, err := openHybridStore(sc, embedder, cfg, logger)
		if err != nil {
			_ = registry.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("opening store %s: %w", sc.Name, err)
		}
		registry.Register(hs, sc.Weight)
		if rt.catalog == nil {
			rt.catalog = catalog
		}
	}

	var reranker *rerank.Reranker
	if cfg.Rerank.Enabled {
		oracle := rerank.NewOllamaOracle(rerank.OracleConfig{
			Endpoint: cfg.Rerank.Endpoint,
			Model:    cfg.Rerank.Model,
			Timeout:  cfg.Rerank.Timeout,
		})
		reranker = rerank.NewReranker(oracle, rerank.Config{
			Enabled:         true,
			BatchSize:       cfg.Rerank.BatchSize,
			MaxExcerptChars: cfg.Rerank.MaxExcerptChars,
			HybridBlend:     cfg.Rerank.HybridBlend,
			OracleBlend:     cfg.Rerank.OracleBlend,
		}, logger)
	}

	var cacheStore cache.Store
	if cfg.Cache.Enabled {
		cacheStore, err = openCacheStore(cfg, logger)
		if err != nil {
			logger.Warn("result cache unavailable, continuing without it", "error", err)
			cacheStore = nil
		}
	}

	metrics := openMetrics(rt, logger)

	p, err := pipeline.New(pipeline.Options{
		Config:   cfg,
		Stores:   registry,
		Reranker: reranker,
		Cache:    cacheStore,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		_ = registry.Close()
		_ = rt.Close()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}

// openHybridStore opens (or creates) the three legs of one store: the
// BM25 index, the vector index, and the document catalog.
func openHybridStore(sc config.StoreConfig, embedder embed.Embedder, cfg *config.Config, logger *slog.Logger) (*store.HybridStore, *store.Catalog, error) {
	if err := os.MkdirAll(sc.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating store directory: %w", err)
	}

	bm25, err := store.NewBleveIndex(filepath.Join(sc.Path, "bm25.bleve"), logger)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := store.NewHNSWIndex(filepath.Join(sc.Path, "vectors.hnsw"), store.HNSWConfig{
		Dimensions: embedder.Dimensions(),
	}, logger)
	if err != nil {
		_ = bm25.Close()
		return nil, nil, err
	}

	catalog, err := store.OpenCatalog(filepath.Join(sc.Path, "catalog.db"))
	if err != nil {
		_ = bm25.Close()
		_ = vectors.Close()
		return nil, nil, err
	}

	hs := store.NewHybridStore(sc.Name, bm25, vectors, catalog, embedder, store.HybridConfig{
		KeywordFallbackScore: cfg.Search.KeywordFallbackScore,
	}, logger)
	return hs, catalog, nil
}

func openCacheStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore(cfg.Cache.MaxEntries), nil
	default:
		if dir := filepath.Dir(cfg.Cache.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		return cache.NewSQLiteStore(cache.SQLiteConfig{
			Path:          cfg.Cache.Path,
			MaxEntries:    cfg.Cache.MaxEntries,
			SweepInterval: cfg.Cache.SweepInterval,
		}, logger)
	}
}

// openMetrics wires telemetry with SQLite persistence. A failure to
// open the telemetry database degrades to in-memory metrics.
func openMetrics(rt *appRuntime, logger *slog.Logger) *telemetry.Metrics {
	dataDir := config.DefaultDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Warn("telemetry persistence unavailable", "error", err)
		return telemetry.NewMetrics(nil)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "telemetry.db"))
	if err != nil {
		logger.Warn("telemetry persistence unavailable", "error", err)
		return telemetry.NewMetrics(nil)
	}
	db.SetMaxOpenConns(1)

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		logger.Warn("telemetry persistence unavailable", "error", err)
		_ = db.Close()
		return telemetry.NewMetrics(nil)
	}

	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		_ = db.Close()
		return telemetry.NewMetrics(nil)
	}
	rt.telemetryDB = db
	return telemetry.NewMetrics(metricsStore)
}
