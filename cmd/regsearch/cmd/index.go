package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/embed"
	"github.com/ohmbase/regsearch/internal/logging"
	"github.com/ohmbase/regsearch/internal/store"
	"github.com/ohmbase/regsearch/internal/ui"
)

// indexBatchSize is how many documents are handed to a store per call,
// so progress updates stay frequent even with a slow embedder.
const indexBatchSize = 100

func newIndexCmd() *cobra.Command {
	var (
		storeName string
		plain     bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "index <corpus.jsonl> [corpus.jsonl...]",
		Short: "Load a regulation corpus into the search stores",
		Long: `Load one or more JSONL corpus files into the hybrid search stores.

Each line is one document:

  {"id": "bs7671:701.411.3.3", "source_label": "BS 7671:2018+A2:2022",
   "section": "701.411.3.3", "content": "...", "authority_tag": "normative",
   "store": "wiring-regulations"}

Documents are routed to the store named by their "store" field, or to
the first configured store when the field is absent. Use --store to
force every document into one store, and --force to clear existing
index data first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args, storeName, plain, force)
		},
	}

	cmd.Flags().StringVar(&storeName, "store", "", "Index every document into this store, ignoring per-document routing")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain text progress output (no terminal redraw)")
	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")

	return cmd
}

// corpusLine is one JSONL record: a document plus its routing label.
type corpusLine struct {
	store.Document
	Store string `json:"store,omitempty"`
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string, storeName string, plain, force bool) error {
	// File-only logging keeps progress rendering clean.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger := slog.New(slog.DiscardHandler)
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = l
		slog.SetDefault(l)
		defer cleanup()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if storeName != "" && !storeConfigured(cfg, storeName) {
		return fmt.Errorf("unknown store %q (configured: %s)", storeName, storeNames(cfg))
	}

	renderer := ui.NewRenderer(ui.Config{Output: cmd.OutOrStdout(), ForcePlain: plain})
	start := time.Now()

	defaultStore := cfg.Stores[0].Name
	if storeName != "" {
		defaultStore = storeName
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: "reading corpus"})

	grouped := make(map[string][]*store.Document)
	var warnings int
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening corpus file: %w", err)
		}
		n, w, err := readCorpus(f, grouped, defaultStore, storeName != "", renderer)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		warnings += w
		logger.Info("corpus file loaded", "path", path, "documents", n)
	}

	total := 0
	for name, docs := range grouped {
		if !storeConfigured(cfg, name) {
			return fmt.Errorf("corpus routes documents to unknown store %q (configured: %s)", name, storeNames(cfg))
		}
		total += len(docs)
	}
	if total == 0 {
		return fmt.Errorf("no indexable documents found")
	}

	if force {
		for name := range grouped {
			if err := clearStoreData(storePath(cfg, name)); err != nil {
				return fmt.Errorf("clearing store %s: %w", name, err)
			}
		}
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Message: "connecting to embedder"})
	embedder, err := embed.New(ctx, embed.Config{
		Provider:      cfg.Embeddings.Provider,
		Host:          cfg.Embeddings.OllamaHost,
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		MaxInputBytes: cfg.Embeddings.MaxInputBytes,
		CacheSize:     cfg.Embeddings.CacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	indexed := 0
	indexErrors := 0
	for name, docs := range grouped {
		n, err := indexIntoStore(ctx, cfg, name, docs, embedder, renderer, indexed, total, logger)
		indexed += n
		if err != nil {
			indexErrors++
			renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("store %s: %w", name, err)})
		}
	}

	renderer.Complete(ui.CompletionStats{
		Documents: indexed,
		Stores:    len(grouped),
		Duration:  time.Since(start),
		Errors:    indexErrors,
		Warnings:  warnings,
		Embedder: ui.EmbedderInfo{
			Provider:   providerLabel(cfg.Embeddings.Provider),
			Model:      embedder.ModelName(),
			Dimensions: embedder.Dimensions(),
		},
	})

	if indexErrors > 0 {
		return fmt.Errorf("%d store(s) failed to index", indexErrors)
	}
	return nil
}

// readCorpus parses JSONL documents into grouped, keyed by store name.
// Malformed or incomplete lines are skipped with a warning; the count
// of skipped lines is returned alongside the number accepted.
func readCorpus(r io.Reader, grouped map[string][]*store.Document, defaultStore string, forceStore bool, renderer ui.Renderer) (accepted, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec corpusLine
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			renderer.AddError(ui.ErrorEvent{
				IsWarn: true,
				Err:    fmt.Errorf("line %d: invalid JSON, skipped", lineNo),
			})
			continue
		}
		if rec.ID == "" || rec.Content == "" {
			skipped++
			renderer.AddError(ui.ErrorEvent{
				DocumentID: rec.ID,
				IsWarn:     true,
				Err:        fmt.Errorf("line %d: missing id or content, skipped", lineNo),
			})
			continue
		}

		target := rec.Store
		if forceStore || target == "" {
			target = defaultStore
		}
		doc := rec.Document
		grouped[target] = append(grouped[target], &doc)
		accepted++
	}
	if err := scanner.Err(); err != nil {
		return accepted, skipped, err
	}
	return accepted, skipped, nil
}

func indexIntoStore(ctx context.Context, cfg *config.Config, name string, docs []*store.Document,
	embedder embed.Embedder, renderer ui.Renderer, done, total int, logger *slog.Logger) (int, error) {
	sc := storeConfig(cfg, name)
	hs, _, err := openHybridStore(sc, embedder, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer func() { _ = hs.Close() }()

	indexed := 0
	for i := 0; i < len(docs); i += indexBatchSize {
		end := min(i+indexBatchSize, len(docs))
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: done + indexed,
			Total:   total,
			Message: name,
		})
		if err := hs.Index(ctx, docs[i:end]); err != nil {
			return indexed, err
		}
		indexed = end
	}

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Current: done + indexed,
		Total:   total,
		Message: name,
	})

	if err := hs.Save(); err != nil {
		return indexed, fmt.Errorf("persisting vector index: %w", err)
	}
	logger.Info("store indexed", "store", name, "documents", indexed)
	return indexed, nil
}

// clearStoreData removes the index files for one store.
func clearStoreData(dir string) error {
	for _, name := range []string{"bm25.bleve", "vectors.hnsw", "catalog.db", "catalog.db-wal", "catalog.db-shm"} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func storeConfigured(cfg *config.Config, name string) bool {
	for _, s := range cfg.Stores {
		if s.Name == name {
			return true
		}
	}
	return false
}

func storeConfig(cfg *config.Config, name string) config.StoreConfig {
	for _, s := range cfg.Stores {
		if s.Name == name {
			return s
		}
	}
	return config.StoreConfig{Name: name, Path: storePath(cfg, name)}
}

func storePath(cfg *config.Config, name string) string {
	for _, s := range cfg.Stores {
		if s.Name == name {
			return s.Path
		}
	}
	return filepath.Join(config.DefaultDataDir(), "stores", name)
}

func storeNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Stores))
	for _, s := range cfg.Stores {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func providerLabel(provider string) string {
	if provider == "" {
		return "auto"
	}
	return provider
}
