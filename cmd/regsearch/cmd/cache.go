package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ohmbase/regsearch/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
		Long: `Inspect and manage the semantic result cache.

Cached pipeline responses are keyed by normalized query text and expire
on a schedule derived from answer confidence.`,
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCachePurgeCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

// CacheStatsOutput is the JSON output format for cache stats.
type CacheStatsOutput struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
	Entries int    `json:"entries"`
}

func newCacheStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache configuration and entry count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCacheStore(cmd.Context(), func(ctx context.Context, store cache.Store) error {
				removed, err := store.Purge(ctx)
				if err != nil {
					return fmt.Errorf("purging cache: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", removed)
				return nil
			})
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCacheStore(cmd.Context(), func(ctx context.Context, store cache.Store) error {
				if err := store.Clear(ctx); err != nil {
					return fmt.Errorf("clearing cache: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			})
		},
	}
}

func runCacheStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := CacheStatsOutput{
		Enabled: cfg.Cache.Enabled,
		Backend: cfg.Cache.Backend,
	}
	if cfg.Cache.Backend == "sqlite" {
		out.Path = cfg.Cache.Path
	}

	if cfg.Cache.Enabled {
		store, err := openCacheStore(cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer func() { _ = store.Close() }()
		out.Entries, err = cacheEntryCount(ctx, store)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Enabled: %t\n", out.Enabled)
	_, _ = fmt.Fprintf(w, "Backend: %s\n", out.Backend)
	if out.Path != "" {
		_, _ = fmt.Fprintf(w, "Path:    %s\n", out.Path)
	}
	_, _ = fmt.Fprintf(w, "Entries: %d\n", out.Entries)
	return nil
}

// withCacheStore opens the configured cache, runs fn, and closes it.
func withCacheStore(ctx context.Context, fn func(context.Context, cache.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		return fmt.Errorf("result cache is disabled in configuration")
	}

	store, err := openCacheStore(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	return fn(ctx, store)
}

// cacheEntryCount reports the number of stored entries for backends
// that can count them.
func cacheEntryCount(ctx context.Context, store cache.Store) (int, error) {
	switch s := store.(type) {
	case *cache.SQLiteStore:
		return s.Len(ctx)
	case *cache.MemoryStore:
		return s.Len(), nil
	default:
		return 0, nil
	}
}
