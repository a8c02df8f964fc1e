package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ohmbase/regsearch/internal/logging"
	"github.com/ohmbase/regsearch/internal/output"
	"github.com/ohmbase/regsearch/internal/pipeline"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	limit      int
	contextTag string
	format     string // "text", "json"
	noRerank   bool
	noCache    bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one search through the full pipeline",
		Long: `Run a single question through the full retrieval pipeline:
decomposition, weighted multi-store search, fusion, deduplication,
reranking, and confidence scoring.

Examples:
  regsearch query "9.5kW shower, 15m cable run"
  regsearch query "bonding in bathrooms" --limit 5
  regsearch query "RCD requirements for sockets" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runQuery(cmd.Context(), cmd, question, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.contextTag, "context-tag", "", "Cache scope tag (e.g. a job reference)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip the LLM reranking stage")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, question string, opts queryOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger := slog.New(slog.DiscardHandler)
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = l
		slog.SetDefault(l)
		defer cleanup()
	}

	logger.Info("query started", slog.String("query", question), slog.Int("limit", opts.limit))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.noRerank {
		cfg.Rerank.Enabled = false
	}
	if opts.noCache {
		cfg.Cache.Enabled = false
	}

	rt, err := buildRuntimeWithConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	resp, err := rt.pipeline.Search(ctx, pipeline.Request{
		Query:      question,
		ContextTag: opts.contextTag,
	})
	if err != nil {
		return err
	}

	if opts.limit > 0 && len(resp.Results) > opts.limit {
		resp.Results = resp.Results[:opts.limit]
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return formatQueryText(output.New(cmd.OutOrStdout()), question, resp)
	}
}

// formatQueryText renders a pipeline response in human-readable form.
func formatQueryText(out *output.Writer, question string, resp *pipeline.Response) error {
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No regulations found for %q", question))
		if resp.DegradedCalls > 0 {
			out.Warning(fmt.Sprintf("%d retrieval call(s) failed; results may be incomplete", resp.DegradedCalls))
		}
		return nil
	}

	header := fmt.Sprintf("Found %d result(s) for %q (intent: %s, average confidence: %.2f)",
		len(resp.Results), question, resp.Intent, resp.AverageConfidence)
	if resp.CacheHit {
		header += " [cached]"
	}
	out.Status("🔍", header)
	out.Newline()

	for i, r := range resp.Results {
		out.Statusf("", "%d. %s — %s (score: %.2f)", i+1, r.Section, r.SourceLabel, r.FinalScore)
		out.Statusf("", "   confidence: %s (%.2f) — %s", r.Confidence.Level, r.Confidence.Overall, r.Confidence.Reasoning)
		if r.AuthorityTag != "" {
			out.Statusf("", "   authority: %s", r.AuthorityTag)
		}
		for _, line := range excerptLines(r.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}

	if resp.DegradedCalls > 0 {
		out.Warning(fmt.Sprintf("%d retrieval call(s) failed; results may be incomplete", resp.DegradedCalls))
	}
	if resp.OracleFallbacks > 0 {
		out.Warning("reranking oracle unavailable; results ranked by retrieval score only")
	}
	return nil
}

// excerptLines returns the first n non-empty-trailing lines of content.
func excerptLines(content string, n int) []string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
