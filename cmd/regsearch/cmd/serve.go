package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/logging"
	mcpserver "github.com/ohmbase/regsearch/internal/mcp"
	"github.com/ohmbase/regsearch/internal/preflight"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server for AI assistant integration.

The server exposes the search_regulations and pipeline_status tools and
publishes indexed regulation texts as resources. Only the stdio
transport is supported; stdout carries JSON-RPC exclusively, so all
diagnostics go to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol (stdio)")

	return cmd
}

func runServe(ctx context.Context, _ *cobra.Command, transport string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout must carry nothing but JSON-RPC, so logging goes to file
	// only for the lifetime of the server.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		logger = slog.New(slog.DiscardHandler)
	} else {
		slog.SetDefault(logger)
		defer cleanup()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// First startup on a machine runs the system checks; a passing run
	// leaves a marker so later startups skip them. `regsearch doctor`
	// re-runs them on demand.
	dataDir := config.DefaultDataDir()
	if preflight.NeedsCheck(dataDir) {
		checker := preflight.New(cfg, preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx)
		for _, r := range results {
			if r.Status != preflight.StatusPass {
				logger.Warn("preflight check not clean",
					"check", r.Name, "status", r.Status.String(), "message", r.Message)
			}
		}
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("system checks failed; run 'regsearch doctor' for details")
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			logger.Warn("could not record preflight marker", "error", err)
		}
	}

	rt, err := buildRuntimeWithConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	server, err := mcpserver.NewServer(mcpserver.Options{
		Pipeline: rt.pipeline,
		Catalog:  rt.catalog,
		Config:   rt.cfg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	if err := server.RegisterResources(ctx); err != nil {
		// Resources are a convenience; search still works without them.
		logger.Warn("failed to register regulation resources", "error", err)
	}

	return server.Serve(ctx, transport)
}
