package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to verify regsearch can operate correctly.

Checks:
  - Write permissions on the data directory
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - Whether each configured store has been indexed
  - Ollama server and model availability

The Ollama checks are non-critical warnings: without Ollama, search
falls back to static embeddings and skips oracle reranking.`,
		Example: `  # Run diagnostics
  regsearch doctor

  # Verbose output with fix suggestions
  regsearch doctor --verbose

  # JSON output for scripting
  regsearch doctor --json

  # Skip the network probes
  regsearch doctor --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that need the network")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput, offline bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(cfg,
		preflight.WithOffline(offline),
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx)

	if jsonOutput {
		return writeDoctorJSON(cmd, checker, results)
	}

	checker.PrintResults(results)

	dataDir := config.DefaultDataDir()
	if checker.HasCriticalFailures(results) {
		// Stale markers must not let a broken setup skip re-checks.
		_ = preflight.ClearMarker(dataDir)
		return fmt.Errorf("system check failed")
	}

	if err := preflight.MarkPassed(dataDir); err == nil {
		if age := preflight.MarkerAge(dataDir); age > 0 {
			cmd.Printf("\nLast successful check: %s ago\n", formatCheckAge(age))
		}
	}
	return nil
}

// DoctorOutput is the JSON shape of a diagnostic run.
type DoctorOutput struct {
	Status   string              `json:"status"`
	Checks   []DoctorCheckResult `json:"checks"`
	Warnings []string            `json:"warnings,omitempty"`
	Errors   []string            `json:"errors,omitempty"`
}

// DoctorCheckResult is one check within DoctorOutput.
type DoctorCheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	out := DoctorOutput{
		Status: checker.SummaryStatus(results),
		Checks: make([]DoctorCheckResult, len(results)),
	}
	for i, r := range results {
		out.Checks[i] = DoctorCheckResult{
			Name:     r.Name,
			Status:   doctorStatus(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
		if r.IsCritical() {
			out.Errors = append(out.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			out.Warnings = append(out.Warnings, r.Name+": "+r.Message)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func doctorStatus(s preflight.CheckStatus) string {
	switch s {
	case preflight.StatusPass:
		return "pass"
	case preflight.StatusWarn:
		return "warn"
	case preflight.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

func formatCheckAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return "less than 1 hour"
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
