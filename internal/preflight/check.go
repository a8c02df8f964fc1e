package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohmbase/regsearch/internal/config"
)

// CheckStatus is the outcome of a single check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the outcome of one preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs the preflight checks against a loaded configuration.
type Checker struct {
	cfg     *config.Config
	offline bool
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithOffline skips checks that need the network (the Ollama probes).
func WithOffline(offline bool) Option {
	return func(c *Checker) {
		c.offline = offline
	}
}

// WithVerbose includes per-check details in PrintResults.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker for the given configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check and returns the results in display order.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	dataDir := config.DefaultDataDir()

	results := []CheckResult{
		c.CheckWritePermissions(dataDir),
		c.CheckDiskSpace(dataDir),
		c.CheckFileDescriptors(),
	}
	results = append(results, c.CheckStores()...)

	// Ollama outages degrade search quality rather than break it, so
	// the probes never fail the run.
	if !c.offline {
		results = append(results, c.CheckOllama(ctx)...)
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus reduces the results to ready, ready_with_warnings, or failed.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes a human-readable report to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	fmt.Fprintln(c.output, "regsearch System Check")
	fmt.Fprintln(c.output, "======================")
	fmt.Fprintln(c.output)

	for _, r := range results {
		fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	fmt.Fprintln(c.output)
	fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errors = append(errors, r.Name+": "+r.Message)
		case r.Status == StatusWarn || (r.Status == StatusFail && !r.Required):
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintln(c.output)
		fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckWritePermissions verifies the data directory is writable,
// creating it if it does not exist yet.
func (c *Checker) CheckWritePermissions(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dataDir, err)
		return result
	}
	probe := filepath.Join(dataDir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to %s: %v", dataDir, err)
		return result
	}
	f.Close()
	os.Remove(probe)

	result.Status = StatusPass
	result.Message = dataDir + " is writable"
	return result
}

// CheckStores reports whether each configured store has an index on disk.
func (c *Checker) CheckStores() []CheckResult {
	results := make([]CheckResult, 0, len(c.cfg.Stores))
	for _, sc := range c.cfg.Stores {
		result := CheckResult{
			Name: "store:" + sc.Name,
		}
		// The catalog is created on first index, so its absence means
		// the store has never been indexed.
		if _, err := os.Stat(filepath.Join(sc.Path, "catalog.db")); err != nil {
			result.Status = StatusWarn
			result.Message = "not indexed"
			result.Details = fmt.Sprintf("run: regsearch index <corpus.jsonl> --store %s", sc.Name)
		} else {
			result.Status = StatusPass
			result.Message = "indexed at " + sc.Path
		}
		results = append(results, result)
	}
	return results
}
