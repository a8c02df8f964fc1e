package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ohmbase/regsearch/configs"
	"github.com/ohmbase/regsearch/internal/config"
	"github.com/ohmbase/regsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage regsearch configuration files.

The user config holds machine-specific settings that apply everywhere
regsearch runs on this machine: embedding provider, Ollama host,
reranking, and the cache backend. Deployment-specific settings, such
as the store list, go in a .regsearch.yaml next to where you run the
tool.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/regsearch/config.yaml)
  3. Project config (.regsearch.yaml)
  4. Environment variables (REGSEARCH_*)`,
		Example: `  # Create the user config from a template
  regsearch config init

  # Show the effective configuration after merging all sources
  regsearch config show

  # Print the user config file path
  regsearch config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Create the user configuration file from the built-in template.

The file is written to ~/.config/regsearch/config.yaml (or under
$XDG_CONFIG_HOME when set). With --force an existing file is backed up
first, then replaced with a fresh template.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing config (a backup is kept)")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Example: `  # Show merged configuration
  regsearch config show

  # Show as JSON
  regsearch config show --json

  # Show only the user config layer
  regsearch config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("", "Location: %s", configPath)
			out.Status("", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backupPath, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("backing up config: %w", err)
		}
		out.Statusf("", "Backed up existing config to %s", backupPath)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("", "Location: %s", configPath)
	out.Newline()
	out.Status("", "Edit the file to set your Ollama host and store list,")
	out.Status("", "then run 'regsearch config show' to verify.")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg        *config.Config
		sourceDesc string
	)

	switch source {
	case "merged":
		merged, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = merged
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.Statusf("", "Expected at: %s", configPath)
			out.Status("", "Run 'regsearch config init' to create one")
			return nil
		}
		var err error
		cfg, err = readConfigLayer(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		configPath := ""
		for _, name := range []string{".regsearch.yaml", ".regsearch.yml"} {
			candidate := filepath.Join(cwd, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			out.Warning("No project configuration file found")
			out.Statusf("", "Expected at: %s", filepath.Join(cwd, ".regsearch.yaml"))
			return nil
		}
		cfg, err = readConfigLayer(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (built-in)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	out.Statusf("", "Configuration source: %s", sourceDesc)
	out.Newline()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// readConfigLayer parses a single config file over the defaults,
// without the merge semantics Load applies across layers.
func readConfigLayer(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
