package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"ttscraper/pkg/config"
	"ttscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ttscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TTSCRAPER_*, PROXY_USER/PROXY_PASS/PROXY_HOST/PROXY_PORT)
  - .env file in the working directory
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.ttscraper.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The proxy password is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# ttscraper configuration
#
# Environment variables prefixed with TTSCRAPER_ override these values,
# e.g. TTSCRAPER_MAX_WORKERS, TTSCRAPER_PROXY_HOST, TTSCRAPER_LOG_LEVEL.

api:
  base_url: "https://www.tiktok.com"
  aid: "1988"
  timeout: 20s
  connect_timeout: 15s
  token_timeout: 20s

# Rotating egress proxy. Leave host empty to connect directly.
# Credentials are best stored with 'ttscraper proxy login'.
proxy:
  scheme: "http"          # http, https, socks5, socks5h
  host: ""
  port: 0
  username: ""
  # Optional URL that triggers an exit IP change when requested
  rotate_url: ""
  ip_echo_url: "https://api.ipify.org?format=json"
  timeout: 15s
  verify_attempts: 2

fetch:
  batch_size: 50                # comments per page, max 50
  batches_before_refresh: 15    # new session token after this many pages
  max_retries: 3                # consecutive failures before rotating
  max_rotations: 3              # rotations per video before giving up, 0 = unlimited
  max_workers: 3
  max_items: 10000              # per video
  save_every_n_batches: 5
  courtesy_delay: 300ms
  retry_delay: 1s

rate_limit:
  requests_per_minute: 120      # per worker
  burst_size: 1

checkpoint:
  enabled: true
  directory: ""                 # default: platform data directory

output:
  directory: "."
  json_file: "results.json"
  csv_file: "results.csv"
  sample: 5

logging:
  level: "info"                 # debug, info, warn, error
  file: ""

# Videos scraped when none are given on the command line
targets: []
#  - id: "7301234567890123456"
#    label: "someone"
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".ttscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Set the proxy host, or store credentials with 'ttscraper proxy login'")
	fmt.Fprintln(ui.Out, "2. Run 'ttscraper config validate' to check the configuration")
	fmt.Fprintln(ui.Out, "3. Start with 'ttscraper scrape <video_id>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	displayCfg := *cfg
	if displayCfg.Proxy.Password != "" {
		displayCfg.Proxy.Password = "********"
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, candidate := range []string{".ttscraper.yaml", ".ttscraper.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	var warnings []string
	var problems []error

	account, err := resolveProxyAccount(cfg)
	switch {
	case err != nil:
		problems = append(problems, err)
	case !account.Enabled():
		warnings = append(warnings, "no proxy configured or stored; requests go out directly and cannot rotate")
	case account.RotateURL == "":
		warnings = append(warnings, "no rotate_url; rotation relies on the gateway assigning a new IP per connection")
	}
	if !cfg.Checkpoint.Enabled {
		warnings = append(warnings, "checkpointing disabled; interrupted runs start over")
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", warn)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Workers: %d\n", cfg.Fetch.MaxWorkers)
	fmt.Fprintf(ui.Out, "  Max comments per video: %d\n", cfg.Fetch.MaxItems)
	fmt.Fprintf(ui.Out, "  Token refresh: every %d batches\n", cfg.Fetch.BatchesBeforeRefresh)
	fmt.Fprintf(ui.Out, "  Rate limit: %d requests/minute per worker\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.Directory)
	fmt.Fprintf(ui.Out, "  Config targets: %d\n", len(cfg.Targets))
	if account != nil {
		fmt.Fprintf(ui.Out, "  Proxy: %s\n", account)
	}
	return nil
}
