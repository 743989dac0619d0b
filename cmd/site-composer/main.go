package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/airgap-notebooks/site-composer/internal/config"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

// Global command flags
var (
	configPath string
	logLevel   string
	verbose    bool
)

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "site-composer",
		Short: "builds air-gapped static sites from marimo notebooks",
		Long: `site-composer exports marimo notebooks to WebAssembly form, vendors the
Pyodide runtime, fonts and math assets, rewrites every CDN URL to a relative
path, and verifies that the result needs no network access at all.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to site.yaml (built-in defaults when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Shorthand for --log-level debug")

	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createCheckUpgradeCommand())
	rootCmd.AddCommand(createValidateCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// resolveRequestedLogLevel returns the level asked for on the command line:
// an explicit --log-level wins, then --verbose, then empty for the config
// file's choice.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil && flagChanged(cmd.Flags(), "verbose") {
		return "debug"
	}
	if verbose {
		return "debug"
	}
	return ""
}

func flagChanged(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// attachLoggingHooks initializes the logger before any subcommand runs, so
// every code path logs through the same configured instance.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			level := resolveRequestedLogLevel(cmd)
			if level == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				level = cfg.Logging.Level
			}
			return logger.InitAtLevel(level)
		}
	}
}

// loadConfig reads the configured site.yaml, or the defaults without one.
func loadConfig() (*config.SiteConfig, error) {
	return config.Load(configPath)
}

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
