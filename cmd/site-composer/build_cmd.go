package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airgap-notebooks/site-composer/internal/site"
)

// Build command flags
var (
	buildOutputDir      string
	buildMode           string
	buildPyodideVersion string
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "exports notebooks and assembles the offline site",
		Long: `Build runs the full pipeline: export every notebook to WASM form, vendor
the Pyodide runtime, fonts and KaTeX, rewrite CDN URLs to relative paths,
resolve extra Python packages into the local package index, and verify that
no absolute URL survived. The command exits non-zero if any export, download
or verification step fails.`,
		Args: cobra.NoArgs,
		RunE: executeBuild,
	}

	buildCmd.Flags().StringVarP(&buildOutputDir, "output-dir", "o", "",
		"Override the configured output directory")
	buildCmd.Flags().StringVar(&buildMode, "mode", "",
		"Export mode: run (readonly) or edit (overrides config)")
	buildCmd.Flags().StringVar(&buildPyodideVersion, "pyodide-version", "",
		"Pin the Pyodide version instead of detecting it from the export")
	return buildCmd
}

// executeBuild handles the build command execution logic
func executeBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if buildOutputDir != "" {
		cfg.OutputDir = buildOutputDir
	}
	if buildMode != "" {
		cfg.Mode = buildMode
	}
	if cfg.Mode != "run" && cfg.Mode != "edit" {
		return fmt.Errorf("invalid --mode %q (expected run|edit)", cfg.Mode)
	}
	if buildPyodideVersion != "" {
		cfg.PyodideVersion = buildPyodideVersion
	} else if env := os.Getenv("PYODIDE_VERSION"); env != "" && cfg.PyodideVersion == "" {
		cfg.PyodideVersion = env
	}

	return site.NewBuilder(cfg).Run()
}
