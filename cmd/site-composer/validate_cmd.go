package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airgap-notebooks/site-composer/internal/config"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate SITE_YAML",
		Short: "validates a site.yaml against the configuration schema",
		Args:  cobra.ExactArgs(1),
		RunE:  executeValidate,
	}
	return validateCmd
}

// executeValidate handles the validate command execution logic
func executeValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (mode=%s, output=%s)\n",
		args[0], cfg.Mode, cfg.OutputDir)
	return nil
}
