package main

import (
	"github.com/spf13/cobra"

	"github.com/airgap-notebooks/site-composer/internal/upgrade"
)

// createCheckUpgradeCommand creates the check-upgrade subcommand
func createCheckUpgradeCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check-upgrade [VERSION]",
		Short: "rehearses a marimo upgrade in an isolated workspace",
		Long: `Check-upgrade installs the candidate marimo version into a throwaway
virtualenv, reruns the full build with it, and reports whether every URL
patch still applies and verifies. Without an argument the pinned version is
checked, which must always pass. On failure the temporary workspace is kept
so the unmatched patterns can be inspected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeCheckUpgrade,
	}
	return checkCmd
}

// executeCheckUpgrade handles the check-upgrade command execution logic
func executeCheckUpgrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The pinned version is the self-consistency baseline.
	version := cfg.MarimoVersion
	if len(args) == 1 {
		version = args[0]
	}

	return upgrade.NewChecker(cfg, version).Check()
}
