// Package upgrade rehearses a bump of the export tool: it installs a
// candidate version into a throwaway virtualenv, reruns the full build with
// it, and reports whether the patch rules and verification still hold.
package upgrade

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/airgap-notebooks/site-composer/internal/config"
	"github.com/airgap-notebooks/site-composer/internal/site"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/utils/shell"
)

// Checker runs one upgrade rehearsal. Setup and Build default to the real
// virtualenv and build pipeline and are injectable for tests.
type Checker struct {
	Config  *config.SiteConfig
	Version string // candidate export tool version

	// Setup prepares an isolated tool installation under venvDir and
	// returns the KEY=VALUE environment that activates it.
	Setup func(venvDir, version string) ([]string, error)
	// Build runs the full pipeline against cfg with the given environment.
	Build func(cfg *config.SiteConfig, env []string) error
}

// NewChecker returns a Checker for the candidate version using the real
// pipeline.
func NewChecker(cfg *config.SiteConfig, version string) *Checker {
	return &Checker{
		Config:  cfg,
		Version: version,
		Setup:   setupVenv,
		Build:   runBuild,
	}
}

// Check builds the site with the candidate version in a temporary workspace.
// On success the workspace is removed and nil is returned. On failure the
// workspace is preserved for inspection and the error names it.
func (c *Checker) Check() error {
	log := logger.Logger()

	workspace := filepath.Join(os.TempDir(), "site-composer-upgrade-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	log.Infof("Checking upgrade to marimo %s in %s", c.Version, workspace)

	env, err := c.Setup(filepath.Join(workspace, "venv"), c.Version)
	if err != nil {
		os.RemoveAll(workspace)
		return fmt.Errorf("installing marimo %s: %w", c.Version, err)
	}

	// The candidate build must not touch the real site output.
	cfg := *c.Config
	cfg.OutputDir = filepath.Join(workspace, "_site")
	cfg.MarimoVersion = c.Version

	if err := c.Build(&cfg, env); err != nil {
		log.Errorf("Upgrade check FAILED for marimo %s", c.Version)
		log.Errorf("Workspace preserved for inspection: %s", workspace)
		return fmt.Errorf("marimo %s does not patch cleanly (workspace kept at %s): %w",
			c.Version, workspace, err)
	}

	if err := os.RemoveAll(workspace); err != nil {
		log.Warnf("Could not remove workspace %s: %v", workspace, err)
	}
	log.Infof("Upgrade check passed: marimo %s patches and verifies cleanly", c.Version)
	return nil
}

// setupVenv creates a virtualenv with the candidate tool version installed
// and returns the environment that puts it first on PATH.
func setupVenv(venvDir, version string) ([]string, error) {
	python := ""
	for _, candidate := range []string{"python3", "python"} {
		if shell.IsCommandExist(candidate) {
			python = candidate
			break
		}
	}
	if python == "" {
		return nil, fmt.Errorf("no python interpreter found")
	}

	if _, err := shell.ExecCmdWithStream(fmt.Sprintf("%s -m venv %s", python, venvDir), nil); err != nil {
		return nil, fmt.Errorf("creating virtualenv: %w", err)
	}

	binDir := filepath.Join(venvDir, "bin")
	env := []string{
		"PATH=" + binDir + string(os.PathListSeparator) + os.Getenv("PATH"),
		"VIRTUAL_ENV=" + venvDir,
	}

	pip := filepath.Join(binDir, "pip")
	cmd := fmt.Sprintf("%s install marimo==%s", pip, version)
	if _, err := shell.ExecCmdWithStream(cmd, env); err != nil {
		return nil, fmt.Errorf("pip install: %w", err)
	}
	return env, nil
}

// runBuild executes the regular pipeline with the candidate environment so
// the export shells out to the virtualenv's tool.
func runBuild(cfg *config.SiteConfig, env []string) error {
	b := site.NewBuilder(cfg)
	b.Exporter.Env = env
	return b.Run()
}
