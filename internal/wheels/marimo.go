package wheels

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airgap-notebooks/site-composer/internal/fetch"
	"github.com/airgap-notebooks/site-composer/internal/pyodide"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/utils/shell"
)

// hostedFilesBase is a var so tests can point downloads at a local server.
var hostedFilesBase = "https://files.pythonhosted.org/packages/py3/m/marimo-base"

// EnsureMarimoBase places the marimo-base wheel for the given version into
// <siteDir>/pyodide and registers it in the lock file. The frontend loads
// this wheel into the browser interpreter; without it no notebook starts.
// Tries the predictable hosted URL first, then pip download as a fallback.
func EnsureMarimoBase(c *fetch.Client, siteDir, version string) error {
	pyodideDir := filepath.Join(siteDir, "pyodide")

	existing, err := filepath.Glob(filepath.Join(pyodideDir, "marimo_base*.whl"))
	if err == nil && len(existing) > 0 {
		logger.Logger().Infof("marimo-base already present: %s", filepath.Base(existing[0]))
		return nil
	}

	wheelName := fmt.Sprintf("marimo_base-%s-py3-none-any.whl", version)
	wheelPath := filepath.Join(pyodideDir, wheelName)
	wheelURL := fmt.Sprintf("%s/%s", hostedFilesBase, wheelName)

	if err := c.Download(wheelURL, wheelPath, ""); err != nil {
		logger.Logger().Warnf("Direct download failed (%v), falling back to pip", err)
		if err := pipDownloadWheel(pyodideDir, fmt.Sprintf("marimo-base==%s", version)); err != nil {
			return fmt.Errorf("downloading marimo-base %s: %w", version, err)
		}
	}

	downloaded, err := filepath.Glob(filepath.Join(pyodideDir, "marimo_base*.whl"))
	if err != nil || len(downloaded) == 0 {
		return fmt.Errorf("marimo-base wheel missing after download")
	}

	lock, err := pyodide.LoadLock(siteDir)
	if err != nil {
		return fmt.Errorf("loading lock for marimo-base: %w", err)
	}
	if lock.Has("marimo-base") {
		return nil
	}
	if err := lock.Register(downloaded[0], "marimo-base", version, []string{"marimo"}); err != nil {
		return fmt.Errorf("registering marimo-base: %w", err)
	}
	logger.Logger().Infof("Registered marimo-base %s in pyodide-lock.json", version)
	return nil
}

// pipDownloadWheel fetches a single wheel via pip into destDir.
func pipDownloadWheel(destDir, requirement string) error {
	tmpDir, err := os.MkdirTemp("", "pip-download-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	var env []string
	for key, value := range shell.GetOSProxyEnvirons() {
		env = append(env, key+"="+value)
	}
	cmd := fmt.Sprintf("pip download --no-deps --only-binary=:all: --dest=%s %s", tmpDir, requirement)
	if _, err := shell.ExecCmdWithStream(cmd, env); err != nil {
		return fmt.Errorf("pip download failed: %w", err)
	}

	wheels, err := filepath.Glob(filepath.Join(tmpDir, "*.whl"))
	if err != nil || len(wheels) == 0 {
		return fmt.Errorf("pip download produced no wheel")
	}
	data, err := os.ReadFile(wheels[0])
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, filepath.Base(wheels[0])), data, 0644)
}
