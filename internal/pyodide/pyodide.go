package pyodide

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/archive"
	"github.com/airgap-notebooks/site-composer/internal/fetch"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

var (
	// Literal CDN URL pattern in the exported worker chunks.
	cdnURLPattern = regexp.MustCompile(`cdn\.jsdelivr\.net/pyodide/v([0-9]+\.[0-9]+\.[0-9]+)/full`)
	// Quoted version constant, e.g. `Io="0.27.7"` in minified output.
	versionConstPattern = regexp.MustCompile("[\"`](0\\.2[0-9]+\\.[0-9]+)[\"`]")
)

// DetectVersion scans the exported JS for the Pyodide version the export tool
// targets. Worker chunks are checked first since they contain the loader.
func DetectVersion(siteDir string) (string, error) {
	log := logger.Logger()

	var workerFiles, jsFiles []string
	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".js") {
			return nil
		}
		// marimo names its loader chunk saveWorker-*.js.
		if strings.Contains(strings.ToLower(filepath.Base(path)), "worker") {
			workerFiles = append(workerFiles, path)
		} else {
			jsFiles = append(jsFiles, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", siteDir, err)
	}

	for _, path := range append(workerFiles, jsFiles...) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		text := string(data)

		if m := cdnURLPattern.FindStringSubmatch(text); m != nil {
			log.Infof("found Pyodide version %s (in %s)", m[1], path)
			return m[1], nil
		}
		// Template-literal URLs carry the version only as a constant.
		if m := versionConstPattern.FindStringSubmatch(text); m != nil {
			log.Infof("found Pyodide version %s (in %s)", m[1], path)
			return m[1], nil
		}
	}

	return "", fmt.Errorf("could not detect Pyodide version from exports in %s; "+
		"pass --pyodide-version or set pyodideVersion in site.yaml", siteDir)
}

// releaseTarballURL returns the GitHub release URL for the full distribution,
// which includes all bundled packages.
func releaseTarballURL(version string) string {
	return fmt.Sprintf(
		"https://github.com/pyodide/pyodide/releases/download/%s/pyodide-%s.tar.bz2",
		version, version)
}

// EnsureDistribution downloads and extracts the Pyodide distribution into
// <siteDir>/pyodide. Skipped when the runtime entry point is already present.
func EnsureDistribution(c *fetch.Client, siteDir, version string) error {
	log := logger.Logger()
	pyodideDir := filepath.Join(siteDir, "pyodide")

	for _, entry := range []string{"pyodide.mjs", "pyodide.js"} {
		if _, err := os.Stat(filepath.Join(pyodideDir, entry)); err == nil {
			log.Infof("Pyodide already present at %s", pyodideDir)
			return nil
		}
	}

	tarball := filepath.Join(siteDir, fmt.Sprintf("pyodide-%s.tar.bz2", version))
	if err := c.Download(releaseTarballURL(version), tarball, ""); err != nil {
		return fmt.Errorf("downloading Pyodide %s: %w", version, err)
	}

	log.Infof("extracting Pyodide to %s", pyodideDir)
	if err := archive.ExtractTar(tarball, siteDir); err != nil {
		return fmt.Errorf("extracting Pyodide %s: %w", version, err)
	}

	if err := normalizeExtractedDir(siteDir, version); err != nil {
		return err
	}

	if _, err := os.Stat(pyodideDir); err != nil {
		return fmt.Errorf("Pyodide extraction did not produce %s", pyodideDir)
	}

	if err := os.Remove(tarball); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing tarball: %w", err)
	}
	return nil
}

// normalizeExtractedDir renames a versioned extraction dir (pyodide-X.Y.Z) to
// the plain pyodide/ the patched relative paths expect.
func normalizeExtractedDir(siteDir, version string) error {
	pyodideDir := filepath.Join(siteDir, "pyodide")
	if _, err := os.Stat(pyodideDir); err == nil {
		return nil
	}

	versioned := filepath.Join(siteDir, "pyodide-"+version)
	if _, err := os.Stat(versioned); err == nil {
		return os.Rename(versioned, pyodideDir)
	}

	// Some releases use other prefixes; take the first pyodide* directory.
	entries, err := os.ReadDir(siteDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", siteDir, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "pyodide") {
			return os.Rename(filepath.Join(siteDir, e.Name()), pyodideDir)
		}
	}
	return fmt.Errorf("no pyodide directory found after extraction in %s", siteDir)
}
