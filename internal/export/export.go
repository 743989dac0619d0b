package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/utils/shell"
)

// Exporter runs the external notebook export tool once per notebook. The tool
// is treated as an opaque process producing HTML/JS/CSS files on disk.
type Exporter struct {
	Tool string   // export tool binary, default "marimo"
	Mode string   // "run" for readonly, "edit" for editable
	Env  []string // extra KEY=VALUE assignments, e.g. a virtualenv PATH
}

// NewExporter returns an Exporter for the given mode.
func NewExporter(mode string) *Exporter {
	return &Exporter{Tool: "marimo", Mode: mode}
}

// ListNotebooks returns the sorted .py notebook sources under notebooksDir.
func ListNotebooks(notebooksDir string) ([]string, error) {
	notebooks, err := filepath.Glob(filepath.Join(notebooksDir, "*.py"))
	if err != nil {
		return nil, fmt.Errorf("listing notebooks in %s: %w", notebooksDir, err)
	}
	if len(notebooks) == 0 {
		return nil, fmt.Errorf("no .py notebooks found in %s", notebooksDir)
	}
	sort.Strings(notebooks)
	return notebooks, nil
}

// ExportAll exports every notebook to a WASM HTML bundle under outputDir. A
// single notebook is exported directly to the site root so it is served at /;
// multiple notebooks each get their own subdirectory. Any export failure
// aborts the run: a partial site directory must never ship silently.
func (e *Exporter) ExportAll(notebooksDir, outputDir string) ([]string, error) {
	log := logger.Logger()

	notebooks, err := ListNotebooks(notebooksDir)
	if err != nil {
		return nil, err
	}

	single := len(notebooks) == 1
	for _, nb := range notebooks {
		out := outputDir
		if !single {
			name := strings.TrimSuffix(filepath.Base(nb), ".py")
			out = filepath.Join(outputDir, name)
		}
		log.Infof("exporting %s -> %s/", nb, out)

		cmd := fmt.Sprintf("%s export html-wasm %s -o %s --mode %s --force",
			e.Tool, nb, out, e.Mode)
		if _, err := shell.ExecCmdWithStream(cmd, e.Env); err != nil {
			return nil, fmt.Errorf("exporting notebook %s: %w", nb, err)
		}
	}
	return notebooks, nil
}

// InstalledVersion reports the export tool's package version so the build can
// warn when it drifts from the pinned one the patch rules were written for.
func (e *Exporter) InstalledVersion() (string, error) {
	for _, python := range []string{"python3", "python"} {
		if !shell.IsCommandExist(python) {
			continue
		}
		cmd := fmt.Sprintf(`%s -c "import marimo; print(marimo.__version__)"`, python)
		out, err := shell.ExecCmd(cmd, e.Env)
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(out); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("could not determine installed marimo version")
}
