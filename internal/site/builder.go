// Package site assembles the deployable static site: export, asset download,
// URL patching, package resolution, and final verification in one fixed
// sequence.
package site

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/airgap-notebooks/site-composer/internal/config"
	"github.com/airgap-notebooks/site-composer/internal/export"
	"github.com/airgap-notebooks/site-composer/internal/fetch"
	"github.com/airgap-notebooks/site-composer/internal/fonts"
	"github.com/airgap-notebooks/site-composer/internal/patch"
	"github.com/airgap-notebooks/site-composer/internal/pyodide"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/wheels"
)

// headersFile enables SharedArrayBuffer for the browser interpreter on hosts
// that honor the Netlify/Cloudflare _headers format.
const headersFile = `/*
  Cross-Origin-Opener-Policy: same-origin
  Cross-Origin-Embedder-Policy: require-corp
`

// Builder runs the whole pipeline for one site configuration. Steps run
// strictly in order; each depends on the previous one's on-disk output.
type Builder struct {
	Config   *config.SiteConfig
	Client   *fetch.Client
	Exporter *export.Exporter
}

// NewBuilder wires a Builder with the default client and exporter.
func NewBuilder(cfg *config.SiteConfig) *Builder {
	return &Builder{
		Config:   cfg,
		Client:   fetch.New(),
		Exporter: export.NewExporter(cfg.Mode),
	}
}

// Run builds the site from scratch. Export and download failures abort
// immediately; patch and verification problems are collected and reported
// together so one run surfaces every broken pattern.
func (b *Builder) Run() error {
	log := logger.Logger()
	helpers := config.NewConfigHelpers(b.Config)

	notebooksDir, err := helpers.NotebooksDir()
	if err != nil {
		return err
	}
	outputDir, err := helpers.OutputDir()
	if err != nil {
		return err
	}

	// The patch rules were written against the pinned export tool version;
	// drift is a warning, not an error, since verification catches breakage.
	if installed, err := b.Exporter.InstalledVersion(); err == nil && installed != b.Config.MarimoVersion {
		log.Warnf("Installed marimo %s differs from pinned %s; patches were tested against the pinned version",
			installed, b.Config.MarimoVersion)
	}

	if err := helpers.CleanOutputDir(); err != nil {
		return err
	}

	notebooks, err := b.Exporter.ExportAll(notebooksDir, outputDir)
	if err != nil {
		return err
	}
	single := len(notebooks) == 1

	pyodideVersion := b.Config.PyodideVersion
	if pyodideVersion == "" {
		pyodideVersion, err = pyodide.DetectVersion(outputDir)
		if err != nil {
			return err
		}
	}
	log.Infof("Using Pyodide %s", pyodideVersion)

	if err := pyodide.EnsureDistribution(b.Client, outputDir, pyodideVersion); err != nil {
		return err
	}
	if err := fonts.EnsureGoogleFonts(b.Client, outputDir, b.Config.FontsCSSURL); err != nil {
		return err
	}
	if err := fonts.EnsureKaTeX(b.Client, outputDir); err != nil {
		return err
	}

	var errs patch.ErrorList
	rules := patch.CDNRules(pyodideVersion, patch.PathsForLayout(single))
	patch.PatchTree(outputDir, rules, &errs)
	patch.HidePublishButton(outputDir, &errs)
	patch.SyncModeURL(outputDir, &errs)
	patch.SyncLayoutURL(outputDir, &errs)
	patch.PatchShareLinks(outputDir, single, &errs)
	patch.EmbedShareLayout(outputDir, &errs)
	// Fail before downloads when any pattern no longer matches.
	if err := errs.Err(); err != nil {
		return err
	}

	if err := wheels.EnsureMarimoBase(b.Client, outputDir, b.Config.MarimoVersion); err != nil {
		return err
	}
	extras, err := b.resolveExtras(outputDir)
	if err != nil {
		return err
	}

	if err := writeIndexPage(outputDir, notebooks); err != nil {
		return err
	}
	if err := writeMetadataFiles(outputDir); err != nil {
		return err
	}

	patch.VerifySite(outputDir, extras, &errs)
	if err := errs.Err(); err != nil {
		return err
	}

	// Audit trail of every external input the build pulled in.
	if err := logger.Downloads.WriteFile(outputDir); err != nil {
		log.Warnf("Could not write download manifest: %v", err)
	}

	log.Infof("Build complete: %s (%.1f MB, Pyodide %s)",
		outputDir, float64(treeSize(outputDir))/(1024*1024), pyodideVersion)
	return nil
}

// resolveExtras downloads the packages listed in the requirements file plus
// their dependencies, and returns the top-level names for verification.
// A missing or empty requirements file skips the step.
func (b *Builder) resolveExtras(outputDir string) ([]string, error) {
	log := logger.Logger()

	reqFile := b.Config.RequirementsFile
	if _, err := os.Stat(reqFile); os.IsNotExist(err) {
		log.Infof("No %s found, skipping extra packages", reqFile)
		return nil, nil
	}
	requirements, err := wheels.ParseRequirementsFile(reqFile)
	if err != nil {
		return nil, err
	}
	if len(requirements) == 0 {
		log.Infof("%s is empty, skipping extra packages", reqFile)
		return nil, nil
	}
	log.Infof("Found %d top-level requirement(s)", len(requirements))

	resolver, err := wheels.NewResolver(b.Client, outputDir)
	if err != nil {
		return nil, err
	}
	if err := resolver.ResolveAll(requirements); err != nil {
		return nil, err
	}

	var names []string
	for _, req := range requirements {
		if req.GitURL != "" {
			continue // resolved by URL, not present under a PyPI name
		}
		names = append(names, req.Name)
	}
	return names, nil
}

// writeMetadataFiles adds .nojekyll (so underscore-prefixed directories are
// served) and the _headers file.
func writeMetadataFiles(outputDir string) error {
	nojekyll := filepath.Join(outputDir, ".nojekyll")
	if err := os.WriteFile(nojekyll, nil, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", nojekyll, err)
	}
	headers := filepath.Join(outputDir, "_headers")
	if err := os.WriteFile(headers, []byte(headersFile), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", headers, err)
	}
	return nil
}

func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
