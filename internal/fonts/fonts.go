// Package fonts vendors the web fonts and math assets the exported pages
// reference, so no request leaves the deployment at render time.
package fonts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/fetch"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

var (
	gstaticURLPattern   = regexp.MustCompile(`url\((https://fonts\.gstatic\.com/[^)]+)\)`)
	katexVersionPattern = regexp.MustCompile(`katex@([0-9]+\.[0-9]+\.[0-9]+)`)
	katexFontPattern    = regexp.MustCompile(`url\(([^)]+\.woff2)\)`)
)

// katexCDNBase is a var so tests can point downloads at a local server.
var katexCDNBase = "https://cdn.jsdelivr.net/npm"

// EnsureGoogleFonts downloads the Google Fonts stylesheet and every font file
// it references into <siteDir>/fonts, rewriting the CSS to relative URLs.
// Recent exports bundle the fonts in assets/, in which case nothing is
// downloaded. A CSS fetch failure is not fatal for the same reason.
func EnsureGoogleFonts(c *fetch.Client, siteDir, cssURL string) error {
	if hasBundledFonts(siteDir) {
		logger.Logger().Infof("Fonts already bundled in assets/, skipping download")
		return nil
	}

	fontsDir := filepath.Join(siteDir, "fonts")
	if err := os.MkdirAll(fontsDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", fontsDir, err)
	}

	// The user agent decides the served format; a modern one gets woff2.
	css, err := c.DownloadText(cssURL, fetch.WOFF2UserAgent)
	if err != nil {
		logger.Logger().Warnf("Could not download font CSS (OK when fonts are bundled): %v", err)
		return nil
	}

	urls := gstaticURLPattern.FindAllStringSubmatch(css, -1)
	logger.Logger().Infof("Found %d font file(s) in CSS", len(urls))
	for _, m := range urls {
		url := m[1]
		filename := url[strings.LastIndexByte(url, '/')+1:]
		if err := c.Download(url, filepath.Join(fontsDir, filename), fetch.WOFF2UserAgent); err != nil {
			return fmt.Errorf("downloading font %s: %w", filename, err)
		}
		css = strings.ReplaceAll(css, url, "./"+filename)
	}

	cssPath := filepath.Join(fontsDir, "fonts.css")
	if err := os.WriteFile(cssPath, []byte(css), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", cssPath, err)
	}
	logger.Logger().Infof("Font CSS written to %s", cssPath)
	return nil
}

// hasBundledFonts reports whether the export ships all three UI font
// families in its assets directories.
func hasBundledFonts(siteDir string) bool {
	var hasFira, hasLora, hasPT bool
	_ = filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "assets" || filepath.Ext(path) != ".ttf" {
			return nil
		}
		name := d.Name()
		hasFira = hasFira || strings.Contains(name, "FiraMono")
		hasLora = hasLora || strings.Contains(name, "Lora")
		hasPT = hasPT || strings.Contains(name, "PTSans")
		return nil
	})
	return hasFira && hasLora && hasPT
}

// EnsureKaTeX vendors the KaTeX stylesheet and its woff2 fonts into
// <siteDir>/vendor/katex at the version the export references. Skipped when
// the export bundles KaTeX fonts or references no KaTeX CDN URL at all.
func EnsureKaTeX(c *fetch.Client, siteDir string) error {
	if hasBundledKaTeX(siteDir) {
		logger.Logger().Infof("KaTeX fonts already bundled in assets/, skipping download")
		return nil
	}

	version := detectKaTeXVersion(siteDir)
	if version == "" {
		logger.Logger().Infof("No KaTeX CDN reference found in exports, skipping")
		return nil
	}
	logger.Logger().Infof("Detected KaTeX version: %s", version)

	katexDir := filepath.Join(siteDir, "vendor", "katex")
	fontDir := filepath.Join(katexDir, "fonts")
	if err := os.MkdirAll(fontDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", fontDir, err)
	}

	cssURL := fmt.Sprintf("%s/katex@%s/dist/katex.min.css", katexCDNBase, version)
	cssPath := filepath.Join(katexDir, "katex.min.css")
	if err := c.Download(cssURL, cssPath, ""); err != nil {
		return fmt.Errorf("downloading KaTeX CSS: %w", err)
	}

	data, err := os.ReadFile(cssPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cssPath, err)
	}
	css := string(data)

	for _, m := range katexFontPattern.FindAllStringSubmatch(css, -1) {
		rel := m[1]
		name := rel[strings.LastIndexByte(rel, '/')+1:]
		url := fmt.Sprintf("%s/katex@%s/dist/%s", katexCDNBase, version, rel)
		if err := c.Download(url, filepath.Join(fontDir, name), ""); err != nil {
			return fmt.Errorf("downloading KaTeX font %s: %w", name, err)
		}
		css = strings.ReplaceAll(css, rel, "fonts/"+name)
	}

	if err := os.WriteFile(cssPath, []byte(css), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", cssPath, err)
	}
	logger.Logger().Infof("KaTeX assets saved to %s", katexDir)
	return nil
}

func hasBundledKaTeX(siteDir string) bool {
	found := false
	_ = filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "assets" {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "KaTeX") &&
			(strings.HasSuffix(name, ".ttf") || strings.HasSuffix(name, ".woff2")) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// detectKaTeXVersion returns the first katex@X.Y.Z reference found in the
// exported HTML/JS, or an empty string.
func detectKaTeXVersion(siteDir string) string {
	version := ""
	_ = filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".js" && ext != ".html" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if m := katexVersionPattern.FindSubmatch(data); m != nil {
			version = string(m[1])
			return filepath.SkipAll
		}
		return nil
	})
	return version
}
