package patch

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/pyodide"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

// forbiddenDomains must not appear in any patched file after the build.
var forbiddenDomains = []string{
	"cdn.jsdelivr.net",
	"fonts.googleapis.com",
	"fonts.gstatic.com",
	"wasm.marimo.app",
}

// allowedCDNURLs are substrings of URLs that may remain: optional features
// that degrade gracefully offline. MathJax is only probed for readiness (math
// rendering uses the bundled KaTeX); Lucide icon fetches fail silently in the
// edit-mode icon picker.
var allowedCDNURLs = []string{
	"cdn.jsdelivr.net/npm/mathjax-full@",
	"cdn.jsdelivr.net/npm/lucide-static@",
}

// requiredMarker describes a substring that a patched file class must carry.
type requiredMarker struct {
	glob        string
	marker      string
	description string
}

var requiredMarkers = []requiredMarker{
	{"share-*.js", "Notebook still loading", "share-link error fallback"},
	{"share-*.js", "__marimoGetSerializedLayout", "layout embed in share"},
	{"layout-*.js", "__marimoGetSerializedLayout", "layout global exposure"},
	{"mode-*.js", "view-as", "mode URL sync"},
	{"layout-*.js", "searchParams", "layout URL sync"},
	{"index.html", "data-marimo-share", "share-link hash handler"},
}

var publishHiddenValuePattern = regexp.MustCompile(`label:"Publish HTML to web",hidden:([^,]+)`)

// VerifySite scans the finished site for leftover CDN URLs, missing patch
// markers, an unhidden publish button, and absent lock entries. Every problem
// is recorded on errs so one run reports the complete damage.
func VerifySite(siteDir string, expectedPackages []string, errs *ErrorList) {
	verifyNoForbiddenDomains(siteDir, errs)
	verifyNoHardcodedShareHost(siteDir, errs)
	verifyRequiredMarkers(siteDir, errs)
	verifyPublishHidden(siteDir, errs)
	verifyLockPackages(siteDir, expectedPackages, errs)
}

func verifyNoForbiddenDomains(siteDir string, errs *ErrorList) {
	found := false
	_ = filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !patchableExtensions[filepath.Ext(path)] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		text := string(data)
		for _, domain := range forbiddenDomains {
			if !strings.Contains(text, "https://"+domain) {
				continue
			}
			urlPattern := regexp.MustCompile(`https://` + regexp.QuoteMeta(domain) + `[^\s"'` + "`" + `\\)]*`)
			for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
				url := text[loc[0]:loc[1]]
				if isAllowedURL(url) {
					continue
				}
				line := strings.Count(text[:loc[0]], "\n") + 1
				errs.Addf("verify-cdn", "leftover CDN URL (%s) in %s:%d: %s",
					domain, path, line, snippetAround(text, loc[0]))
				found = true
				break // one violation per domain per file
			}
		}
		return nil
	})
	if !found {
		logger.Logger().Infof("No forbidden CDN domains found")
	}
}

func isAllowedURL(url string) bool {
	for _, allowed := range allowedCDNURLs {
		if strings.Contains(url, allowed) {
			return true
		}
	}
	return false
}

func snippetAround(text string, pos int) string {
	start := strings.LastIndexByte(text[:pos], '\n') + 1
	end := strings.IndexByte(text[pos:], '\n')
	if end == -1 {
		end = len(text)
	} else {
		end += pos
	}
	line := strings.TrimSpace(text[start:end])
	if len(line) > 120 {
		line = line[:120]
	}
	return line
}

func verifyNoHardcodedShareHost(siteDir string, errs *ErrorList) {
	files, err := globTree(siteDir, "share-*.js")
	if err != nil {
		return
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), `"https://marimo.app"`) {
			errs.Addf("verify-cdn", "hardcoded marimo.app URL still in %s", path)
		}
	}
}

func verifyRequiredMarkers(siteDir string, errs *ErrorList) {
	for _, rm := range requiredMarkers {
		files, err := globTree(siteDir, rm.glob)
		if err != nil || len(files) == 0 {
			errs.Addf("verify-markers", "no files matching %s; cannot verify %s", rm.glob, rm.description)
			continue
		}
		found := false
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if strings.Contains(string(data), rm.marker) {
				found = true
				break
			}
		}
		if found {
			logger.Logger().Debugf("Found: %s", rm.description)
		} else {
			errs.Addf("verify-markers", "missing marker for %q (expected %q in %s)",
				rm.description, rm.marker, rm.glob)
		}
	}
}

func verifyPublishHidden(siteDir string, errs *ErrorList) {
	files, err := globTree(siteDir, "*.js")
	if err != nil {
		return
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		text := string(data)
		if !strings.Contains(text, "Publish HTML to web") {
			continue
		}
		if m := publishHiddenValuePattern.FindStringSubmatch(text); m != nil && m[1] != "!0" {
			errs.Addf("verify-publish", "publish button not hidden in %s (hidden:%s)", path, m[1])
		}
	}
}

// verifyLockPackages checks the resolved extras are registered in
// pyodide-lock.json, so the frontend's package loader can find them offline.
func verifyLockPackages(siteDir string, expectedPackages []string, errs *ErrorList) {
	lock, err := pyodide.LoadLock(siteDir)
	if err != nil {
		errs.Addf("verify-packages", "pyodide-lock.json not found: %v", err)
		return
	}
	for _, name := range expectedPackages {
		key := pyodide.NormalizeName(name)
		if !lock.Has(key) {
			errs.Addf("verify-packages", "package %q (%s) not in pyodide-lock.json", name, key)
		} else {
			logger.Logger().Debugf("Package present: %s", key)
		}
	}
}
