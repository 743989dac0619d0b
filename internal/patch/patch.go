package patch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

// StepError is one recorded patch or verification failure.
type StepError struct {
	Step    string
	Message string
}

func (e StepError) String() string {
	return fmt.Sprintf("[%s] %s", e.Step, e.Message)
}

// ErrorList collects patch and verification failures across the whole build
// so one pass reports every broken pattern instead of stopping at the first.
type ErrorList struct {
	errors []StepError
}

// Addf records a failure for the given step.
func (l *ErrorList) Addf(step, format string, args ...any) {
	l.errors = append(l.errors, StepError{Step: step, Message: fmt.Sprintf(format, args...)})
	logger.Logger().Errorf("[%s] %s", step, fmt.Sprintf(format, args...))
}

// Empty reports whether no failures were recorded.
func (l *ErrorList) Empty() bool {
	return len(l.errors) == 0
}

// Errors returns the recorded failures in order.
func (l *ErrorList) Errors() []StepError {
	return l.errors
}

// Summary formats all recorded failures, one per line.
func (l *ErrorList) Summary() string {
	var b strings.Builder
	for _, e := range l.errors {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Err returns an aggregate error when any failure was recorded.
func (l *ErrorList) Err() error {
	if l.Empty() {
		return nil
	}
	return fmt.Errorf("%d patch error(s):\n%s", len(l.errors), l.Summary())
}

func replaceAllLiteral(text, old, new string) string {
	return strings.ReplaceAll(text, old, new)
}

func containsLiteral(text, substr string) bool {
	return strings.Contains(text, substr)
}

// patchableExtensions are the file types the pattern table is applied to.
var patchableExtensions = map[string]bool{
	".js":   true,
	".mjs":  true,
	".html": true,
	".css":  true,
}

// skippedDirs are directories holding downloaded assets rather than exported
// notebook files. Their contents must never be rewritten.
var skippedDirs = map[string]bool{
	"pyodide": true,
	"vendor":  true,
	"fonts":   true,
}

// PatchTree applies the pattern table to every patchable file under siteDir
// and returns the number of files changed. A tree where no file matched any
// rule means the export layout changed and the table is stale, so that is
// reported as a failure.
func PatchTree(siteDir string, rules []Rule, errs *ErrorList) int {
	patched := 0
	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
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
		changed, perr := patchFile(path, rules)
		if perr != nil {
			return perr
		}
		if changed {
			patched++
		}
		return nil
	})
	if err != nil {
		errs.Addf("patch", "walking %s: %v", siteDir, err)
		return patched
	}
	if patched == 0 {
		errs.Addf("patch", "no files matched any URL pattern under %s; the export layout may have changed", siteDir)
	}
	logger.Logger().Infof("Patched CDN URLs in %d file(s)", patched)
	return patched
}

func patchFile(path string, rules []Rule) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	text := string(data)
	updated := text
	for _, rule := range rules {
		updated = rule.Apply(updated)
	}
	if updated == text {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// globTree returns files anywhere under root whose base name matches pattern,
// skipping the downloaded-asset directories.
func globTree(root, pattern string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		ok, merr := filepath.Match(pattern, d.Name())
		if merr != nil {
			return merr
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}
