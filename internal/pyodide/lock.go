package pyodide

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName converts a package name to the lock-file key format
// (lowercase, hyphen-separated), matching micropip's lookup rules.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// lockPackage is the entry shape micropip needs to resolve a local wheel.
type lockPackage struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	FileName    string   `json:"file_name"`
	InstallDir  string   `json:"install_dir"`
	SHA256      string   `json:"sha256"`
	PackageType string   `json:"package_type"`
	Depends     []string `json:"depends"`
	Imports     []string `json:"imports"`
}

// Lock wraps pyodide-lock.json. Unknown top-level fields and bundled package
// entries are carried through untouched as raw JSON.
type Lock struct {
	path     string
	root     map[string]json.RawMessage
	packages map[string]json.RawMessage
}

// LockPath returns the pyodide-lock.json path under a site directory.
func LockPath(siteDir string) string {
	return filepath.Join(siteDir, "pyodide", "pyodide-lock.json")
}

// LoadLock reads <siteDir>/pyodide/pyodide-lock.json.
func LoadLock(siteDir string) (*Lock, error) {
	path := LockPath(siteDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	l := &Lock{path: path, root: map[string]json.RawMessage{}, packages: map[string]json.RawMessage{}}
	if err := json.Unmarshal(data, &l.root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if raw, ok := l.root["packages"]; ok {
		if err := json.Unmarshal(raw, &l.packages); err != nil {
			return nil, fmt.Errorf("parsing packages in %s: %w", path, err)
		}
	}
	return l, nil
}

// Has reports whether the lock file contains the package at all.
func (l *Lock) Has(name string) bool {
	_, ok := l.packages[NormalizeName(name)]
	return ok
}

// Version returns the locked version of a package, if present.
func (l *Lock) Version(name string) (string, bool) {
	raw, ok := l.packages[NormalizeName(name)]
	if !ok {
		return "", false
	}
	var entry struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", false
	}
	return entry.Version, true
}

// Satisfies reports whether the bundled version matches the constraint. A nil
// constraint means any version is acceptable; unparsable versions are assumed
// fine, mirroring the lenient handling micropip itself applies.
func (l *Lock) Satisfies(name string, c *semver.Constraints) bool {
	version, ok := l.Version(name)
	if !ok {
		return false
	}
	if c == nil {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return c.Check(v)
}

// Register adds or replaces a wheel entry so micropip loads it from the local
// pyodide/ directory, then persists the lock file.
func (l *Lock) Register(wheelPath, name, version string, imports []string) error {
	data, err := os.ReadFile(wheelPath)
	if err != nil {
		return fmt.Errorf("reading wheel %s: %w", wheelPath, err)
	}
	sum := sha256.Sum256(data)

	if len(imports) == 0 {
		imports = []string{strings.ReplaceAll(strings.ToLower(name), "-", "_")}
	}

	entry := lockPackage{
		Name:        NormalizeName(name),
		Version:     version,
		FileName:    filepath.Base(wheelPath),
		InstallDir:  "site",
		SHA256:      hex.EncodeToString(sum[:]),
		PackageType: "package",
		Depends:     []string{},
		Imports:     imports,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding lock entry for %s: %w", name, err)
	}
	l.packages[entry.Name] = raw

	return l.save()
}

func (l *Lock) save() error {
	raw, err := json.Marshal(l.packages)
	if err != nil {
		return fmt.Errorf("encoding packages: %w", err)
	}
	l.root["packages"] = raw

	data, err := json.MarshalIndent(l.root, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", l.path, err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", l.path, err)
	}
	return nil
}
