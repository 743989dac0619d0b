package pyodide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func mustConstraint(t *testing.T, spec string) *semver.Constraints {
	t.Helper()
	c, err := semver.NewConstraint(spec)
	if err != nil {
		t.Fatalf("bad constraint %q: %v", spec, err)
	}
	return c
}

func writeSiteFile(t *testing.T, siteDir, rel, content string) {
	t.Helper()
	path := filepath.Join(siteDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDetectVersionFromCDNURL(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "assets/worker-abc123.js",
		`fetch("https://cdn.jsdelivr.net/pyodide/v0.26.0/full/pyodide.js")`)

	version, err := DetectVersion(siteDir)
	if err != nil {
		t.Fatalf("DetectVersion failed: %v", err)
	}
	if version != "0.26.0" {
		t.Errorf("expected 0.26.0, got %s", version)
	}
}

func TestDetectVersionFromConstant(t *testing.T) {
	siteDir := t.TempDir()
	// Template-literal loaders only carry the version as a constant.
	writeSiteFile(t, siteDir, "assets/worker-def456.js",
		"var Io=`0.27.7`;indexURL:`https://cdn.jsdelivr.net/pyodide/${e.pyodideVersion}/full/`")

	version, err := DetectVersion(siteDir)
	if err != nil {
		t.Fatalf("DetectVersion failed: %v", err)
	}
	if version != "0.27.7" {
		t.Errorf("expected 0.27.7, got %s", version)
	}
}

func TestDetectVersionPrefersWorkerFiles(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "assets/index-chunk.js", `"0.20.9"`)
	writeSiteFile(t, siteDir, "assets/saveWorker-xyz.js",
		`https://cdn.jsdelivr.net/pyodide/v0.26.4/full/`)

	version, err := DetectVersion(siteDir)
	if err != nil {
		t.Fatalf("DetectVersion failed: %v", err)
	}
	if version != "0.26.4" {
		t.Errorf("expected worker file to win, got %s", version)
	}
}

func TestDetectVersionFailsWithoutExports(t *testing.T) {
	if _, err := DetectVersion(t.TempDir()); err == nil {
		t.Fatal("expected error when nothing is detectable")
	}
}

func TestEnsureDistributionSkipsExisting(t *testing.T) {
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "pyodide/pyodide.mjs", "export {}")

	// Client is nil-safe here because the presence check short-circuits
	// before any network use.
	if err := EnsureDistribution(nil, siteDir, "0.26.0"); err != nil {
		t.Fatalf("EnsureDistribution should skip existing runtime: %v", err)
	}
}

const lockFixture = `{
  "info": {"python": "3.12.1"},
  "packages": {
    "numpy": {"name": "numpy", "version": "1.26.4", "file_name": "numpy-1.26.4.whl",
      "install_dir": "site", "sha256": "abc", "package_type": "package",
      "depends": [], "imports": ["numpy"]}
  }
}`

func writeLockFixture(t *testing.T) string {
	t.Helper()
	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "pyodide/pyodide-lock.json", lockFixture)
	return siteDir
}

func TestLockSatisfies(t *testing.T) {
	lock, err := LoadLock(writeLockFixture(t))
	if err != nil {
		t.Fatalf("LoadLock failed: %v", err)
	}

	if !lock.Has("numpy") {
		t.Error("expected numpy to be present")
	}
	if !lock.Satisfies("numpy", nil) {
		t.Error("nil constraint should always be satisfied")
	}
	if !lock.Satisfies("numpy", mustConstraint(t, ">=1.20")) {
		t.Error("expected 1.26.4 to satisfy >=1.20")
	}
	if lock.Satisfies("numpy", mustConstraint(t, ">=2.0")) {
		t.Error("expected 1.26.4 to fail >=2.0")
	}
	if lock.Satisfies("pandas", nil) {
		t.Error("absent package must not be satisfied")
	}
}

func TestLockRegisterRoundTrip(t *testing.T) {
	siteDir := writeLockFixture(t)
	lock, err := LoadLock(siteDir)
	if err != nil {
		t.Fatalf("LoadLock failed: %v", err)
	}

	wheel := filepath.Join(siteDir, "pyodide", "Markdown-3.6-py3-none-any.whl")
	if err := os.WriteFile(wheel, []byte("wheel-bytes"), 0644); err != nil {
		t.Fatalf("writing wheel: %v", err)
	}

	if err := lock.Register(wheel, "Markdown", "3.6", []string{"markdown"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reloaded, err := LoadLock(siteDir)
	if err != nil {
		t.Fatalf("reloading lock: %v", err)
	}
	version, ok := reloaded.Version("markdown")
	if !ok || version != "3.6" {
		t.Errorf("expected registered markdown 3.6, got %q %v", version, ok)
	}
	// The bundled numpy entry must survive the rewrite untouched.
	if v, _ := reloaded.Version("numpy"); v != "1.26.4" {
		t.Errorf("bundled entry lost: %q", v)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Markdown":        "markdown",
		"typing_ext.ens":  "typing-ext-ens",
		"ruamel.yaml":     "ruamel-yaml",
		"already-normal":  "already-normal",
		"Mixed__Case.Pkg": "mixed-case-pkg",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
